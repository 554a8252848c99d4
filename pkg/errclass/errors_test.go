package errclass

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_CodeOnly(t *testing.T) {
	err := &CoordError{Code: "E_TEST"}
	assert.Equal(t, "E_TEST", err.Error())
}

func TestError_WithMessage(t *testing.T) {
	err := ErrStoreUnavailable.WithMessage("connection refused")
	assert.Equal(t, "E_STORE_UNAVAILABLE: connection refused", err.Error())
}

func TestError_WithMessagef(t *testing.T) {
	err := ErrLockHeld.WithMessagef("held by %s", "alice@workstation-3")
	assert.Equal(t, "E_LOCK_HELD: held by alice@workstation-3", err.Error())
}

func TestIs_SameCode(t *testing.T) {
	err := ErrSessionSuperseded.WithMessage("reclaimed by bob")
	assert.ErrorIs(t, err, ErrSessionSuperseded)
}

func TestIs_DifferentCode(t *testing.T) {
	err := ErrRaceLost.WithMessage("lost insert race")
	assert.NotErrorIs(t, err, ErrLockHeld)
}

func TestIs_Wrapped(t *testing.T) {
	err := fmt.Errorf("acquire: %w", ErrStoreUnavailable.WithMessage("timeout"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestIs_NonCoordError(t *testing.T) {
	assert.NotErrorIs(t, errors.New("plain"), ErrRaceLost)
}

func TestWithMessage_DoesNotMutateBase(t *testing.T) {
	_ = ErrUnauthorized.WithMessage("user2 is not an administrator")
	assert.Equal(t, "", ErrUnauthorized.Message)
}
