package identutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/pkg/errclass"
)

func TestNormalizeUsername_Valid(t *testing.T) {
	got, err := NormalizeUsername("  alice.smith-01 ")
	require.NoError(t, err)
	assert.Equal(t, "alice.smith-01", got)
}

func TestNormalizeUsername_Empty(t *testing.T) {
	_, err := NormalizeUsername("   ")
	assert.ErrorIs(t, err, errclass.ErrIdentityInvalid)
}

func TestNormalizeUsername_Separators(t *testing.T) {
	for _, bad := range []string{"a/b", `a\b`, "user@host"} {
		_, err := NormalizeUsername(bad)
		assert.ErrorIs(t, err, errclass.ErrIdentityInvalid, bad)
	}
}

func TestNormalizeUsername_ControlChars(t *testing.T) {
	_, err := NormalizeUsername("ali\x00ce")
	assert.ErrorIs(t, err, errclass.ErrIdentityInvalid)
}

func TestNormalizeUsername_NonASCII(t *testing.T) {
	_, err := NormalizeUsername("жильцы")
	assert.ErrorIs(t, err, errclass.ErrIdentityInvalid)
}

func TestMachineID_NeverEmpty(t *testing.T) {
	assert.NotEmpty(t, MachineID())
}
