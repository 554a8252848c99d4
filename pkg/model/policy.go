package model

import (
	"time"

	"github.com/propsync/propsync/pkg/errclass"
)

// LockPolicy configures lock timing parameters. Both values are expressed
// as durations and the heartbeat interval must stay below the staleness
// timeout, otherwise a healthy holder would be reclaimed between its own
// renewals.
type LockPolicy struct {
	// StalenessTimeout is how long a session may go without a heartbeat
	// before a competing client may reclaim it.
	StalenessTimeout time.Duration `json:"staleness_timeout"`

	// HeartbeatInterval is how often the holder renews its heartbeat.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// PollInterval is how often a read-only client retries acquisition.
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultLockPolicy mirrors the deployed defaults: 10 minute staleness
// timeout, 30 second heartbeat, a 20:1 margin tolerating several missed
// renewals before reclamation.
func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		StalenessTimeout:  10 * time.Minute,
		HeartbeatInterval: 30 * time.Second,
		PollInterval:      15 * time.Second,
	}
}

// Validate rejects policies that could reclaim a live holder.
func (p LockPolicy) Validate() error {
	if p.StalenessTimeout <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("staleness_timeout must be positive")
	}
	if p.HeartbeatInterval <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("heartbeat_interval must be positive")
	}
	if p.HeartbeatInterval >= p.StalenessTimeout {
		return errclass.ErrConfigInvalid.WithMessagef(
			"heartbeat_interval (%s) must be shorter than staleness_timeout (%s)",
			p.HeartbeatInterval, p.StalenessTimeout)
	}
	if p.PollInterval <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("poll_interval must be positive")
	}
	return nil
}
