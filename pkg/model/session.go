package model

import "time"

// Session is one row in the sessions table. At most one row with
// IsWriteLock=true may exist at any instant; the store's partial unique
// index enforces this physically.
type Session struct {
	SessionID     string    `json:"session_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	MachineID     string    `json:"machine_id"`
	AcquiredAt    time.Time `json:"acquired_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	IsWriteLock   bool      `json:"is_write_lock"`
}

// IsStale reports whether the session's heartbeat has aged past the
// staleness timeout and the lock is eligible for reclamation.
func (s *Session) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastHeartbeat) > timeout
}

// HolderDisplay is the holder string shown to other clients and in the
// force-unlock confirmation, e.g. "alice@workstation-3".
func (s *Session) HolderDisplay() string {
	return s.Username + "@" + s.MachineID
}
