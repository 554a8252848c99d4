package model

// Mode is the client's current access mode as seen by the business-logic
// layer. CRUD code checks this before any write.
type Mode string

const (
	ModeUnlocked  Mode = "unlocked"
	ModeAcquiring Mode = "acquiring"
	ModeWrite     Mode = "write"
	ModeReadOnly  Mode = "read-only"
)

// LockStatus is the inspection report returned to the UI: whether the
// store is locked, by whom, since when, and whether the asking identity
// may force-unlock.
type LockStatus struct {
	IsLocked       bool     `json:"is_locked"`
	Holder         *Session `json:"holder,omitempty"`
	MarkerPresent  bool     `json:"marker_present"`
	CanForceUnlock bool     `json:"can_force_unlock"`
}
