package enums

import "fmt"

// SyncState tracks the lifecycle of a historical backfill session.
type SyncState string

const (
	SyncStatePending   SyncState = "pending"
	SyncStateRunning   SyncState = "running"
	SyncStateCompleted SyncState = "completed"
	SyncStateCancelled SyncState = "cancelled"
	SyncStateFailed    SyncState = "failed"
)

var validSyncStates = []SyncState{
	SyncStatePending,
	SyncStateRunning,
	SyncStateCompleted,
	SyncStateCancelled,
	SyncStateFailed,
}

// String implements fmt.Stringer.
func (s SyncState) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SyncState) IsValid() bool {
	for _, candidate := range validSyncStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session has finished for good.
func (s SyncState) IsTerminal() bool {
	return s == SyncStateCompleted || s == SyncStateCancelled || s == SyncStateFailed
}

// ParseSyncState converts raw input into a SyncState.
func ParseSyncState(value string) (SyncState, error) {
	for _, candidate := range validSyncStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync state %q", value)
}
