package enums

import "fmt"

// SyncLogLevel grades entries in the per-connection sync log stream.
type SyncLogLevel string

const (
	SyncLogLevelInfo    SyncLogLevel = "info"
	SyncLogLevelSuccess SyncLogLevel = "success"
	SyncLogLevelError   SyncLogLevel = "error"
)

var validSyncLogLevels = []SyncLogLevel{
	SyncLogLevelInfo,
	SyncLogLevelSuccess,
	SyncLogLevelError,
}

// String implements fmt.Stringer.
func (l SyncLogLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is known.
func (l SyncLogLevel) IsValid() bool {
	for _, candidate := range validSyncLogLevels {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseSyncLogLevel converts raw input into a SyncLogLevel.
func ParseSyncLogLevel(value string) (SyncLogLevel, error) {
	for _, candidate := range validSyncLogLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync log level %q", value)
}
