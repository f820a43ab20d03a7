package enums

import "fmt"

// Platform identifies the billing source a record originates from.
type Platform string

const (
	PlatformStripe     Platform = "stripe"
	PlatformAppStore   Platform = "appstore"
	PlatformGooglePlay Platform = "googleplay"
	// PlatformUnified marks snapshots derived by summing the
	// per-platform rows. It is never authored directly by a parser.
	PlatformUnified Platform = "unified"
)

var validPlatforms = []Platform{
	PlatformStripe,
	PlatformAppStore,
	PlatformGooglePlay,
	PlatformUnified,
}

// SourcePlatforms lists the platforms that own their own report data.
func SourcePlatforms() []Platform {
	return []Platform{PlatformStripe, PlatformGooglePlay, PlatformAppStore}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSource reports whether the platform authors its own reports.
func (p Platform) IsSource() bool {
	return p.IsValid() && p != PlatformUnified
}

// ParsePlatform converts raw input into a Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
