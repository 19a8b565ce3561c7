package wallet

import (
	"runtime"
	"strings"
)

// Platform distinguishes environments where an external wallet app can
// be foregrounded via deep link from those where it cannot.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
)

// DetectPlatform resolves the platform, honoring an explicit override
// from configuration. An empty override falls back to the runtime OS.
func DetectPlatform(override string) Platform {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "mobile":
		return PlatformMobile
	case "desktop":
		return PlatformDesktop
	}

	switch runtime.GOOS {
	case "android", "ios":
		return PlatformMobile
	default:
		return PlatformDesktop
	}
}
