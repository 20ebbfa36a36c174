package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/actiongw/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/actiongw/internal/version.Commit=abc123
//	  -X github.com/soyeahso/actiongw/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the version line printed by the version command.
func Info() string {
	return fmt.Sprintf("actiongw %s (commit: %s, built: %s, %s %s/%s)",
		Version, short(Commit), Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return "actiongw/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
