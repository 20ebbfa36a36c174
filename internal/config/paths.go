package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".actiongw"

// Paths holds resolved filesystem paths for gateway data.
type Paths struct {
	Base   string // ~/.actiongw
	Config string // ~/.actiongw/config.yaml
	Logs   string // ~/.actiongw/logs
	Data   string // ~/.actiongw/data
}

// ResolvePaths computes all standard paths from the home directory.
// If ACTIONGW_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ACTIONGW_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// StorePath resolves a configured store path. Relative paths are placed
// under the data directory; ":memory:" is returned unchanged.
func (p Paths) StorePath(configured string) string {
	if configured == "" || configured == ":memory:" || filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(p.Data, configured)
}
