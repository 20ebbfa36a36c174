package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML as a Go duration string
// ("90s", "30m", "24h").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts duration strings only.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return &ConfigError{Message: "duration must be a string like \"30s\": " + err.Error()}
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return &ConfigError{Message: "invalid duration " + s + ": " + err.Error()}
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back in string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
