package config

import (
	"fmt"
	"time"
)

// Config represents a zigserve.yaml configuration file.
// All values are optional and act as defaults for zigserve build flags.
// CLI flags always override config values.
type Config struct {
	// Zig is the path to the zig executable.
	Zig string `yaml:"zig"`
	// Args are default build arguments, prepended before any arguments
	// given after "--" on the command line.
	Args []string `yaml:"args"`
	// Chdir is the working directory for the compiler.
	Chdir string `yaml:"chdir"`
	// Format is the default output format: text, json, yaml, or msgpack.
	Format string `yaml:"format"`
	// Timeout bounds one session. Zero means no timeout.
	Timeout Duration `yaml:"timeout"`
	// Render holds text renderer defaults.
	Render RenderConfig `yaml:"render"`
}

// RenderConfig holds text renderer defaults from the config file.
// Pointers distinguish "unset" from an explicit false, so flags and
// built-in defaults only apply when the file says nothing.
type RenderConfig struct {
	Source *bool `yaml:"source"`
	Trace  *bool `yaml:"trace"`
	Log    *bool `yaml:"log"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
