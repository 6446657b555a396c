// Package config provides configuration loading for patchd.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the root patchd configuration.
type Config struct {
	Repo       RepoConfig       `koanf:"repo"`
	Branch     BranchConfig     `koanf:"branch"`
	Forge      ForgeConfig      `koanf:"forge"`
	Validation ValidationConfig `koanf:"validation"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RepoConfig locates the checkout and the commit identity.
type RepoConfig struct {
	// Path is the repository checkout directory (default: .).
	Path string `koanf:"path"`

	// Remote is the push remote (default: origin).
	Remote string `koanf:"remote"`

	// AuthorName and AuthorEmail sign workflow commits.
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`
}

// BranchConfig controls branch strategy decisions.
type BranchConfig struct {
	// Prefix is prepended to synthesized branch names (default: patch).
	Prefix string `koanf:"prefix"`

	// Protected are branch names or glob patterns that may never be
	// committed to directly (default: main, master, develop, release/*).
	Protected []string `koanf:"protected"`

	// TopicPatterns are glob patterns for reusable topic branches.
	TopicPatterns []string `koanf:"topic_patterns"`

	// DisableTimestamps omits the timestamp segment from branch names.
	DisableTimestamps bool `koanf:"disable_timestamps"`

	// DefaultBase is the pull-request base branch (default: main).
	DefaultBase string `koanf:"default_base"`
}

// ForgeConfig configures the hosting-service API.
type ForgeConfig struct {
	// Owner and Repo identify the repository on the forge.
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`

	// Token is the API token, also used for HTTPS pushes.
	Token Secret `koanf:"token"`

	// BaseURL points at an enterprise instance. Optional.
	BaseURL string `koanf:"base_url"`
}

// ValidationConfig configures the pre-flight gate.
type ValidationConfig struct {
	// RequiredTools are executables that must be on PATH.
	RequiredTools []string `koanf:"required_tools"`

	// RequiredFiles are dependency files that must exist in the checkout.
	RequiredFiles []string `koanf:"required_files"`

	// TestCommands are the default test commands for requests that do not
	// supply their own.
	TestCommands []string `koanf:"test_commands"`

	// CommandTimeout bounds each test command (default: 5m).
	CommandTimeout Duration `koanf:"command_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, or error (default: info).
	Level string `koanf:"level"`

	// Format is json or console (default: json).
	Format string `koanf:"format"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format)
	}
	if (c.Forge.Owner == "") != (c.Forge.Repo == "") {
		return fmt.Errorf("forge owner and repo must be set together")
	}
	return nil
}

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// MarshalText implements encoding.TextMarshaler. Always returns redacted value.
func (s Secret) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[REDACTED]"), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepts raw secret values.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
