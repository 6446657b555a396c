package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	secret := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "ghp_supersecret", secret.Value())
	assert.True(t, secret.IsSet())

	out, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(out))

	text, err := secret.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))
}

func TestSecretEmpty(t *testing.T) {
	var secret Secret

	assert.Equal(t, "", secret.String())
	assert.False(t, secret.IsSet())

	out, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(out))
}

func TestSecretUnmarshalText(t *testing.T) {
	var secret Secret
	require.NoError(t, secret.UnmarshalText([]byte("raw-token")))
	assert.Equal(t, "raw-token", secret.Value())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations are rejected")
}

func TestDurationMarshalText(t *testing.T) {
	d := Duration(2 * time.Minute)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", string(text))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero value is valid", func(c *Config) {}, false},
		{"json format", func(c *Config) { c.Logging.Format = "json" }, false},
		{"console format", func(c *Config) { c.Logging.Format = "console" }, false},
		{"bogus format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"forge pair complete", func(c *Config) { c.Forge.Owner = "acme"; c.Forge.Repo = "widgets" }, false},
		{"forge owner only", func(c *Config) { c.Forge.Owner = "acme" }, true},
		{"forge repo only", func(c *Config) { c.Forge.Repo = "widgets" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
