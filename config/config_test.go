package config

import (
	"bytes"
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-net/observability"
)

const baseYAML = `
client:
  base_url: https://jira.example.com
  headers:
    Accept: application/json
  retry:
    max_attempts: 2
    delay: 250ms
jira:
  project: PROJ
  poll: 2m
`

func noEnv() []string { return nil }

func environ(vars ...string) Option {
	return WithEnviron(func() []string { return vars })
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithYAML([]byte(baseYAML)), WithEnviron(noEnv))
	require.NoError(t, err)

	c := cfg.Client
	assert.Equal(t, "https://jira.example.com", c.BaseURL)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "ephemeral", c.Session)
	assert.Equal(t, "verbose", c.Log.Verbosity)
	assert.Equal(t, 4096, c.Log.MaxPayloadBytes)
	assert.Equal(t, 2, c.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Retry.Delay)
	assert.Zero(t, c.Rate.Limit)
	assert.Equal(t, "1.2", c.TLS.MinVersion)
	assert.Equal(t, 500*time.Millisecond, c.Progress.Interval)
	assert.Equal(t, time.Second, c.Await.CancelGrace)
	assert.Equal(t, "application/json", c.Headers["Accept"])

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Observability.Enabled)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	cfg, err := Load(
		WithYAML([]byte(baseYAML)),
		environ(
			"NETCORE_CLIENT__TIMEOUT=5s",
			"NETCORE_CLIENT__RETRY__MAX_ATTEMPTS=3",
			"NETCORE_CLIENT__LOG__VERBOSITY=errors",
			"NETCORE_CLIENT__RATE__LIMIT=2.5",
			"NETCORE_LOG__LEVEL=debug",
			"NETCORE_OBSERVABILITY__SERVICE__NAME=jira-sync",
			"CLIENT__TIMEOUT=1s",
		),
	)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 3, cfg.Client.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.Retry.Delay, "untouched yaml value survives")
	assert.Equal(t, "errors", cfg.Client.Log.Verbosity)
	assert.InDelta(t, 2.5, cfg.Client.Rate.Limit, 0)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "jira-sync", cfg.Observability.Service.Name)
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	cfg, err := Load(
		WithEnvPrefix("SYNC_"),
		environ("SYNC_CLIENT__BASE_URL=http://localhost:8080", "NETCORE_CLIENT__BASE_URL=http://ignored"),
	)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(baseYAML), 0o600))

	cfg, err := Load(WithFile(path), WithYAML([]byte("client:\n  session: persistent\n")), WithEnviron(noEnv))
	require.NoError(t, err)
	assert.Equal(t, "https://jira.example.com", cfg.Client.BaseURL)
	assert.Equal(t, "persistent", cfg.Client.Session, "documents are applied after files")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")), WithEnviron(noEnv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(WithYAML([]byte("client: [unterminated")), WithEnviron(noEnv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse yaml document 0")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		category string
		field    string
	}{
		{name: "missing base url", yaml: "client:\n  timeout: 1s\n", category: "missing", field: "client.base_url"},
		{name: "relative base url", yaml: "client:\n  base_url: /rest\n", category: "invalid", field: "client.base_url"},
		{name: "zero timeout", yaml: "client:\n  base_url: https://x.io\n  timeout: 0s\n", category: "invalid", field: "client.timeout"},
		{name: "unknown session", yaml: "client:\n  base_url: https://x.io\n  session: shared\n", category: "invalid", field: "client.session"},
		{name: "unknown verbosity", yaml: "client:\n  base_url: https://x.io\n  log:\n    verbosity: loud\n", category: "invalid", field: "client.log.verbosity"},
		{name: "negative retries", yaml: "client:\n  base_url: https://x.io\n  retry:\n    max_attempts: -1\n", category: "invalid", field: "client.retry.max_attempts"},
		{name: "tls version", yaml: "client:\n  base_url: https://x.io\n  tls:\n    min_version: \"1.0\"\n", category: "invalid", field: "client.tls.min_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithYAML([]byte(tt.yaml)), WithEnviron(noEnv))
			require.Error(t, err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.category, cerr.Category)
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, err.Error(), "client config")
		})
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(WithYAML([]byte("client:\n  base_url: https://x.io\nlog:\n  level: chatty\n")), WithEnviron(noEnv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log config")
}

func TestLoadObservabilityValidation(t *testing.T) {
	_, err := Load(
		WithYAML([]byte("client:\n  base_url: https://x.io\nobservability:\n  enabled: true\n")),
		WithEnviron(noEnv),
	)
	assert.ErrorIs(t, err, observability.ErrMissingServiceName)
}

func TestCustomSections(t *testing.T) {
	cfg, err := Load(WithYAML([]byte(baseYAML)), WithEnviron(noEnv))
	require.NoError(t, err)

	assert.True(t, cfg.Exists("jira.project"))
	assert.False(t, cfg.Exists("gitlab.project"))
	assert.Equal(t, "PROJ", cfg.GetString("jira.project", "x"))
	assert.Equal(t, "fallback", cfg.GetString("gitlab.project", "fallback"))
	assert.Equal(t, 2*time.Minute, cfg.GetDuration("jira.poll", time.Second))
	assert.Equal(t, time.Second, cfg.GetDuration("gitlab.poll", time.Second))

	var jira struct {
		Project string        `mapstructure:"project"`
		Poll    time.Duration `mapstructure:"poll"`
	}
	require.NoError(t, cfg.Unmarshal("jira", &jira))
	assert.Equal(t, "PROJ", jira.Project)
	assert.Equal(t, 2*time.Minute, jira.Poll)

	assert.Error(t, cfg.Unmarshal("gitlab", &jira))
	assert.Error(t, (&Config{}).Unmarshal("jira", &jira))
}

func TestTLSConfig(t *testing.T) {
	cfg, err := TLSConfig{}.TLS()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	cfg, err = TLSConfig{MinVersion: "1.3", InsecureSkipVerify: true}.TLS()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.True(t, cfg.InsecureSkipVerify)

	_, err = TLSConfig{MinVersion: "1.1"}.TLS()
	assert.Error(t, err)
}

func TestKeyPath(t *testing.T) {
	assert.Equal(t, "base_url", keyPath("ClientConfig.BaseURL"))
	assert.Equal(t, "retry.max_attempts", keyPath("ClientConfig.Retry.MaxAttempts"))
	assert.Equal(t, "tls.min_version", keyPath("ClientConfig.TLS.MinVersion"))
	assert.Equal(t, "log.max_payload_bytes", keyPath("ClientConfig.Log.MaxPayloadBytes"))
}

func TestConfigErrorMessage(t *testing.T) {
	err := NewInvalidFieldError("client.session", "unknown profile", []string{"ephemeral", "persistent"})
	assert.Equal(t, "config_invalid: client.session unknown profile must be one of: ephemeral, persistent", err.Error())

	missing := NewMissingFieldError("client.base_url", "NETCORE_CLIENT__BASE_URL", "client.base_url")
	assert.Contains(t, missing.Error(), "config_missing: client.base_url required set NETCORE_CLIENT__BASE_URL")
}

func TestLogConfigNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "debug", SensitiveFields: []string{"x-jira-session"}, MaskValue: "[hidden]"}.NewLogger(&buf)

	log.Debug().Str("X-Jira-Session", "abc").Str("password", "pw").Str("project", "PROJ").Msg("probe")

	out := buf.String()
	assert.Contains(t, out, `"X-Jira-Session":"[hidden]"`)
	assert.Contains(t, out, `"password":"[hidden]"`)
	assert.Contains(t, out, `"project":"PROJ"`)
}
