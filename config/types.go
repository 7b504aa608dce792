package config

import (
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-bricks-net/logger"
	"github.com/gaborage/go-bricks-net/observability"
)

// Config is the complete client profile.
type Config struct {
	Client        ClientConfig         `koanf:"client" json:"client" yaml:"client" mapstructure:"client"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`

	// k keeps the merged sources for keys outside the typed sections.
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// ClientConfig configures one HTTP client instance.
type ClientConfig struct {
	BaseURL  string            `koanf:"base_url" json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,base_url"`
	Timeout  time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	Session  string            `koanf:"session" json:"session" yaml:"session" mapstructure:"session" validate:"omitempty,oneof=ephemeral persistent"`
	Log      ClientLogConfig   `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Retry    RetryConfig       `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`
	Rate     RateConfig        `koanf:"rate" json:"rate" yaml:"rate" mapstructure:"rate"`
	TLS      TLSConfig         `koanf:"tls" json:"tls" yaml:"tls" mapstructure:"tls"`
	Progress ProgressConfig    `koanf:"progress" json:"progress" yaml:"progress" mapstructure:"progress"`
	Await    AwaitConfig       `koanf:"await" json:"await" yaml:"await" mapstructure:"await"`
}

// ClientLogConfig controls request and response logging.
type ClientLogConfig struct {
	// Verbosity is silent, errors or verbose.
	Verbosity       string `koanf:"verbosity" json:"verbosity" yaml:"verbosity" mapstructure:"verbosity" validate:"omitempty,oneof=silent errors verbose"`
	MaxPayloadBytes int    `koanf:"max_payload_bytes" json:"max_payload_bytes" yaml:"max_payload_bytes" mapstructure:"max_payload_bytes" validate:"gte=0"`
}

// RetryConfig is the default fixed-delay retry policy. Zero attempts disables retries.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	Delay       time.Duration `koanf:"delay" json:"delay" yaml:"delay" mapstructure:"delay" validate:"gte=0"`
}

// RateConfig throttles outgoing requests. A zero limit means unlimited.
type RateConfig struct {
	Limit float64 `koanf:"limit" json:"limit" yaml:"limit" mapstructure:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// TLSConfig tunes the transport TLS settings.
type TLSConfig struct {
	// MinVersion is "1.2" or "1.3".
	MinVersion         string `koanf:"min_version" json:"min_version" yaml:"min_version" mapstructure:"min_version" validate:"omitempty,oneof=1.2 1.3"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify" json:"insecure_skip_verify" yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// ProgressConfig sets how often transfer progress is reported.
type ProgressConfig struct {
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// AwaitConfig bounds how long a cancelled operation may take to settle.
type AwaitConfig struct {
	CancelGrace time.Duration `koanf:"cancel_grace" json:"cancel_grace" yaml:"cancel_grace" mapstructure:"cancel_grace" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`

	// SensitiveFields extends the default list of masked key fragments.
	SensitiveFields []string `koanf:"sensitive_fields" json:"sensitive_fields" yaml:"sensitive_fields" mapstructure:"sensitive_fields"`
	MaskValue       string   `koanf:"mask_value" json:"mask_value" yaml:"mask_value" mapstructure:"mask_value"`
}

// TLS returns the transport TLS configuration.
func (t TLSConfig) TLS() (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: t.InsecureSkipVerify} //nolint:gosec // opt-in for test environments
	switch t.MinVersion {
	case "", "1.2":
		cfg.MinVersion = tls.VersionTLS12
	case "1.3":
		cfg.MinVersion = tls.VersionTLS13
	default:
		return nil, NewInvalidFieldError("client.tls.min_version", fmt.Sprintf("unsupported version %q", t.MinVersion), []string{"1.2", "1.3"})
	}
	return cfg, nil
}

// NewLogger builds the process logger writing to w. Extra sensitive fields
// are added to the default masking list.
func (l LogConfig) NewLogger(w io.Writer) *logger.ZeroLogger {
	filter := logger.DefaultFilterConfig()
	filter.SensitiveFields = append(filter.SensitiveFields, l.SensitiveFields...)
	if l.MaskValue != "" {
		filter.MaskValue = l.MaskValue
	}
	return logger.NewWithWriter(l.Level, l.Pretty, w, filter)
}
