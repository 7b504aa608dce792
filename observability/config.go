package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout sends telemetry to stdout instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP selects OTLP over HTTP/protobuf. Endpoints carry a scheme.
	ProtocolHTTP = "http"

	// ProtocolGRPC selects OTLP over gRPC. Endpoints are "host:port".
	ProtocolGRPC = "grpc"

	CompressionGzip = "gzip"
	CompressionNone = "none"

	// TemporalityDelta reports the change since the previous export.
	TemporalityDelta = "delta"
	// TemporalityCumulative reports totals since process start.
	TemporalityCumulative = "cumulative"

	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config controls the OpenTelemetry providers that back HTTP client spans
// and metrics. It is decoded by the config package through mapstructure tags.
type Config struct {
	// Enabled turns telemetry export on. When false NewProvider returns no-op providers.
	Enabled bool `mapstructure:"enabled"`

	Service ServiceConfig `mapstructure:"service"`

	// Environment is recorded as deployment.environment.name.
	Environment string `mapstructure:"environment"`

	Trace   TraceConfig   `mapstructure:"trace"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServiceConfig identifies the process in exported telemetry.
type ServiceConfig struct {
	// Name is required when telemetry is enabled.
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	// Enabled defaults to true when telemetry is enabled. An explicit false is kept.
	Enabled *bool `mapstructure:"enabled"`

	// Endpoint is an OTLP endpoint or EndpointStdout.
	Endpoint string `mapstructure:"endpoint"`

	// Protocol is ProtocolHTTP or ProtocolGRPC.
	Protocol string `mapstructure:"protocol"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure"`

	// Headers are sent with every export, typically for collector authentication.
	Headers map[string]string `mapstructure:"headers"`

	// Compression is CompressionGzip or CompressionNone.
	Compression string `mapstructure:"compression"`

	Sample SampleConfig `mapstructure:"sample"`
	Batch  BatchConfig  `mapstructure:"batch"`
	Export ExportConfig `mapstructure:"export"`
}

// SampleConfig configures head sampling.
type SampleConfig struct {
	// Rate is the fraction of traces kept, in [0, 1]. nil means 1.
	Rate *float64 `mapstructure:"rate"`
}

// BatchConfig configures the batch span processor.
type BatchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Size    int           `mapstructure:"size"`
}

// ExportConfig bounds a single export call.
type ExportConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig configures metric export. Protocol, Insecure and Headers
// fall back to the trace settings when unset.
type MetricsConfig struct {
	Enabled     *bool             `mapstructure:"enabled"`
	Endpoint    string            `mapstructure:"endpoint"`
	Protocol    string            `mapstructure:"protocol"`
	Insecure    *bool             `mapstructure:"insecure"`
	Headers     map[string]string `mapstructure:"headers"`
	Compression string            `mapstructure:"compression"`
	Temporality string            `mapstructure:"temporality"`

	// Interval between periodic exports.
	Interval time.Duration `mapstructure:"interval"`

	Export ExportConfig `mapstructure:"export"`
}

func (c *Config) isDevelopment(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

// ApplyDefaults fills unset fields. Explicit zero sample rates and explicit
// false switches are preserved.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) applyTraceDefaults() {
	t := &c.Trace
	if t.Endpoint == "" {
		t.Endpoint = EndpointStdout
	}
	if c.Enabled && t.Enabled == nil {
		t.Enabled = BoolPtr(true)
	}
	if t.Protocol == "" {
		t.Protocol = ProtocolHTTP
	}
	if t.Compression == "" {
		t.Compression = CompressionGzip
	}
	if t.Sample.Rate == nil {
		t.Sample.Rate = Float64Ptr(1.0)
	}
	if t.Batch.Size == 0 {
		t.Batch.Size = 512
	}

	// Development favours fast feedback, production larger batches.
	if t.Batch.Timeout == 0 {
		t.Batch.Timeout = 5 * time.Second
		if c.isDevelopment(t.Endpoint) {
			t.Batch.Timeout = 500 * time.Millisecond
		}
	}
	if t.Export.Timeout == 0 {
		t.Export.Timeout = 60 * time.Second
		if c.isDevelopment(t.Endpoint) {
			t.Export.Timeout = 10 * time.Second
		}
	}
}

func (c *Config) applyMetricsDefaults() {
	m := &c.Metrics
	if m.Endpoint == "" {
		m.Endpoint = EndpointStdout
	}
	if c.Enabled && m.Enabled == nil {
		m.Enabled = BoolPtr(true)
	}
	if m.Protocol == "" {
		m.Protocol = c.Trace.Protocol
	}
	if m.Insecure == nil {
		m.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if len(m.Headers) == 0 {
		m.Headers = cloneHeaderMap(c.Trace.Headers)
	}
	if m.Compression == "" {
		m.Compression = CompressionGzip
	}
	if m.Temporality == "" {
		m.Temporality = TemporalityCumulative
	}
	if m.Interval == 0 {
		m.Interval = 10 * time.Second
	}
	if m.Export.Timeout == 0 {
		m.Export.Timeout = 60 * time.Second
		if c.isDevelopment(m.Endpoint) {
			m.Export.Timeout = 10 * time.Second
		}
	}
}

// Validate checks the configuration. A disabled configuration is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if err := c.validateTraceConfig(); err != nil {
		return err
	}
	return c.validateMetricsConfig()
}

func (c *Config) validateTraceConfig() error {
	if c.Trace.Sample.Rate != nil {
		if rate := *c.Trace.Sample.Rate; rate < 0.0 || rate > 1.0 {
			return ErrInvalidSampleRate
		}
	}
	if err := validateCompression(c.Trace.Compression); err != nil {
		return err
	}
	return validateEndpoint(c.Trace.Endpoint, c.Trace.Protocol, ProtocolHTTP)
}

func (c *Config) validateMetricsConfig() error {
	if c.Metrics.Enabled == nil || !*c.Metrics.Enabled {
		return nil
	}
	if err := validateCompression(c.Metrics.Compression); err != nil {
		return err
	}
	switch c.Metrics.Temporality {
	case "", TemporalityDelta, TemporalityCumulative:
	default:
		return ErrInvalidTemporality
	}
	return validateEndpoint(c.Metrics.Endpoint, c.Metrics.Protocol, c.Trace.Protocol)
}

func validateCompression(compression string) error {
	switch compression {
	case "", CompressionGzip, CompressionNone:
		return nil
	}
	return ErrInvalidCompression
}

// validateEndpoint checks protocol and endpoint shape: gRPC endpoints are
// "host:port", HTTP endpoints carry a scheme.
func validateEndpoint(endpoint, protocol, fallback string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = fallback
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolGRPC:
		if hasScheme {
			return ErrInvalidEndpointFormat
		}
	case ProtocolHTTP:
		if !hasScheme {
			return ErrInvalidEndpointFormat
		}
	default:
		return ErrInvalidProtocol
	}
	return nil
}
