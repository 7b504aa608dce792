package observability

import "errors"

var (
	// ErrNilConfig is returned when Validate is called on a nil Config.
	ErrNilConfig = errors.New("observability: config is nil")

	// ErrMissingServiceName is returned when telemetry is enabled without a service name.
	ErrMissingServiceName = errors.New("observability: service name is required when observability is enabled")

	// ErrInvalidSampleRate is returned for a trace sample rate outside [0.0, 1.0].
	ErrInvalidSampleRate = errors.New("observability: trace sample rate must be between 0.0 and 1.0")

	// ErrInvalidProtocol is returned for a protocol other than "http" or "grpc".
	ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

	// ErrInvalidEndpointFormat is returned when an endpoint does not match its
	// protocol: gRPC takes "host:port", HTTP needs an http:// or https:// scheme.
	ErrInvalidEndpointFormat = errors.New("observability: invalid endpoint format for protocol")

	ErrInvalidCompression = errors.New("observability: compression must be either 'gzip' or 'none'")
	ErrInvalidTemporality = errors.New("observability: temporality must be either 'delta' or 'cumulative'")
)
