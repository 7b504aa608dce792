package httpclient

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-net/config"
	"github.com/gaborage/go-bricks-net/logger"
)

// NewFromConfig builds a client from a loaded configuration profile. The
// tracer and meter providers fall back to the OpenTelemetry globals, which
// observability.NewProvider installs.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Client, error) {
	builder, err := BuilderFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return builder.Build()
}

// BuilderFromConfig prepares a Builder from cfg so that callers can add
// options, such as a custom serializer, before Build.
func BuilderFromConfig(cfg *config.Config, log logger.Logger) (*Builder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("httpclient: nil config")
	}
	cc := cfg.Client

	verbosity, err := ParseVerbosity(cc.Log.Verbosity)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	session, err := ParseSession(cc.Session)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	tlsConfig, err := cc.TLS.TLS()
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}

	b := NewBuilder(cc.BaseURL, log).
		WithTimeout(cc.Timeout).
		WithCommonHeaders(cc.Headers).
		WithVerbosity(verbosity).
		WithMaxPayloadLogBytes(cc.Log.MaxPayloadBytes).
		WithSession(session).
		WithTLSConfig(tlsConfig)

	if cc.Rate.Limit > 0 {
		burst := cc.Rate.Burst
		if burst < 1 {
			burst = 1
		}
		b = b.WithRateLimit(rate.Limit(cc.Rate.Limit), burst)
	}
	if cc.Progress.Interval > 0 {
		b = b.WithProgressInterval(cc.Progress.Interval)
	}
	if cc.Await.CancelGrace > 0 {
		b = b.WithCancelGrace(cc.Await.CancelGrace)
	}
	return b, nil
}

// RetryPolicyFromConfig returns the fixed-delay policy configured under client.retry.
func RetryPolicyFromConfig(cfg *config.Config) (RetryPolicy, error) {
	if cfg == nil {
		return RetryPolicy{}, fmt.Errorf("httpclient: nil config")
	}
	return RetryPolicy{
		MaxAttempts: cfg.Client.Retry.MaxAttempts,
		Delay:       cfg.Client.Retry.Delay,
	}, nil
}
