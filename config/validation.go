package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gaborage/go-bricks-net/validation"
)

// Validate checks every section of cfg and reports the first failing one.
func Validate(cfg *Config) error {
	if err := validateClient(&cfg.Client); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := validation.Struct(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := cfg.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateClient(cfg *ClientConfig) error {
	err := validation.Struct(cfg)
	if err == nil {
		return nil
	}

	var verr *validation.Error
	if !errors.As(err, &verr) || len(verr.Errors) == 0 {
		return err
	}

	first := verr.Errors[0]
	field := "client." + keyPath(first.Field)
	switch {
	case verr.HasField("BaseURL") && strings.TrimSpace(cfg.BaseURL) == "":
		return NewMissingFieldError("client.base_url", "NETCORE_CLIENT__BASE_URL", "client.base_url")
	case verr.HasField("Session"):
		return NewInvalidFieldError("client.session", first.Message, []string{"ephemeral", "persistent"})
	case verr.HasField("Verbosity"):
		return NewInvalidFieldError("client.log.verbosity", first.Message, []string{"silent", "errors", "verbose"})
	}
	return NewInvalidFieldError(field, first.Message, nil)
}

// keyPath turns a validator namespace such as ClientConfig.Retry.MaxAttempts
// into the configuration key retry.max_attempts.
func keyPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
