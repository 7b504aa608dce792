package config

import (
	"fmt"
	"time"
)

// Exists reports whether key was set by any source, typed or not.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}

// GetString returns the string at key, or defaultVal when the key is unset.
func (c *Config) GetString(key, defaultVal string) string {
	if !c.Exists(key) {
		return defaultVal
	}
	return c.k.String(key)
}

// GetDuration returns the duration at key, or defaultVal when the key is unset.
// Values may be Go duration strings ("750ms") or integer nanoseconds.
func (c *Config) GetDuration(key string, defaultVal time.Duration) time.Duration {
	if !c.Exists(key) {
		return defaultVal
	}
	return c.k.Duration(key)
}

// Unmarshal decodes the subtree at key into out using mapstructure tags.
// It is how callers read API-specific sections the typed Config does not model.
func (c *Config) Unmarshal(key string, out any) error {
	if c.k == nil {
		return fmt.Errorf("config: not loaded")
	}
	if !c.k.Exists(key) {
		return fmt.Errorf("config: key %q not found", key)
	}
	return c.k.UnmarshalWithConf(key, out, koanfConf)
}
