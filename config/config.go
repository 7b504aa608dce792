// Package config loads the HTTP client profile from defaults, an optional
// YAML document and the environment, in increasing order of priority.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix marks the environment variables read by Load. Nested keys
// are separated by a double underscore: NETCORE_CLIENT__RETRY__MAX_ATTEMPTS
// sets client.retry.max_attempts.
const DefaultEnvPrefix = "NETCORE_"

const envKeySeparator = "__"

var koanfConf = koanf.UnmarshalConf{Tag: "mapstructure"}

type loadOptions struct {
	files     []string
	documents [][]byte
	envPrefix string
	environ   func() []string
}

// Option customises Load.
type Option func(*loadOptions)

// WithFile loads the YAML file at path. A missing file is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.files = append(o.files, path) }
}

// WithYAML loads an in-memory YAML document after any files.
func WithYAML(doc []byte) Option {
	return func(o *loadOptions) { o.documents = append(o.documents, doc) }
}

// WithEnvPrefix replaces DefaultEnvPrefix. An empty prefix disables the
// environment source.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) Option {
	return func(o *loadOptions) { o.environ = environ }
}

// Load builds a validated Config. Sources are applied in order: defaults,
// YAML files, YAML documents, environment.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envPrefix: DefaultEnvPrefix, environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range o.files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	for i, doc := range o.documents {
		if err := k.Load(rawbytes.Provider(doc), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml document %d: %w", i, err)
		}
	}

	if o.envPrefix != "" {
		if err := k.Load(envprovider.Provider(".", envprovider.Opt{
			Prefix:        o.envPrefix,
			TransformFunc: envKeyTransform(o.envPrefix),
			EnvironFunc:   o.environ,
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanfConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKeyTransform maps NETCORE_CLIENT__BASE_URL to client.base_url.
func envKeyTransform(prefix string) func(key, value string) (string, any) {
	return func(key, value string) (string, any) {
		key = strings.TrimPrefix(key, prefix)
		key = strings.ToLower(strings.ReplaceAll(key, envKeySeparator, "."))
		return key, value
	}
}

func defaults() map[string]any {
	return map[string]any{
		"client.timeout":                  "30s",
		"client.session":                  "ephemeral",
		"client.log.verbosity":            "verbose",
		"client.log.max_payload_bytes":    4096,
		"client.retry.max_attempts":       0,
		"client.retry.delay":              "1s",
		"client.rate.limit":               0,
		"client.rate.burst":               1,
		"client.tls.min_version":          "1.2",
		"client.tls.insecure_skip_verify": false,
		"client.progress.interval":        "500ms",
		"client.await.cancel_grace":       "1s",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled": false,
	}
}
