package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/logging"
)

// Supported file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RELAY_"

// Config is the complete relay configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Buffer   BufferConfig   `yaml:"buffer" toml:"buffer"`
}

// RegistryConfig configures the dispatch registry.
type RegistryConfig struct {
	// FailurePolicy is fail-fast or isolate.
	FailurePolicy string `yaml:"failure_policy" toml:"failure_policy"`
	// OnceMode is self or identifier.
	OnceMode string `yaml:"once_mode" toml:"once_mode"`
	// PatternRemoval is equal or matching.
	PatternRemoval string `yaml:"pattern_removal" toml:"pattern_removal"`
	// ListenerTimeout bounds each listener call. Zero disables it.
	ListenerTimeout Duration `yaml:"listener_timeout" toml:"listener_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Encoding    string `yaml:"encoding" toml:"encoding"`
	Development bool   `yaml:"development" toml:"development"`
}

// MetricsConfig configures prometheus metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" toml:"namespace"`
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr" toml:"addr"`
}

// BufferConfig configures emission buffers.
type BufferConfig struct {
	// Limit bounds held emissions. Zero means unbounded.
	Limit int `yaml:"limit" toml:"limit"`
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			FailurePolicy:  event.FailFast.String(),
			OnceMode:       event.OnceRemoveSelf.String(),
			PatternRemoval: event.RemoveEqual.String(),
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "relay",
		},
	}
}

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads the file at path over the defaults, applies RELAY_*
// environment overrides and validates the result. An empty path or a missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			format, ferr := FormatOf(path)
			if ferr != nil {
				return nil, ferr
			}
			if err := cfg.decode(path, format, data); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format over the defaults and validates it.
// Environment overrides are not applied.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("<input>", format, data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(source, format string, data []byte) error {
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			// empty document
			err = nil
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if err != nil {
		return &ParseError{Path: source, Format: format, Err: err}
	}
	return nil
}

// Marshal encodes the configuration in the given format.
func (c *Config) Marshal(format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatTOML:
		return toml.Marshal(c)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// envSetters maps environment variables to the setting they override.
var envSetters = map[string]func(c *Config, v string) error{
	"FAILURE_POLICY":  func(c *Config, v string) error { c.Registry.FailurePolicy = v; return nil },
	"ONCE_MODE":       func(c *Config, v string) error { c.Registry.OnceMode = v; return nil },
	"PATTERN_REMOVAL": func(c *Config, v string) error { c.Registry.PatternRemoval = v; return nil },
	"LISTENER_TIMEOUT": func(c *Config, v string) error {
		return c.Registry.ListenerTimeout.UnmarshalText([]byte(v))
	},
	"LOG_LEVEL":    func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_ENCODING": func(c *Config, v string) error { c.Log.Encoding = v; return nil },
	"LOG_DEVELOPMENT": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Log.Development = b
		return err
	},
	"METRICS_NAMESPACE": func(c *Config, v string) error { c.Metrics.Namespace = v; return nil },
	"METRICS_ADDR":      func(c *Config, v string) error { c.Metrics.Addr = v; return nil },
	"BUFFER_LIMIT": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Buffer.Limit = n
		return err
	},
}

// ApplyEnv applies RELAY_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error
	for name, set := range envSetters {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(c, v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
	}
	return errs
}

// Validate checks every setting and returns all problems found.
func (c *Config) Validate() error {
	var errs error
	invalid := func(path, msg string, v any) {
		errs = multierr.Append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if _, err := event.ParseFailurePolicy(c.Registry.FailurePolicy); err != nil {
		invalid("registry.failure_policy", "must be fail-fast or isolate", c.Registry.FailurePolicy)
	}
	if _, err := event.ParseOnceMode(c.Registry.OnceMode); err != nil {
		invalid("registry.once_mode", "must be self or identifier", c.Registry.OnceMode)
	}
	if _, err := event.ParsePatternRemoval(c.Registry.PatternRemoval); err != nil {
		invalid("registry.pattern_removal", "must be equal or matching", c.Registry.PatternRemoval)
	}
	if c.Registry.ListenerTimeout < 0 {
		invalid("registry.listener_timeout", "must not be negative", c.Registry.ListenerTimeout.Std())
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	if c.Log.Encoding != "" && c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		invalid("log.encoding", "must be json or console", c.Log.Encoding)
	}
	if strings.ContainsAny(c.Metrics.Namespace, " -.:") {
		invalid("metrics.namespace", "must be a valid metric name prefix", c.Metrics.Namespace)
	}
	if c.Buffer.Limit < 0 {
		invalid("buffer.limit", "must not be negative", c.Buffer.Limit)
	}

	return errs
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Encoding:    c.Log.Encoding,
		Development: c.Log.Development,
	}
}

// RegistryOptions converts the registry section into registry options.
// logger and metrics may be nil.
func (c *Config) RegistryOptions(logger *zap.Logger, metrics *event.Metrics) ([]event.RegistryOption, error) {
	policy, err := event.ParseFailurePolicy(c.Registry.FailurePolicy)
	if err != nil {
		return nil, err
	}
	once, err := event.ParseOnceMode(c.Registry.OnceMode)
	if err != nil {
		return nil, err
	}
	removal, err := event.ParsePatternRemoval(c.Registry.PatternRemoval)
	if err != nil {
		return nil, err
	}

	opts := []event.RegistryOption{
		event.WithFailurePolicy(policy),
		event.WithOnceMode(once),
		event.WithPatternRemoval(removal),
		event.WithListenerTimeout(c.Registry.ListenerTimeout.Std()),
	}
	if logger != nil {
		opts = append(opts, event.WithLogger(logger))
	}
	if metrics != nil {
		opts = append(opts, event.WithMetrics(metrics))
	}
	return opts, nil
}

// BufferOptions converts the buffer section into buffer options.
func (c *Config) BufferOptions() []event.BufferOption {
	return []event.BufferOption{event.WithBufferLimit(c.Buffer.Limit)}
}
