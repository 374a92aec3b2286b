// Package config loads editor settings: built-in defaults, then an
// optional YAML file, then EDITOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/scenario-editor/internal/logging"
	"github.com/signalsfoundry/scenario-editor/internal/observability"
	"github.com/signalsfoundry/scenario-editor/internal/store"
	"github.com/signalsfoundry/scenario-editor/model"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendDynamo = "dynamo"
)

// Config is the complete editor configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	AutoSave AutoSaveConfig `yaml:"autosave"`
	History  HistoryConfig  `yaml:"history"`
	Editor   EditorConfig   `yaml:"editor"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// StoreConfig selects and tunes the scenario store.
type StoreConfig struct {
	Backend   string        `yaml:"backend" validate:"required,oneof=memory file dynamo"`
	Dir       string        `yaml:"dir" validate:"required_if=Backend file"`
	Compress  bool          `yaml:"compress"`
	CacheSize int           `yaml:"cacheSize" validate:"gte=0"`
	Dynamo    DynamoConfig  `yaml:"dynamo"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// DynamoConfig locates the DynamoDB table.
type DynamoConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// BreakerConfig tunes the circuit breaker in front of the backend.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"maxRequests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failureThreshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"minRequests" validate:"gte=1"`
}

// AutoSaveConfig tunes the debounced auto-save.
type AutoSaveConfig struct {
	QuietPeriod time.Duration `yaml:"quietPeriod" validate:"gt=0"`
	MaxRetries  int           `yaml:"maxRetries" validate:"gte=0"`
}

// HistoryConfig bounds undo history.
type HistoryConfig struct {
	Limit int `yaml:"limit" validate:"gte=1"`
}

// EditorConfig holds session defaults.
type EditorConfig struct {
	DefaultScenarioType string `yaml:"defaultScenarioType" validate:"oneof=realistic custom"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json text"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" validate:"gte=0"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// TracingConfig selects the span exporter; see observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"serviceName"`
	SampleRatio float64 `yaml:"sampleRatio" validate:"gte=0,lte=1"`
}

// Default returns the built-in configuration: an in-memory store and the
// standard auto-save and history settings.
func Default() *Config {
	b := store.DefaultBreakerConfig("")
	return &Config{
		Store: StoreConfig{
			Backend:   BackendMemory,
			CacheSize: 64,
			Breaker: BreakerConfig{
				MaxRequests:      b.MaxRequests,
				Interval:         b.Interval,
				Timeout:          b.Timeout,
				FailureThreshold: b.FailureThreshold,
				MinRequests:      b.MinRequests,
			},
		},
		AutoSave: AutoSaveConfig{QuietPeriod: 500 * time.Millisecond, MaxRetries: 3},
		History:  HistoryConfig{Limit: 50},
		Editor:   EditorConfig{DefaultScenarioType: string(model.ScenarioCustom)},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{Exporter: "stdout", ServiceName: "scenario-editor", SampleRatio: 1},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays EDITOR_* variables. lookup is os.LookupEnv outside
// tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("EDITOR_STORE_BACKEND", &c.Store.Backend)
	str("EDITOR_STORE_DIR", &c.Store.Dir)
	boolean("EDITOR_STORE_COMPRESS", &c.Store.Compress)
	integer("EDITOR_STORE_CACHE_SIZE", &c.Store.CacheSize)
	str("EDITOR_DYNAMO_TABLE", &c.Store.Dynamo.Table)
	str("EDITOR_DYNAMO_REGION", &c.Store.Dynamo.Region)
	str("EDITOR_DYNAMO_ENDPOINT", &c.Store.Dynamo.Endpoint)
	boolean("EDITOR_BREAKER_ENABLED", &c.Store.Breaker.Enabled)
	duration("EDITOR_AUTOSAVE_QUIET_PERIOD", &c.AutoSave.QuietPeriod)
	integer("EDITOR_AUTOSAVE_MAX_RETRIES", &c.AutoSave.MaxRetries)
	integer("EDITOR_HISTORY_LIMIT", &c.History.Limit)
	str("EDITOR_DEFAULT_SCENARIO_TYPE", &c.Editor.DefaultScenarioType)
	str("EDITOR_LOG_LEVEL", &c.Logging.Level)
	str("EDITOR_LOG_FORMAT", &c.Logging.Format)
	str("EDITOR_LOG_FILE", &c.Logging.File)
	str("EDITOR_METRICS_ADDR", &c.Metrics.Addr)
	boolean("EDITOR_TRACING_ENABLED", &c.Tracing.Enabled)
	str("EDITOR_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("EDITOR_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("EDITOR_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	float("EDITOR_TRACING_SAMPLE_RATIO", &c.Tracing.SampleRatio)

	c.Store.Backend = strings.ToLower(c.Store.Backend)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Tracing.Exporter = strings.ToLower(c.Tracing.Exporter)
	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Backend == BackendDynamo && c.Store.Dynamo.Table == "" {
		return errors.New("invalid config: store.dynamo.table is required for the dynamo backend")
	}
	return nil
}

// ScenarioType returns the default type for new scenarios.
func (c *Config) ScenarioType() model.ScenarioType {
	return model.ScenarioType(c.Editor.DefaultScenarioType)
}

// LoggerConfig converts to logging.Config.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		AddSource:  true,
	}
}

// TracerConfig converts to observability.TracingConfig.
func (c *Config) TracerConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// StoreBreakerConfig converts to store.BreakerConfig.
func (c *Config) StoreBreakerConfig() store.BreakerConfig {
	b := c.Store.Breaker
	return store.BreakerConfig{
		Name:             "store-" + c.Store.Backend,
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.FailureThreshold,
		MinRequests:      b.MinRequests,
	}
}
