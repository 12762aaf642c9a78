// Package config loads the orchestrator's configuration: graph/flow
// defaults, the checkpoint/idempotency store backend, event bus buffering
// and schema enforcement, and the ambient observability settings. Config files are YAML
// or JSON5, may $include other files, and support ${ENV_VAR} expansion.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for an orchestrator process.
type Config struct {
	Version       int                 `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	EventBus      EventBusConfig      `yaml:"event_bus"`
	Graph         GraphConfig         `yaml:"graph"`
	Tools         ToolsConfig         `yaml:"tools"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the process's own listen addresses.
type ServerConfig struct {
	Host       string `yaml:"host"`
	HTTPPort   int    `yaml:"http_port"`
	GRPCPort   int    `yaml:"grpc_port"`
	MetricsPort int   `yaml:"metrics_port"`
}

// StoreConfig selects and configures the checkpoint/idempotency backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend  string         `yaml:"backend"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig mirrors internal/store.PostgresConfig so it can be
// decoded straight from YAML/JSON5 before being handed to the store.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxConns       int32         `yaml:"max_conns"`
}

// EventBusConfig configures the unified event bus's channel buffering and
// schema enforcement.
type EventBusConfig struct {
	BufferSize   int  `yaml:"buffer_size"`
	StrictSchema bool `yaml:"strict_schema"`
}

// GraphConfig configures graph.Runner defaults.
type GraphConfig struct {
	Metadata MetadataPolicyConfig `yaml:"metadata"`
}

// MetadataPolicyConfig mirrors graph.MetadataPolicy.
type MetadataPolicyConfig struct {
	WarnThresholdBytes int    `yaml:"warn_threshold_bytes"`
	HardLimitBytes     int    `yaml:"hard_limit_bytes"`
	OnOverflow         string `yaml:"on_overflow"` // "WARN" | "FAIL" | "IGNORE"
}

// applyDefaults fills in the zero-valued fields of cfg with the
// orchestrator's defaults.
func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyEventBusDefaults(&cfg.EventBus)
	applyGraphDefaults(&cfg.Graph)
	applyToolsDefaults(&cfg.Tools)
	applyLoggingDefaults(&cfg.Observability.Logging)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = 50051
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Postgres.ConnectTimeout == 0 {
		cfg.Postgres.ConnectTimeout = 5 * time.Second
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
}

func applyEventBusDefaults(cfg *EventBusConfig) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}
}

func applyGraphDefaults(cfg *GraphConfig) {
	if cfg.Metadata.WarnThresholdBytes == 0 {
		cfg.Metadata.WarnThresholdBytes = 5 * 1024
	}
	if cfg.Metadata.OnOverflow == "" {
		cfg.Metadata.OnOverflow = "WARN"
	}
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Policies.Default == "" {
		cfg.Policies.Default = "deny"
	}
	if cfg.Execution.Concurrency == 0 {
		cfg.Execution.Concurrency = 4
	}
	if cfg.Execution.PerCallTimeout == 0 {
		cfg.Execution.PerCallTimeout = 30 * time.Second
	}
	if cfg.Execution.MaxAttempts == 0 {
		cfg.Execution.MaxAttempts = 1
	}
	if cfg.Execution.BackoffInitial == 0 {
		cfg.Execution.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.Execution.BackoffMax == 0 {
		cfg.Execution.BackoffMax = 30 * time.Second
	}
	if cfg.Execution.BackoffFactor == 0 {
		cfg.Execution.BackoffFactor = 2
	}
	if cfg.RateLimit.RequestsPerBurst == 0 {
		cfg.RateLimit.RequestsPerBurst = 10
	}
	if cfg.RateLimit.RefillInterval == 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 256
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// ConfigValidationError describes a single invalid field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func validateConfig(cfg *Config) error {
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "postgres" {
		return &ConfigValidationError{Field: "store.backend", Reason: "must be \"memory\" or \"postgres\""}
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.Postgres.DSN == "" {
		return &ConfigValidationError{Field: "store.postgres.dsn", Reason: "required when backend is postgres"}
	}
	switch cfg.Graph.Metadata.OnOverflow {
	case "WARN", "FAIL", "IGNORE":
	default:
		return &ConfigValidationError{Field: "graph.metadata.on_overflow", Reason: "must be WARN, FAIL, or IGNORE"}
	}
	if cfg.Tools.Policies.Default != "allow" && cfg.Tools.Policies.Default != "deny" {
		return &ConfigValidationError{Field: "tools.policies.default", Reason: "must be \"allow\" or \"deny\""}
	}
	return nil
}

// Load reads path (resolving $include directives and ${ENV} expansion),
// applies defaults, validates the result, and checks its declared version.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
