// Package config provides unified configuration for the QuakeFlow pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full pipeline configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Source configuration
	Source SourceConfig `json:"source" yaml:"source"`

	// Warehouse configuration
	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse"`

	// Artifact storage configuration (snapshots and exports)
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Transform configuration
	Transform TransformConfig `json:"transform" yaml:"transform"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// Retry policy for pipeline stages
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// SourceConfig holds the external data source configuration.
type SourceConfig struct {
	// Path is the tabular source file to extract
	Path string `json:"path" yaml:"path"`
}

// WarehouseConfig holds the data warehouse configuration.
type WarehouseConfig struct {
	// Path is the warehouse database file
	Path string `json:"path" yaml:"path"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// SnapshotPrefix is the object prefix for raw batch snapshots
	SnapshotPrefix string `json:"snapshot_prefix" yaml:"snapshot_prefix"`

	// StagingDir is the local directory for staging uploads
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// TransformConfig holds transformation policy knobs.
type TransformConfig struct {
	// KeepUnparsedTimes controls whether rows with valid coordinates and
	// magnitude but an unparseable date/time pair are still inserted into
	// the analytics store (with null timestamp and calendar features).
	// When false such rows are excluded entirely.
	KeepUnparsedTimes bool `json:"keep_unparsed_times" yaml:"keep_unparsed_times"`
}

// ExportConfig holds export configuration.
type ExportConfig struct {
	// ObjectPath is the fixed well-known path of the analytics export
	// artifact, fully replaced on each export.
	ObjectPath string `json:"object_path" yaml:"object_path"`
}

// RetryConfig holds the per-stage retry policy.
type RetryConfig struct {
	// MaxAttempts is the total attempts per stage (first try included)
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultConfig returns the default configuration for local development.
// The retry policy mirrors the production scheduler defaults: three retries
// with five-minute base delay, exponential backoff capped at thirty minutes.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/quakeflow",
		Source: SourceConfig{
			Path: "",
		},
		Warehouse: WarehouseConfig{
			Path: "",
		},
		Storage: StorageConfig{
			Type:           "local",
			Path:           "",
			SnapshotPrefix: "raw/earthquakes",
			StagingDir:     "",
		},
		Transform: TransformConfig{
			KeepUnparsedTimes: false,
		},
		Export: ExportConfig{
			ObjectPath: "analytics/earthquakes_analytics.qcol",
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   5 * time.Minute,
			MaxDelay:    30 * time.Minute,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/quakeflow"
	}

	if c.Source.Path == "" {
		c.Source.Path = filepath.Join(c.DataDir, "raw", "Sismos.csv")
	}

	if c.Warehouse.Path == "" {
		c.Warehouse.Path = filepath.Join(c.DataDir, "warehouse.db")
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	if c.Storage.StagingDir == "" {
		c.Storage.StagingDir = filepath.Join(c.DataDir, "staging")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Export.ObjectPath == "" {
		return fmt.Errorf("export.object_path is required")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}

	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 < base_delay <= max_delay")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the QUAKEFLOW_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("QUAKEFLOW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QUAKEFLOW_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("QUAKEFLOW_WAREHOUSE_PATH"); v != "" {
		cfg.Warehouse.Path = v
	}

	// Storage configuration
	if v := os.Getenv("QUAKEFLOW_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("QUAKEFLOW_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("QUAKEFLOW_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("QUAKEFLOW_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("QUAKEFLOW_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Transform configuration
	if v := os.Getenv("QUAKEFLOW_KEEP_UNPARSED_TIMES"); v != "" {
		cfg.Transform.KeepUnparsedTimes = v == "true" || v == "1"
	}

	// Export configuration
	if v := os.Getenv("QUAKEFLOW_EXPORT_OBJECT_PATH"); v != "" {
		cfg.Export.ObjectPath = v
	}

	// Retry configuration
	if v := os.Getenv("QUAKEFLOW_RETRY_MAX_ATTEMPTS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retry.MaxAttempts)
	}
	if v := os.Getenv("QUAKEFLOW_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.BaseDelay = d
		}
	}
	if v := os.Getenv("QUAKEFLOW_RETRY_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.MaxDelay = d
		}
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
		c.Storage.StagingDir,
		filepath.Dir(c.Warehouse.Path),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
