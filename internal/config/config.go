// Package config loads the process-wide configuration for the document core:
// storage pool sizing, the fixed block size, and the external RPC endpoints.
// It is read once at startup into a single Config value, mirroring the
// "global state must be initialized before any request is served" rule.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// BlockSize is the fixed chunk size for the upload/download pipelines.
// It MUST match across every service that touches staged or encrypted blocks.
const BlockSize = 1 << 20 // 1 MiB

// Driver selects the storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// StorageConfig describes the connection pool for one customer's table family.
type StorageConfig struct {
	Driver          Driver        `yaml:"driver"`
	DbName          string        `yaml:"db_name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RPCConfig describes the external collaborators the core calls out to.
type RPCConfig struct {
	KeyManagerURL string        `yaml:"key_manager_url"`
	TikaURL       string        `yaml:"tika_url"`
	IndexerURL    string        `yaml:"indexer_url"`
	SessionURL    string        `yaml:"session_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Config is the top-level process configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	RPC     RPCConfig     `yaml:"rpc"`

	// WorkerPoolSize overrides max(1, cores-1) when non-zero; used by tests
	// and by operators pinning a smaller pool on shared hardware.
	WorkerPoolSize int `yaml:"worker_pool_size"`

	// StagingGroupSize is the number of staged blocks flushed per transaction.
	StagingGroupSize int `yaml:"staging_group_size"`
}

// Default returns a Config with the spec's fixed defaults applied.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:          DriverPostgres,
			Port:            5432,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 2 * time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		RPC: RPCConfig{
			Timeout: 60 * time.Minute,
		},
		StagingGroupSize: 10,
	}
}

// Load reads YAML configuration from path and overlays it on Default().
func Load(path string) (Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.StagingGroupSize <= 0 {
		cfg.StagingGroupSize = 10
	}

	return cfg, nil
}
