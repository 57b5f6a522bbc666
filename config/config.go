// Package config provides loading and parsing of knowledge.yaml
// configuration files. The configuration covers store limits, search
// paging, graph traversal bounds, and the optional persistence backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcic-ai/knowledge-sdk/coreerr"
)

// Config represents a knowledge.yaml configuration file.
type Config struct {
	// Store configures the capsule store.
	Store StoreConfig `yaml:"store,omitempty"`

	// Graph configures the graph index.
	Graph GraphConfig `yaml:"graph,omitempty"`

	// Persistence configures the optional durability backend.
	Persistence *PersistenceConfig `yaml:"persistence,omitempty"`
}

// StoreConfig bounds the capsule store.
type StoreConfig struct {
	// MaxCapsules caps the store size. Zero means unbounded.
	MaxCapsules int `yaml:"max_capsules,omitempty"`

	// PageSize is the default search page size.
	// Default: 20
	PageSize int `yaml:"page_size,omitempty"`
}

// GraphConfig bounds graph traversal.
type GraphConfig struct {
	// MaxPathDepth is the default bound for path searches.
	// Default: 5
	MaxPathDepth int `yaml:"max_path_depth,omitempty"`
}

// PersistenceConfig selects and configures the durability backend.
type PersistenceConfig struct {
	// Backend is "redis" or "etcd".
	Backend string `yaml:"backend"`

	// Namespace prefixes every persisted key.
	// Default: "knowledge"
	Namespace string `yaml:"namespace,omitempty"`

	// Redis settings, used when Backend is "redis".
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Etcd settings, used when Backend is "etcd".
	Etcd *EtcdConfig `yaml:"etcd,omitempty"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// URL is the Redis connection string.
	// Default: "redis://localhost:6379"
	URL string `yaml:"url,omitempty"`

	// ConnectTimeout is a Go duration string (e.g., "5s").
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// EtcdConfig configures the etcd backend.
type EtcdConfig struct {
	// Endpoints is the list of etcd cluster endpoints.
	Endpoints []string `yaml:"endpoints"`

	// DialTimeout is a Go duration string (e.g., "5s").
	DialTimeout string `yaml:"dial_timeout,omitempty"`
}

// GetConnectTimeout parses the Redis connect timeout.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetConnectTimeout() time.Duration {
	if r == nil || r.ConnectTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(r.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetDialTimeout parses the etcd dial timeout.
// Returns the default value if not set or invalid.
func (e *EtcdConfig) GetDialTimeout() time.Duration {
	if e == nil || e.DialTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(e.DialTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{PageSize: 20},
		Graph: GraphConfig{MaxPathDepth: 5},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Store.MaxCapsules < 0 {
		return fmt.Errorf("%w: store.max_capsules must not be negative", coreerr.ErrInvalidConfig)
	}
	if c.Store.PageSize < 0 {
		return fmt.Errorf("%w: store.page_size must not be negative", coreerr.ErrInvalidConfig)
	}
	if c.Graph.MaxPathDepth < 0 {
		return fmt.Errorf("%w: graph.max_path_depth must not be negative", coreerr.ErrInvalidConfig)
	}

	if p := c.Persistence; p != nil {
		switch p.Backend {
		case "redis":
		case "etcd":
			if p.Etcd == nil || len(p.Etcd.Endpoints) == 0 {
				return fmt.Errorf("%w: etcd backend requires endpoints", coreerr.ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown persistence backend %q", coreerr.ErrInvalidConfig, p.Backend)
		}
	}
	return nil
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Store.PageSize == 0 {
		c.Store.PageSize = 20
	}
	if c.Graph.MaxPathDepth == 0 {
		c.Graph.MaxPathDepth = 5
	}
	if c.Persistence != nil && c.Persistence.Namespace == "" {
		c.Persistence.Namespace = "knowledge"
	}
}

// Load reads a configuration from the given path. If the path is a
// directory, it looks for knowledge.yaml, then knowledge.yml.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "knowledge.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "knowledge.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no knowledge.yaml or knowledge.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromDir searches for knowledge.yaml starting from the given
// directory and walking up to parent directories until found or root is
// reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no knowledge.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}
