package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Disk manager modes
const (
	DiskModeFile = "file"
	DiskModeMmap = "mmap"
)

// Config holds buffer pool configuration
type Config struct {
	// Buffer Pool Configuration
	NumInstances        uint32 `json:"num_instances"`          // Number of parallel pool shards
	PoolSizePerInstance uint32 `json:"pool_size_per_instance"` // Frames per shard
	Replacer            string `json:"replacer"`               // Replacement policy (lru)

	// Disk Configuration
	DataDirectory string `json:"data_directory"` // Directory for data files
	DiskMode      string `json:"disk_mode"`      // Disk access mode (file, mmap)
	Compression   string `json:"compression"`    // Page compression (none, snappy, lz4)
	Checksums     bool   `json:"checksums"`      // Verify page checksums on read

	// Performance Configuration
	EnableMetrics bool   `json:"enable_metrics"` // Not read by the pool; instances always collect metrics
	LogLevel      string `json:"log_level"`      // Log level (debug, info, warn, error)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NumInstances:        4,
		PoolSizePerInstance: 128,
		Replacer:            "lru",
		DataDirectory:       "./data",
		DiskMode:            DiskModeFile,
		Compression:         "none",
		Checksums:           false,
		EnableMetrics:       true,
		LogLevel:            "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Falls back to default values if environment variables are not set.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("SHARDPOOL_NUM_INSTANCES"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.NumInstances = uint32(n)
		}
	}

	if val := os.Getenv("SHARDPOOL_POOL_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PoolSizePerInstance = uint32(size)
		}
	}

	if val := os.Getenv("SHARDPOOL_REPLACER"); val != "" {
		config.Replacer = val
	}

	if val := os.Getenv("SHARDPOOL_DATA_DIRECTORY"); val != "" {
		config.DataDirectory = val
	}

	if val := os.Getenv("SHARDPOOL_DISK_MODE"); val != "" {
		config.DiskMode = val
	}

	if val := os.Getenv("SHARDPOOL_COMPRESSION"); val != "" {
		config.Compression = val
	}

	if val := os.Getenv("SHARDPOOL_CHECKSUMS"); val != "" {
		config.Checksums = val == "true" || val == "1"
	}

	if val := os.Getenv("SHARDPOOL_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("SHARDPOOL_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NumInstances == 0 {
		return fmt.Errorf("number of instances must be greater than 0")
	}

	if c.PoolSizePerInstance == 0 {
		return fmt.Errorf("pool size per instance must be greater than 0")
	}

	if c.Replacer != "lru" {
		return fmt.Errorf("invalid replacer: %s (only lru is supported)", c.Replacer)
	}

	if c.DataDirectory == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.DiskMode != DiskModeFile && c.DiskMode != DiskModeMmap {
		return fmt.Errorf("invalid disk mode: %s (must be file or mmap)", c.DiskMode)
	}

	switch c.Compression {
	case "none", "snappy", "lz4":
	default:
		return fmt.Errorf("invalid compression: %s (must be none, snappy, or lz4)", c.Compression)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
