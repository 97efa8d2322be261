// Package config loads and validates memscope configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/memscope/internal/progress"
	"github.com/JakeFAU/memscope/internal/scan"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Statistics StatisticsConfig `mapstructure:"statistics"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Scan       ScanConfig       `mapstructure:"scan"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StatisticsConfig sets the initial state of call statistics.
type StatisticsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProgressConfig tunes the page progress reporter.
type ProgressConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	CloseTimeout   time.Duration `mapstructure:"close_timeout"`
	ShowMemoryMap  bool          `mapstructure:"show_memory_map"`
	MemMapCapacity int           `mapstructure:"memmap_capacity"`
}

// ScanConfig controls bulk reads.
type ScanConfig struct {
	ChunkPages int    `mapstructure:"chunk_pages"`
	AccessMode string `mapstructure:"access_mode"`
}

// Access modes accepted by scan.access_mode.
const (
	AccessNormal = "normal"
	AccessKMD    = "kmd"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("statistics.enabled", true)
	v.SetDefault("progress.interval", "100ms")
	v.SetDefault("progress.close_timeout", "200ms")
	v.SetDefault("progress.show_memory_map", true)
	v.SetDefault("progress.memmap_capacity", 2048)
	v.SetDefault("scan.chunk_pages", 16)
	v.SetDefault("scan.access_mode", AccessNormal)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Progress.Interval <= 0 {
		return fmt.Errorf("progress.interval must be > 0")
	}
	if c.Progress.CloseTimeout <= 0 {
		return fmt.Errorf("progress.close_timeout must be > 0")
	}
	if c.Progress.MemMapCapacity < 1 || c.Progress.MemMapCapacity > progress.MaxMemMapCapacity {
		return fmt.Errorf("progress.memmap_capacity must be in [1, %d]", progress.MaxMemMapCapacity)
	}
	if c.Scan.ChunkPages < 1 || c.Scan.ChunkPages > scan.MaxChunkPages {
		return fmt.Errorf("scan.chunk_pages must be in [1, %d]", scan.MaxChunkPages)
	}
	switch c.Scan.AccessMode {
	case AccessNormal, AccessKMD:
	default:
		return fmt.Errorf("scan.access_mode must be %q or %q", AccessNormal, AccessKMD)
	}
	return nil
}

// KMD reports whether scans use kernel module assisted DMA.
func (c Config) KMD() bool {
	return c.Scan.AccessMode == AccessKMD
}
