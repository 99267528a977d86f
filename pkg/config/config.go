// Package config holds the YAML-backed settings of the three binaries.
// Each config has a defaults constructor; a file, when given, overrides
// fields, and command-line flags override the file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractConfig drives the extraction stage.
type ExtractConfig struct {
	Profile   string `yaml:"profile"`
	Timestamp string `yaml:"timestamp"`
}

// DefaultExtract returns the extraction defaults.
func DefaultExtract() ExtractConfig {
	return ExtractConfig{Profile: "car"}
}

// ContractConfig drives the contraction stage.
type ContractConfig struct {
	CoreFactor        float64  `yaml:"core_factor"`
	Threads           int      `yaml:"threads"`
	SegmentSpeedFiles []string `yaml:"segment_speed_files"`
	TurnPenaltyFiles  []string `yaml:"turn_penalty_files"`
	ExcludeFilters    []string `yaml:"exclude_filters"`
}

// DefaultContract returns the contraction defaults: full hierarchy on
// all cores, no overrides.
func DefaultContract() ContractConfig {
	return ContractConfig{Threads: runtime.NumCPU()}
}

// ServerConfig drives the query service.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	Mapped        bool          `yaml:"mapped"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	CORSOrigin    string        `yaml:"cors_origin"`
}

// DefaultServer returns the service defaults.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Addr:          ":5000",
		Mapped:        true,
		MaxConcurrent: runtime.NumCPU() * 2,
		QueryTimeout:  10 * time.Second,
	}
}

// Load overlays a YAML file onto cfg when path is non-empty.
func Load[T any](path string, cfg *T) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
