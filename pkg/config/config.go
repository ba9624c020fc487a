// Package config provides configuration loading and management for
// anatomesh. It handles loading configuration from YAML files and
// provides default values for every conversion parameter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters shared by both conversion directions.
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel
		// processing.
		NumCores int `yaml:"numCores"`

		// Verbose enables debug-level logging.
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Voxelize covers the mesh-to-grid direction.
	Voxelize struct {
		// Pitch is the cubic voxel edge length in world units.
		Pitch float64 `yaml:"pitch"`

		// MaxGridCells caps the total cell count of the output grid.
		MaxGridCells int `yaml:"maxGridCells"`

		// AllowPartialRepair lets voxelization proceed on a mesh whose
		// repair could not reach a watertight state.
		AllowPartialRepair bool `yaml:"allowPartialRepair"`
	} `yaml:"voxelize"`

	// Reconstruct covers the slice-stack-to-mesh direction.
	Reconstruct struct {
		// SliceGap is the physical distance between consecutive slices
		// in world units, used when slice positions are inferred from
		// file order.
		SliceGap float64 `yaml:"sliceGap"`

		// IsoValue is the scalar threshold for surface extraction.
		IsoValue float64 `yaml:"isoValue"`

		// SpacingTolerance is the allowed relative deviation of
		// inter-slice spacing from its mean.
		SpacingTolerance float64 `yaml:"spacingTolerance"`

		// WeldTolerance is the vertex welding radius as a fraction of
		// the smallest voxel spacing.
		WeldTolerance float64 `yaml:"weldTolerance"`
	} `yaml:"reconstruct"`

	// Output parameters.
	Output struct {
		// SaveProjections writes maximum-intensity projection previews
		// next to the main artifact.
		SaveProjections bool `yaml:"saveProjections"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Verbose = false

	cfg.Voxelize.Pitch = 1.0
	cfg.Voxelize.MaxGridCells = 1 << 27
	cfg.Voxelize.AllowPartialRepair = false

	cfg.Reconstruct.SliceGap = 1.0
	cfg.Reconstruct.IsoValue = 0.5
	cfg.Reconstruct.SpacingTolerance = 0.01
	cfg.Reconstruct.WeldTolerance = 1e-4

	cfg.Output.SaveProjections = false

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
