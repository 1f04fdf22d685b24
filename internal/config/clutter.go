package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/clutter/internal/clutter"
	"github.com/banshee-data/clutter/internal/volume"
)

// DefaultConfigPath is the path to the canonical clutter defaults file.
const DefaultConfigPath = "config/clutter.defaults.json"

// DefaultDBPath is where run snapshots are stored when db_path is unset.
const DefaultDBPath = "clutter.db"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ClutterConfig is the on-disk form of a run's tuning. Every field is
// optional; the Get* methods supply defaults for anything left unset, so
// partial configs are safe.
type ClutterConfig struct {
	// Classification
	ThreshMin *float64 `json:"thresh_min,omitempty" yaml:"thresh_min,omitempty"`
	ThreshMax *float64 `json:"thresh_max,omitempty" yaml:"thresh_max,omitempty"`
	Radius    *int     `json:"radius,omitempty" yaml:"radius,omitempty"`

	// Engine
	Parallel *bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Workers  *int  `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Fields
	ReflectivityField *string `json:"reflectivity_field,omitempty" yaml:"reflectivity_field,omitempty"`
	OutputField       *string `json:"output_field,omitempty" yaml:"output_field,omitempty"`
	OutputLongName    *string `json:"output_long_name,omitempty" yaml:"output_long_name,omitempty"`

	// Output
	WriteRadar *bool   `json:"write_radar,omitempty" yaml:"write_radar,omitempty"`
	OutFile    *string `json:"out_file,omitempty" yaml:"out_file,omitempty"`
	DBPath     *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyClutterConfig returns a ClutterConfig with all fields set to nil.
func EmptyClutterConfig() *ClutterConfig {
	return &ClutterConfig{}
}

// DefaultClutterConfig returns a config with every field set to its default.
func DefaultClutterConfig() *ClutterConfig {
	return &ClutterConfig{
		ThreshMin:         ptrFloat64(clutter.DefaultThreshMin),
		ThreshMax:         ptrFloat64(clutter.DefaultThreshMax),
		Radius:            ptrInt(clutter.DefaultRadius),
		Parallel:          ptrBool(false),
		Workers:           ptrInt(0),
		ReflectivityField: ptrString(volume.ReflectivityField),
		OutputField:       ptrString(clutter.DefaultFieldName),
		OutputLongName:    ptrString(clutter.DefaultLongName),
		WriteRadar:        ptrBool(false),
		OutFile:           ptrString(""),
		DBPath:            ptrString(DefaultDBPath),
	}
}

// LoadClutterConfig loads a ClutterConfig from a .json, .yaml or .yml file.
func LoadClutterConfig(path string) (*ClutterConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyClutterConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *ClutterConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/gen-volumes/
	}
	for _, path := range candidates {
		if cfg, err := LoadClutterConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. Cross-field rules that depend on
// defaults (thresh_min below thresh_max) are checked on the effective values.
func (c *ClutterConfig) Validate() error {
	if c.ThreshMin != nil && (math.IsNaN(*c.ThreshMin) || *c.ThreshMin < 0) {
		return fmt.Errorf("thresh_min must be non-negative, got %v", *c.ThreshMin)
	}
	if c.ThreshMax != nil && (math.IsNaN(*c.ThreshMax) || math.IsInf(*c.ThreshMax, 0)) {
		return fmt.Errorf("thresh_max must be finite, got %v", *c.ThreshMax)
	}
	if lo, hi := c.GetThreshMin(), c.GetThreshMax(); lo >= hi {
		return fmt.Errorf("thresh_min %v must be below thresh_max %v", lo, hi)
	}
	if c.Radius != nil && *c.Radius < 0 {
		return fmt.Errorf("radius must be non-negative, got %d", *c.Radius)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetThreshMin returns thresh_min or the default.
func (c *ClutterConfig) GetThreshMin() float64 {
	if c.ThreshMin == nil {
		return clutter.DefaultThreshMin
	}
	return *c.ThreshMin
}

// GetThreshMax returns thresh_max or the default.
func (c *ClutterConfig) GetThreshMax() float64 {
	if c.ThreshMax == nil {
		return clutter.DefaultThreshMax
	}
	return *c.ThreshMax
}

// GetRadius returns radius or the default.
func (c *ClutterConfig) GetRadius() int {
	if c.Radius == nil {
		return clutter.DefaultRadius
	}
	return *c.Radius
}

// GetParallel returns parallel or false.
func (c *ClutterConfig) GetParallel() bool {
	if c.Parallel == nil {
		return false
	}
	return *c.Parallel
}

// GetWorkers returns workers or 0 (one per CPU).
func (c *ClutterConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetReflectivityField returns reflectivity_field or the default.
func (c *ClutterConfig) GetReflectivityField() string {
	if c.ReflectivityField == nil || *c.ReflectivityField == "" {
		return volume.ReflectivityField
	}
	return *c.ReflectivityField
}

// GetOutputField returns output_field or the default.
func (c *ClutterConfig) GetOutputField() string {
	if c.OutputField == nil || *c.OutputField == "" {
		return clutter.DefaultFieldName
	}
	return *c.OutputField
}

// GetOutputLongName returns output_long_name or the default.
func (c *ClutterConfig) GetOutputLongName() string {
	if c.OutputLongName == nil || *c.OutputLongName == "" {
		return clutter.DefaultLongName
	}
	return *c.OutputLongName
}

// GetWriteRadar returns write_radar or false.
func (c *ClutterConfig) GetWriteRadar() bool {
	if c.WriteRadar == nil {
		return false
	}
	return *c.WriteRadar
}

// GetOutFile returns out_file or "".
func (c *ClutterConfig) GetOutFile() string {
	if c.OutFile == nil {
		return ""
	}
	return *c.OutFile
}

// GetDBPath returns db_path or DefaultDBPath.
func (c *ClutterConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// Params returns run parameters for files using the effective values.
func (c *ClutterConfig) Params(files ...string) clutter.Params {
	return clutter.Params{
		Files:             files,
		ThreshMin:         c.GetThreshMin(),
		ThreshMax:         c.GetThreshMax(),
		Radius:            c.GetRadius(),
		WriteRadar:        c.GetWriteRadar(),
		OutFile:           c.GetOutFile(),
		Parallel:          c.GetParallel(),
		Workers:           c.GetWorkers(),
		ReflectivityField: c.GetReflectivityField(),
		OutputField:       c.GetOutputField(),
		OutputLongName:    c.GetOutputLongName(),
	}
}
