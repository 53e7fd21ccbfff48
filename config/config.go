package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the preview and batch runs.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Measurement parameters
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Step      int     `json:"step" yaml:"step"`

	// Worker pool; 0 workers sizes the pool from the CPU count.
	Workers       int `json:"workers" yaml:"workers"`
	ReservedCores int `json:"reserved_cores" yaml:"reserved_cores"`

	// Files, relative names resolve against the frame directory.
	Patterns   []string `json:"patterns" yaml:"patterns"`
	RoiFile    string   `json:"roi_file" yaml:"roi_file"`
	OutputFile string   `json:"output_file" yaml:"output_file"`
	SQLiteFile string   `json:"sqlite_file" yaml:"sqlite_file"`

	// Refresh tick of the polling loop in milliseconds.
	TickMS int `json:"tick_ms" yaml:"tick_ms"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:         false,
		LogLevel:      "info",
		Threshold:     2.0,
		Step:          1,
		Workers:       0,
		ReservedCores: 1,
		Patterns:      []string{"*.jpg", "*.tif"},
		RoiFile:       "Roi.json",
		OutputFile:    "Area.csv",
		SQLiteFile:    "",
		TickMS:        100,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if math.IsNaN(c.Threshold) {
		c.Threshold = 2.0
	}
	c.Threshold = math.Max(-10, math.Min(10, c.Threshold))
	if c.Step < 1 {
		c.Step = 1
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.ReservedCores < 0 {
		c.ReservedCores = 1
	}
	if len(c.Patterns) == 0 {
		c.Patterns = []string{"*.jpg", "*.tif"}
	}
	for _, p := range c.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("config: pattern %q: %w", p, err)
		}
	}
	if c.RoiFile == "" {
		c.RoiFile = "Roi.json"
	}
	if c.OutputFile == "" {
		c.OutputFile = "Area.csv"
	}
	if c.TickMS <= 0 {
		c.TickMS = 100
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load attempts to read configuration from the given file path, YAML for .yaml/.yml
// and JSON otherwise. If the file does not exist it returns DefaultConfig(). On a
// decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the given path, format chosen by extension.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
