// Package config loads xlinspect settings from an optional YAML file and
// XLINSPECT_* environment variables. Command-line flags are applied last
// with ApplyFlags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "XLINSPECT"

// ConfigFileEnv names the environment variable holding the config file path.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Config holds all xlinspect settings.
type Config struct {
	// Input is the workbook used when no path is given on the command line.
	Input        string        `yaml:"input"`
	Output       OutputConfig  `yaml:"output"`
	Password     string        `yaml:"password"`
	ConvertDates bool          `yaml:"convert_dates"`
	Sheets       []string      `yaml:"sheets"`
	Limits       LimitsConfig  `yaml:"limits"`
	Logging      LoggingConfig `yaml:"logging"`
}

// OutputConfig holds JSON output settings.
type OutputConfig struct {
	Analysis  string `yaml:"analysis"`
	Structure string `yaml:"structure"`
	Pretty    bool   `yaml:"pretty"`
}

// LimitsConfig holds scan and report caps.
type LimitsConfig struct {
	SampleRows    int `yaml:"sample_rows"`
	ScanRows      int `yaml:"scan_rows"`
	SampleWindow  int `yaml:"sample_window"`
	SampleKeep    int `yaml:"sample_keep"`
	PrintRows     int `yaml:"print_rows"`
	PrintColumns  int `yaml:"print_columns"`
	FullTruncate  int `yaml:"full_truncate"`
	QuickTruncate int `yaml:"quick_truncate"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// env mirrors Config for environment overrides, read from
// XLINSPECT_<FIELD_NAME>. Unset variables leave their field nil.
type env struct {
	Input           *string   `split_words:"true"`
	AnalysisOutput  *string   `split_words:"true"`
	StructureOutput *string   `split_words:"true"`
	Pretty          *bool     `split_words:"true"`
	Password        *string   `split_words:"true"`
	ConvertDates    *bool     `split_words:"true"`
	Sheets          *[]string `split_words:"true"`
	SampleRows      *int      `split_words:"true"`
	ScanRows        *int      `split_words:"true"`
	SampleWindow    *int      `split_words:"true"`
	SampleKeep      *int      `split_words:"true"`
	PrintRows       *int      `split_words:"true"`
	PrintColumns    *int      `split_words:"true"`
	FullTruncate    *int      `split_words:"true"`
	QuickTruncate   *int      `split_words:"true"`
	LogLevel        *string   `split_words:"true"`
	LogFormat       *string   `split_words:"true"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Analysis:  "excel_analysis.json",
			Structure: "excel_structure.json",
			Pretty:    true,
		},
		Limits: LimitsConfig{
			SampleRows:    10,
			ScanRows:      20,
			SampleWindow:  15,
			SampleKeep:    5,
			PrintRows:     3,
			PrintColumns:  12,
			FullTruncate:  30,
			QuickTruncate: 25,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file, then
// the environment. path names the YAML file; when empty, XLINSPECT_CONFIG
// is consulted and no file is read if that is unset too.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	cfg.applyEnv(e)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path; keys it omits keep their value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(e env) {
	setString(&c.Input, e.Input)
	setString(&c.Output.Analysis, e.AnalysisOutput)
	setString(&c.Output.Structure, e.StructureOutput)
	setBool(&c.Output.Pretty, e.Pretty)
	setString(&c.Password, e.Password)
	setBool(&c.ConvertDates, e.ConvertDates)
	if e.Sheets != nil {
		c.Sheets = *e.Sheets
	}
	setInt(&c.Limits.SampleRows, e.SampleRows)
	setInt(&c.Limits.ScanRows, e.ScanRows)
	setInt(&c.Limits.SampleWindow, e.SampleWindow)
	setInt(&c.Limits.SampleKeep, e.SampleKeep)
	setInt(&c.Limits.PrintRows, e.PrintRows)
	setInt(&c.Limits.PrintColumns, e.PrintColumns)
	setInt(&c.Limits.FullTruncate, e.FullTruncate)
	setInt(&c.Limits.QuickTruncate, e.QuickTruncate)
	setString(&c.Logging.Level, e.LogLevel)
	setString(&c.Logging.Format, e.LogFormat)
}

func setString(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst, src *int) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Output.Analysis == "" || c.Output.Structure == "" {
		return errors.New("output paths must not be empty")
	}

	limits := []struct {
		name  string
		value int
	}{
		{"sample_rows", c.Limits.SampleRows},
		{"scan_rows", c.Limits.ScanRows},
		{"sample_window", c.Limits.SampleWindow},
		{"sample_keep", c.Limits.SampleKeep},
		{"print_rows", c.Limits.PrintRows},
		{"print_columns", c.Limits.PrintColumns},
		{"full_truncate", c.Limits.FullTruncate},
		{"quick_truncate", c.Limits.QuickTruncate},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("limit %s must be positive, got %d", l.name, l.value)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or text)", c.Logging.Format)
	}
	return nil
}
