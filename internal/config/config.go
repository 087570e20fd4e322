package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datasift-cli/internal/coerce"
	"github.com/KaramelBytes/datasift-cli/internal/derive"
	"github.com/KaramelBytes/datasift-cli/internal/loader"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
	"github.com/KaramelBytes/datasift-cli/internal/schema"
)

const dirName = ".datasift"

// Global configuration structure.
type Global struct {
	Profile string `mapstructure:"profile" yaml:"profile"`

	// Source reading
	Delimiter          string `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator"`
	MaxRows            int    `mapstructure:"max_rows" yaml:"max_rows"`
	SheetName          string `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex         int    `mapstructure:"sheet_index" yaml:"sheet_index"`
	HasHeader          string `mapstructure:"has_header" yaml:"has_header"`
	AliasFile          string `mapstructure:"alias_file" yaml:"alias_file"`

	// Derivation
	BandThresholds  []derive.Band `mapstructure:"band_thresholds" yaml:"band_thresholds"`
	BandLowestLabel string        `mapstructure:"band_lowest_label" yaml:"band_lowest_label"`

	// Output
	PresetsDir    string `mapstructure:"presets_dir" yaml:"presets_dir"`
	ExportBOM     bool   `mapstructure:"export_bom" yaml:"export_bom"`
	TopN          int    `mapstructure:"top_n" yaml:"top_n"`
	HistogramBins int    `mapstructure:"histogram_bins" yaml:"histogram_bins"`

	// HTTP server
	ServerAddr      string  `mapstructure:"server_addr" yaml:"server_addr"`
	ServerRateLimit float64 `mapstructure:"server_rate_limit" yaml:"server_rate_limit"`
	ServerRateBurst int     `mapstructure:"server_rate_burst" yaml:"server_rate_burst"`
	MaxUploadMB     int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	CacheSize       int     `mapstructure:"cache_size" yaml:"cache_size"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datasift/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, dirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATASIFT")
	v.AutomaticEnv()

	bands := derive.DefaultBands()
	v.SetDefault("profile", pipeline.ProfileStudents)
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("thousands_separator", "")
	v.SetDefault("max_rows", 0)
	v.SetDefault("sheet_name", "")
	v.SetDefault("sheet_index", 0)
	v.SetDefault("has_header", string(pipeline.HeaderAuto))
	v.SetDefault("alias_file", "")
	v.SetDefault("band_thresholds", bands.Bands)
	v.SetDefault("band_lowest_label", bands.Lowest)
	v.SetDefault("export_bom", false)
	v.SetDefault("top_n", 15)
	v.SetDefault("histogram_bins", 20)
	// Server defaults
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("server_rate_limit", 20.0)
	v.SetDefault("server_rate_burst", 40)
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("cache_size", 16)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, dirName)
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve presets_dir default: ~/.datasift/presets
	if c.PresetsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		c.PresetsDir = filepath.Join(home, dirName, "presets")
	}
	return &c, nil
}

// Validate checks values that viper cannot type-check.
func (c *Global) Validate() error {
	if _, err := pipeline.Lookup(c.Profile, c.Bands()); err != nil {
		return err
	}
	if _, err := pipeline.ParseHeaderMode(c.HasHeader); err != nil {
		return err
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	for key, s := range map[string]string{"decimal_separator": c.DecimalSeparator, "thousands_separator": c.ThousandsSeparator} {
		if utf8.RuneCountInString(s) > 1 {
			return fmt.Errorf("%s must be a single character, got %q", key, s)
		}
	}
	if c.MaxRows < 0 || c.SheetIndex < 0 {
		return fmt.Errorf("max_rows and sheet_index must not be negative")
	}
	return c.Bands().Validate()
}

// Bands returns the configured performance band table.
func (c *Global) Bands() derive.BandTable {
	if len(c.BandThresholds) == 0 && c.BandLowestLabel == "" {
		return derive.DefaultBands()
	}
	return derive.BandTable{Bands: c.BandThresholds, Lowest: c.BandLowestLabel}
}

// DelimiterRune parses delimiter: empty means auto, "tab" or "\t" means a tab.
func (c *Global) DelimiterRune() (rune, error) {
	switch strings.ToLower(c.Delimiter) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character or \"tab\", got %q", c.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r, nil
}

// LoaderOptions maps the source-reading keys onto loader options.
func (c *Global) LoaderOptions() loader.Options {
	d, _ := c.DelimiterRune()
	return loader.Options{Delimiter: d, SheetName: c.SheetName, SheetIndex: c.SheetIndex, MaxRows: c.MaxRows}
}

// Locale returns the number parsing locale.
func (c *Global) Locale() coerce.Locale {
	first := func(s string) rune {
		r, _ := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError {
			return 0
		}
		return r
	}
	return coerce.Locale{DecimalSeparator: first(c.DecimalSeparator), ThousandsSeparator: first(c.ThousandsSeparator)}
}

// PipelineProfile resolves the named profile (or the configured one when name is empty)
// and applies alias overrides from alias_file.
func (c *Global) PipelineProfile(name string) (pipeline.Profile, error) {
	if name == "" {
		name = c.Profile
	}
	prof, err := pipeline.Lookup(name, c.Bands())
	if err != nil {
		return pipeline.Profile{}, err
	}
	if c.AliasFile != "" {
		af, err := schema.LoadAliasFile(c.AliasFile)
		if err != nil {
			return pipeline.Profile{}, err
		}
		prof = prof.WithAliases(af)
	}
	if prof.GroupMean != nil && c.TopN > 0 {
		gm := *prof.GroupMean
		gm.Top = c.TopN
		prof.GroupMean = &gm
	}
	return prof, nil
}

// PipelineOptions assembles pipeline options for name (see PipelineProfile).
func (c *Global) PipelineOptions(name string) (pipeline.Options, error) {
	prof, err := c.PipelineProfile(name)
	if err != nil {
		return pipeline.Options{}, err
	}
	mode, err := pipeline.ParseHeaderMode(c.HasHeader)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{Profile: prof, Locale: c.Locale(), Header: mode}, nil
}
