// Package config loads mriphash settings with priority
// defaults < config file < MRIPHASH_* environment < command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kosshi.net/mriphash/internal/imageio"
	"kosshi.net/mriphash/internal/phash"
)

const (
	// ConfigName is the config file name searched for without an extension.
	ConfigName = "mriphash"
	EnvPrefix  = "MRIPHASH"

	DefaultImagePath = "dataset/tumor.jpg"
)

type Config struct {
	ImagePath           string  `mapstructure:"image_path" toml:"image_path"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" toml:"similarity_threshold"`

	Resize  ResizeConfig  `mapstructure:"resize" toml:"resize"`
	Hash    HashConfig    `mapstructure:"hash" toml:"hash"`
	Compare CompareConfig `mapstructure:"compare" toml:"compare"`
	Limits  LimitsConfig  `mapstructure:"limits" toml:"limits"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
}

type ResizeConfig struct {
	Width  int    `mapstructure:"width" toml:"width"`
	Height int    `mapstructure:"height" toml:"height"`
	Filter string `mapstructure:"filter" toml:"filter"`
}

type HashConfig struct {
	Engine string `mapstructure:"engine" toml:"engine"`
}

// CompareConfig is the size verify stretches both images to before
// scoring them pixel by pixel.
type CompareConfig struct {
	Width  int `mapstructure:"width" toml:"width"`
	Height int `mapstructure:"height" toml:"height"`
}

type LimitsConfig struct {
	MaxFileSizeMB    int      `mapstructure:"max_file_size_mb" toml:"max_file_size_mb"`
	MaxPixels        int      `mapstructure:"max_pixels" toml:"max_pixels"`
	SupportedFormats []string `mapstructure:"supported_formats" toml:"supported_formats"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// LoadOptions converts the limits into loader options.
func (l LimitsConfig) LoadOptions() []imageio.Option {
	return []imageio.Option{
		imageio.WithMaxFileSize(int64(l.MaxFileSizeMB) << 20),
		imageio.WithMaxPixels(l.MaxPixels),
		imageio.WithFormats(l.SupportedFormats...),
	}
}

// Pipeline builds the hashing pipeline described by the config.
func (c *Config) Pipeline() (*phash.Pipeline, error) {
	hasher, err := phash.NewHasher(c.Hash.Engine)
	if err != nil {
		return nil, err
	}
	return &phash.Pipeline{
		Width:       c.Resize.Width,
		Height:      c.Resize.Height,
		Filter:      c.Resize.Filter,
		Hasher:      hasher,
		LoadOptions: c.Limits.LoadOptions(),
	}, nil
}

// Comparison builds the pixel scorer used by verify.
func (c *Config) Comparison() phash.Comparison {
	return phash.Comparison{
		Width:  c.Compare.Width,
		Height: c.Compare.Height,
		Filter: c.Resize.Filter,
	}
}

// TOML renders the config the way it would be written in mriphash.toml.
func (c *Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("image_path", DefaultImagePath)
	v.SetDefault("similarity_threshold", 95.0)
	v.SetDefault("resize.width", phash.DefaultSize)
	v.SetDefault("resize.height", phash.DefaultSize)
	v.SetDefault("resize.filter", phash.DefaultFilter)
	v.SetDefault("hash.engine", phash.EngineDCT)
	v.SetDefault("compare.width", phash.DefaultCompareSize)
	v.SetDefault("compare.height", phash.DefaultCompareSize)
	v.SetDefault("limits.max_file_size_mb", imageio.DefaultMaxFileSize>>20)
	v.SetDefault("limits.max_pixels", imageio.DefaultMaxPixels)
	v.SetDefault("limits.supported_formats", imageio.DefaultFormats)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

// Loader wraps a viper instance so command flags can be bound before Load.
type Loader struct {
	v          *viper.Viper
	configPath string
}

// NewLoader creates a loader. configPath, when set, must exist.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, configPath: configPath}
}

// BindFlag makes a command-line flag override key when it was set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %q", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file, if any, and returns the validated result.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
	} else {
		l.v.SetConfigName(ConfigName)
		l.v.SetConfigType("toml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Used reports the config file that was read, or "" when none was.
func (l *Loader) Used() string {
	return l.v.ConfigFileUsed()
}

// Validate rejects settings the pipeline cannot run with.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Resize.Width <= 0 || cfg.Resize.Height <= 0 {
		errs = append(errs, fmt.Errorf("resize: width and height must be positive, got %dx%d", cfg.Resize.Width, cfg.Resize.Height))
	}
	if cfg.Compare.Width <= 0 || cfg.Compare.Height <= 0 {
		errs = append(errs, fmt.Errorf("compare: width and height must be positive, got %dx%d", cfg.Compare.Width, cfg.Compare.Height))
	}
	if !slices.Contains(phash.Filters(), cfg.Resize.Filter) {
		errs = append(errs, fmt.Errorf("resize.filter: unknown filter %q", cfg.Resize.Filter))
	}
	if !slices.Contains(phash.Engines, cfg.Hash.Engine) {
		errs = append(errs, fmt.Errorf("hash.engine: unknown engine %q", cfg.Hash.Engine))
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 100 {
		errs = append(errs, fmt.Errorf("similarity_threshold: must be within 0..100, got %v", cfg.SimilarityThreshold))
	}
	if cfg.Limits.MaxFileSizeMB < 0 || cfg.Limits.MaxPixels < 0 {
		errs = append(errs, errors.New("limits: values must not be negative"))
	}
	if len(cfg.Limits.SupportedFormats) == 0 {
		errs = append(errs, errors.New("limits.supported_formats: at least one format is required"))
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: want console or json, got %q", cfg.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
