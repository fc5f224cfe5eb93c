// Package config loads the YAML configuration of the htmlinline CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/alnah/go-htmlinline/internal/fileutil"
	"github.com/alnah/go-htmlinline/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidConfig   = errors.New("invalid config")
)

// AppName names the directory searched under the user config dir.
const AppName = "go-htmlinline"

// Config holds all configuration for an inlining run.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Inline  InlineConfig  `yaml:"inline"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Format  FormatConfig  `yaml:"format"`
	Workers int           `yaml:"workers" validate:"gte=0,lte=256"` // 0 = auto
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// InputConfig defines input source options.
type InputConfig struct {
	Dir string `yaml:"dir"` // Directory processed when none is given on the command line
}

// InlineConfig selects what gets embedded.
type InlineConfig struct {
	Images      bool `yaml:"images" default:"true"`
	Styles      bool `yaml:"styles" default:"true"`
	Scripts     bool `yaml:"scripts"`
	MaxSize     int  `yaml:"maxSize" default:"10000" validate:"gte=-1"` // chars, -1 = no limit
	PreferLocal bool `yaml:"preferLocal"`                               // read http(s) URLs from the input dir when mirrored
}

// FetchConfig bounds remote fetches.
type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	MaxBytes int64         `yaml:"maxBytes" default:"16777216" validate:"gt=0"`
}

// CacheConfig sizes the resource cache.
type CacheConfig struct {
	Size int `yaml:"size" default:"1000" validate:"gt=0"`
}

// FormatConfig toggles the text collaborators.
type FormatConfig struct {
	CSS           bool `yaml:"css" default:"true"` // minify then pretty-print stylesheets
	HTML          bool `yaml:"html"`               // pretty-print output HTML
	MinifyScripts bool `yaml:"minifyScripts"`
}

// LogConfig defines diagnostics output.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	File       string `yaml:"file"` // JSON log file, rotated; empty = stderr only
	MaxSizeMB  int    `yaml:"maxSizeMB" default:"10" validate:"gt=0"`
	MaxBackups int    `yaml:"maxBackups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" default:"28" validate:"gte=0"`
}

// MetricsConfig defines the metrics textfile.
type MetricsConfig struct {
	File string `yaml:"file"` // Prometheus text format, written at exit
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report YAML keys, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks value ranges. Called automatically by LoadConfig, but
// available for callers who build a Config by hand or override fields.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// describe renders a field error as "log.level: must be one of debug info warn error".
func describe(fe validator.FieldError) string {
	// Namespace is "Config.log.level"; drop the root type.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s: must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q check", field, fe.Tag())
	}
}

// DefaultConfig returns the configuration used when no file is given:
// images and stylesheets inlined, scripts left alone.
func DefaultConfig() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		// Tags are static; failing here is a programming error.
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return &cfg
}

// YAML encodes c in the file format Parse reads.
func (c *Config) YAML() ([]byte, error) {
	return yamlutil.Marshal(c)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected. Empty input yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigParse, yamlutil.FormatError(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(afero.NewOsFs(), nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// ConfigNotFoundError lists the locations searched for a config name.
type ConfigNotFoundError struct {
	Name  string
	Tried []string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s (tried %s)", ErrConfigNotFound, e.Name, strings.Join(e.Tried, ", "))
}

func (e *ConfigNotFoundError) Unwrap() error {
	return ErrConfigNotFound
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, <user config dir>/go-htmlinline/
func resolveConfigPath(fs afero.Fs, name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(fs, localPath) {
			return localPath, nil
		}
		tried = append(tried, localPath)
	}

	// os.UserConfigDir honors XDG_CONFIG_HOME
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, AppName, name+ext)
			if fileutil.FileExists(fs, userPath) {
				return userPath, nil
			}
			tried = append(tried, userPath)
		}
	}

	return "", &ConfigNotFoundError{Name: name, Tried: tried}
}
