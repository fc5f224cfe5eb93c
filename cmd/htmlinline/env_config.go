package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alnah/go-htmlinline/internal/config"
)

// ErrEnvFile is returned when an explicit --env-file cannot be loaded.
var ErrEnvFile = errors.New("cannot load env file")

// defaultEnvFile is loaded when present and --env-file is not given.
const defaultEnvFile = ".env"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
// Pointer fields are nil when the variable is unset or invalid.
type envConfig struct {
	ConfigPath  string         // HTMLINLINE_CONFIG
	InputDir    string         // HTMLINLINE_INPUT_DIR
	Workers     *int           // HTMLINLINE_WORKERS
	Images      *bool          // HTMLINLINE_INLINE_IMAGES
	Styles      *bool          // HTMLINLINE_INLINE_STYLES
	Scripts     *bool          // HTMLINLINE_INLINE_SCRIPTS
	PreferLocal *bool          // HTMLINLINE_PREFER_LOCAL
	MaxSize     *int           // HTMLINLINE_MAX_SIZE
	Timeout     *time.Duration // HTMLINLINE_FETCH_TIMEOUT
	MaxBytes    *int64         // HTMLINLINE_FETCH_MAX_BYTES
	CacheSize   *int           // HTMLINLINE_CACHE_SIZE
	LogLevel    string         // HTMLINLINE_LOG_LEVEL
	LogFile     string         // HTMLINLINE_LOG_FILE
	MetricsFile string         // HTMLINLINE_METRICS_FILE
}

// knownEnvVars lists valid HTMLINLINE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"HTMLINLINE_CONFIG":          true,
	"HTMLINLINE_INPUT_DIR":       true,
	"HTMLINLINE_WORKERS":         true,
	"HTMLINLINE_INLINE_IMAGES":   true,
	"HTMLINLINE_INLINE_STYLES":   true,
	"HTMLINLINE_INLINE_SCRIPTS":  true,
	"HTMLINLINE_PREFER_LOCAL":    true,
	"HTMLINLINE_MAX_SIZE":        true,
	"HTMLINLINE_FETCH_TIMEOUT":   true,
	"HTMLINLINE_FETCH_MAX_BYTES": true,
	"HTMLINLINE_CACHE_SIZE":      true,
	"HTMLINLINE_LOG_LEVEL":       true,
	"HTMLINLINE_LOG_FILE":        true,
	"HTMLINLINE_METRICS_FILE":    true,
}

// loadDotEnv loads variables from path without overriding those already
// set. An empty path loads .env when it exists.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrEnvFile, path, err)
	}
	return nil
}

// loadEnvConfig reads configuration from environment variables.
// Values that do not parse are reported on w and ignored.
func loadEnvConfig(w io.Writer) *envConfig {
	p := envParser{w: w}
	return &envConfig{
		ConfigPath:  os.Getenv("HTMLINLINE_CONFIG"),
		InputDir:    os.Getenv("HTMLINLINE_INPUT_DIR"),
		Workers:     p.int("HTMLINLINE_WORKERS"),
		Images:      p.bool("HTMLINLINE_INLINE_IMAGES"),
		Styles:      p.bool("HTMLINLINE_INLINE_STYLES"),
		Scripts:     p.bool("HTMLINLINE_INLINE_SCRIPTS"),
		PreferLocal: p.bool("HTMLINLINE_PREFER_LOCAL"),
		MaxSize:     p.int("HTMLINLINE_MAX_SIZE"),
		Timeout:     p.duration("HTMLINLINE_FETCH_TIMEOUT"),
		MaxBytes:    p.int64("HTMLINLINE_FETCH_MAX_BYTES"),
		CacheSize:   p.int("HTMLINLINE_CACHE_SIZE"),
		LogLevel:    os.Getenv("HTMLINLINE_LOG_LEVEL"),
		LogFile:     os.Getenv("HTMLINLINE_LOG_FILE"),
		MetricsFile: os.Getenv("HTMLINLINE_METRICS_FILE"),
	}
}

type envParser struct {
	w io.Writer
}

func (p envParser) warn(name, value, want string) {
	fmt.Fprintf(p.w, "warning: ignoring %s=%q (want %s)\n", name, value, want)
}

func (p envParser) bool(name string) *bool {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.warn(name, v, "true or false")
		return nil
	}
	return &b
}

func (p envParser) int(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.warn(name, v, "an integer")
		return nil
	}
	return &n
}

func (p envParser) int64(name string) *int64 {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.warn(name, v, "an integer")
		return nil
	}
	return &n
}

func (p envParser) duration(name string) *time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.warn(name, v, "a positive duration like 30s")
		return nil
	}
	return &d
}

// warnUnknownEnvVars logs warnings for unrecognized HTMLINLINE_* variables.
// Helps catch typos like HTMLINLINE_WORKER instead of HTMLINLINE_WORKERS.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "HTMLINLINE_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config file values with environment values.
// Order: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.InputDir != "" {
		cfg.Input.Dir = env.InputDir
	}
	if env.Workers != nil {
		cfg.Workers = *env.Workers
	}

	if env.Images != nil {
		cfg.Inline.Images = *env.Images
	}
	if env.Styles != nil {
		cfg.Inline.Styles = *env.Styles
	}
	if env.Scripts != nil {
		cfg.Inline.Scripts = *env.Scripts
	}
	if env.PreferLocal != nil {
		cfg.Inline.PreferLocal = *env.PreferLocal
	}
	if env.MaxSize != nil {
		cfg.Inline.MaxSize = *env.MaxSize
	}

	if env.Timeout != nil {
		cfg.Fetch.Timeout = *env.Timeout
	}
	if env.MaxBytes != nil {
		cfg.Fetch.MaxBytes = *env.MaxBytes
	}
	if env.CacheSize != nil {
		cfg.Cache.Size = *env.CacheSize
	}

	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.Log.File = env.LogFile
	}
	if env.MetricsFile != "" {
		cfg.Metrics.File = env.MetricsFile
	}
}
