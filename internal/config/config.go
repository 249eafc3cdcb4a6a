// Package config loads and validates the optional .exbuild YAML file and
// the environment overrides for the build invocation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the project root.
const FileName = ".exbuild"

// Defaults for the example build.
const (
	DefaultLabel      = "DART_BUILD"
	DefaultDir        = "."
	DefaultTarget     = "exe"
	DefaultSource     = "example/main.dart"
	DefaultLoggerName = "BigDouble_PyBuilder"
	DefaultMaxOutput  = 1 << 20 // 1 MB
)

// DefaultExecutable returns the Dart launcher for the current platform.
// The SDK ships dart.bat on Windows.
func DefaultExecutable() string {
	if runtime.GOOS == "windows" {
		return "dart.bat"
	}
	return "dart"
}

// Invocation describes the one compiler call a build makes.
type Invocation struct {
	Executable string `yaml:"executable"` // compiler launcher, resolved via PATH
	Target     string `yaml:"target"`     // dart compile target kind (exe, aot-snapshot, js, ...)
	Source     string `yaml:"source"`     // entry point, relative to Dir
	Dir        string `yaml:"dir"`        // working directory, relative to the process cwd
	Label      string `yaml:"label"`      // name used in log records
}

// Argv returns the command line: executable, "compile", target, source.
func (i Invocation) Argv() []string {
	return []string{i.Executable, "compile", i.Target, i.Source}
}

// Config holds the parsed .exbuild configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int        `yaml:"version"`
	Build        Invocation `yaml:"build"`
	LoggerName   string     `yaml:"logger_name"`
	LogLevel     string     `yaml:"log_level"`  // debug, info, warn, error
	RawTimeout   string     `yaml:"timeout"`    // e.g. "5m"; empty waits forever
	RawMaxOutput int        `yaml:"max_output"` // bytes
	FailOpen     bool       `yaml:"fail_open"`  // exit 0 even when the compiler fails
}

// Invocation returns the build invocation with defaults filled in.
func (c *Config) Invocation() Invocation {
	inv := c.Build
	if inv.Executable == "" {
		inv.Executable = DefaultExecutable()
	}
	if inv.Target == "" {
		inv.Target = DefaultTarget
	}
	if inv.Source == "" {
		inv.Source = DefaultSource
	}
	if inv.Dir == "" {
		inv.Dir = DefaultDir
	}
	if inv.Label == "" {
		inv.Label = DefaultLabel
	}
	return inv
}

// Logger returns the configured logger name or the default.
func (c *Config) Logger() string {
	if c.LoggerName != "" {
		return c.LoggerName
	}
	return DefaultLoggerName
}

// Timeout returns the configured timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Validate reports configuration values that cannot produce a build.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("timeout %q: %w", c.RawTimeout, err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("timeout %q must not be negative", c.RawTimeout))
		}
	}
	if c.RawMaxOutput < 0 {
		errs = append(errs, fmt.Errorf("max_output %d must not be negative", c.RawMaxOutput))
	}
	return errors.Join(errs...)
}

// Environment variables that override the config file.
const (
	EnvExecutable = "EXBUILD_EXECUTABLE"
	EnvTarget     = "EXBUILD_TARGET"
	EnvSource     = "EXBUILD_SOURCE"
	EnvDir        = "EXBUILD_DIR"
	EnvLabel      = "EXBUILD_LABEL"
	EnvTimeout    = "EXBUILD_TIMEOUT"
	EnvFailOpen   = "EXBUILD_FAIL_OPEN"
	EnvLogLevel   = "EXBUILD_LOG_LEVEL"
)

// ApplyEnv overrides fields from lookup. Unset variables leave the field as is.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvExecutable, &c.Build.Executable)
	str(EnvTarget, &c.Build.Target)
	str(EnvSource, &c.Build.Source)
	str(EnvDir, &c.Build.Dir)
	str(EnvLabel, &c.Build.Label)
	str(EnvTimeout, &c.RawTimeout)
	str(EnvLogLevel, &c.LogLevel)

	if v, ok := lookup(EnvFailOpen); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFailOpen, err)
		}
		c.FailOpen = b
	}
	return nil
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config      *Config
	ProjectRoot string // directory containing pubspec.yaml; falls back to workspace
}

// Load reads the .exbuild file from the project root, then applies the
// workspace's .env file and finally the process environment.
// The project root is discovered by walking upward from workspace looking
// for pubspec.yaml. Missing files are not an error.
func Load(workspace string) (*LoadResult, error) {
	root, err := findProjectRoot(workspace)
	if err != nil {
		// No pubspec.yaml found; use workspace as root.
		root = workspace
	}

	cfg := &Config{}
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	dotenv, err := readDotenv(filepath.Join(workspace, ".env"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := dotenv[k]
		return v, ok
	}); err != nil {
		return nil, fmt.Errorf("applying .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &LoadResult{Config: cfg, ProjectRoot: root}, nil
}

// readDotenv parses a .env file without touching the process environment.
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing .env: %w", err)
	}
	return env, nil
}

// findProjectRoot walks upward from dir looking for a directory containing pubspec.yaml.
func findProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "pubspec.yaml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("pubspec.yaml not found")
		}
		dir = parent
	}
}
