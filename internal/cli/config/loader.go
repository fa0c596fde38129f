package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/querylens/querylens/internal/history"
)

// loggerKey is used to store logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// findConfigFile finds the config file to use.
// Priority: explicit path > querylens.yaml > querylens.yml, searching
// upward from the working directory so commands work from a subdirectory
// of the project.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{"querylens.yaml", "querylens.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithSource(cfgFile, "", flags)
}

// LoadConfigWithSource loads configuration with an optional named-source
// override. The sourceName parameter selects a definition from the
// sources: section (or the sources file) and overlays it on the base
// source config. The flags parameter allows CLI flags to override config
// file and env var values.
func LoadConfigWithSource(cfgFile string, sourceName string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Track the state path when explicitly provided as a flag. Flag paths
	// are relative to the working directory, not the config file, so they
	// are made absolute before the normal resolution step.
	var flagStatePath string
	if flags != nil && flags.Changed("state") {
		if v, _ := flags.GetString("state"); v != "" {
			flagStatePath, _ = filepath.Abs(v)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"source.type": DefaultSourceType,
		"source.path": DefaultSourcePath,
		"state_path":  DefaultStateFile,
		"verbose":     false,
		"output":      DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (QUERYLENS_ prefix)
	// Transform: QUERYLENS_STATE_PATH -> state_path
	if err := k.Load(env.Provider("QUERYLENS_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "QUERYLENS_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// --config and --source are not config keys: the former names
			// the file itself, the latter selects a named source and would
			// otherwise clobber the source: map with a string.
			if f.Name == "config" || f.Name == "source" {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// EXPLICIT MAPPING: Bridge the gap between --state flag and state_path config key
			// The CLI uses --state for brevity, but the config struct uses state_path for clarity
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the project root: the directory
	// of the config file in use, or the working directory without one.
	projectRoot := "."
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	} else if cwd, err := os.Getwd(); err == nil {
		projectRoot = cwd
	}

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	cfg.SourcesFile = resolvePathRelativeTo(cfg.SourcesFile, projectRoot)

	// 7. Collect named sources: standalone sources file first, then the
	// inline sources: section, so inline definitions win on name clashes.
	if cfg.SourcesFile != "" {
		named, err := history.LoadSourcesFile(cfg.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load sources file: %w", err)
		}
		if cfg.Sources == nil {
			cfg.Sources = make(map[string]*history.Config, len(named))
		}
		for name, src := range named {
			if _, ok := cfg.Sources[name]; !ok {
				s := src
				cfg.Sources[name] = &s
			}
		}
	}

	// Initialize default source if not specified
	if cfg.Source == nil {
		cfg.Source = &history.Config{
			Type: DefaultSourceType,
			Path: DefaultSourcePath,
		}
	}

	// 8. Apply the named source override if one was selected. An unknown
	// name falls back to the base source config.
	if sourceName != "" && cfg.Sources != nil {
		if named, ok := cfg.Sources[sourceName]; ok {
			cfg.Source = MergeSourceConfig(cfg.Source, named)
		}
	}

	// Normalize the source type and expand environment variables in
	// connection fields
	cfg.Source.Type = strings.ToLower(strings.TrimSpace(cfg.Source.Type))
	expandSourceEnvVars(cfg.Source)
	for _, src := range cfg.Sources {
		expandSourceEnvVars(src)
	}

	// Resolve file-backed source paths against the project root
	if cfg.Source.Path != "" && cfg.Source.Path != ":memory:" {
		cfg.Source.Path = resolvePathRelativeTo(cfg.Source.Path, projectRoot)
	}

	// Validate source configuration
	if err := ValidateSource(cfg.Source); err != nil {
		return nil, fmt.Errorf("invalid source configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig or LoadConfigWithSource is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	// Match ${VAR} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSourceEnvVars expands environment variables in connection fields.
func expandSourceEnvVars(src *history.Config) {
	if src == nil {
		return
	}
	src.Path = expandEnvVars(src.Path)
	src.Host = expandEnvVars(src.Host)
	src.Database = expandEnvVars(src.Database)
	src.Username = expandEnvVars(src.Username)
	src.Password = expandEnvVars(src.Password)
}
