package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/pkg/lineage"

	// Import source packages to ensure sources are registered via init()
	_ "github.com/querylens/querylens/internal/history/sources/duckdb"
	_ "github.com/querylens/querylens/internal/history/sources/jsonfile"
	_ "github.com/querylens/querylens/internal/history/sources/postgres"
	_ "github.com/querylens/querylens/internal/history/sources/sqlite"
)

// writeConfigFile writes a config fixture into dir and returns its path.
func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "querylens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestValidateSource tests the ValidateSource function.
func TestValidateSource(t *testing.T) {
	tests := []struct {
		name      string
		source    *history.Config
		wantErr   bool
		errSubstr string
	}{
		{
			name:      "nil source",
			source:    nil,
			wantErr:   true,
			errSubstr: "source type is required",
		},
		{
			name:      "empty type",
			source:    &history.Config{Type: ""},
			wantErr:   true,
			errSubstr: "source type is required",
		},
		{
			name:    "valid json",
			source:  &history.Config{Type: "json"},
			wantErr: false,
		},
		{
			name:    "valid json uppercase",
			source:  &history.Config{Type: "JSON"},
			wantErr: false,
		},
		{
			name:    "valid sqlite",
			source:  &history.Config{Type: "sqlite"},
			wantErr: false,
		},
		{
			name:    "valid duckdb",
			source:  &history.Config{Type: "duckdb"},
			wantErr: false,
		},
		{
			name:    "valid postgres",
			source:  &history.Config{Type: "postgres"},
			wantErr: false,
		},
		{
			name:      "unknown type mysql",
			source:    &history.Config{Type: "mysql"},
			wantErr:   true,
			errSubstr: "unknown history source type",
		},
		{
			name:      "unknown type redis",
			source:    &history.Config{Type: "redis"},
			wantErr:   true,
			errSubstr: "unknown history source type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr {
				require.Error(t, err, "expected error but got nil")
				if tt.errSubstr != "" {
					assert.Contains(t, err.Error(), tt.errSubstr)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateSource_ErrorContainsAvailable verifies that validation errors
// include the list of registered sources.
func TestValidateSource_ErrorContainsAvailable(t *testing.T) {
	err := ValidateSource(&history.Config{Type: "invalid_source"})
	require.Error(t, err, "expected error for invalid type")

	errStr := err.Error()
	// Should mention available sources
	assert.Contains(t, errStr, "json", "error should list available sources")
	// Should mention the config file
	assert.Contains(t, errStr, "querylens.yaml", "error should mention config file")
}

// TestExpandEnvVars tests the expandEnvVars function.
func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single variable",
			input:    "${TEST_VAR_ONE}",
			expected: "value_one",
		},
		{
			name:     "multiple variables",
			input:    "${TEST_VAR_ONE}/${TEST_VAR_TWO}",
			expected: "value_one/value_two",
		},
		{
			name:     "variable in path",
			input:    "/path/to/${TEST_VAR_ONE}/file",
			expected: "/path/to/value_one/file",
		},
		{
			name:     "unset variable stays as-is",
			input:    "${UNSET_VARIABLE}",
			expected: "${UNSET_VARIABLE}",
		},
		{
			name:     "no variables",
			input:    "plain string",
			expected: "plain string",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "mixed set and unset",
			input:    "${TEST_VAR_ONE}:${UNSET_VAR}",
			expected: "value_one:${UNSET_VAR}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestMergeSourceConfig tests the MergeSourceConfig function.
func TestMergeSourceConfig(t *testing.T) {
	t.Run("nil base returns override", func(t *testing.T) {
		override := &history.Config{Type: "sqlite", Path: "test.db"}
		result := MergeSourceConfig(nil, override)
		assert.Equal(t, override, result, "nil base should return override")
	})

	t.Run("nil override returns base", func(t *testing.T) {
		base := &history.Config{Type: "sqlite", Path: "test.db"}
		result := MergeSourceConfig(base, nil)
		assert.Equal(t, base, result, "nil override should return base")
	})

	t.Run("both nil returns nil", func(t *testing.T) {
		result := MergeSourceConfig(nil, nil)
		assert.Nil(t, result, "both nil should return nil")
	})

	t.Run("override replaces base fields", func(t *testing.T) {
		base := &history.Config{
			Type:     "postgres",
			Host:     "localhost",
			Port:     5432,
			Database: "base_db",
			Username: "base_user",
		}
		override := &history.Config{
			Database: "override_db",
			Username: "override_user",
		}

		result := MergeSourceConfig(base, override)

		assert.Equal(t, "postgres", result.Type, "Type should be inherited from base")
		assert.Equal(t, "localhost", result.Host, "Host should be inherited from base")
		assert.Equal(t, 5432, result.Port, "Port should be inherited from base")
		assert.Equal(t, "override_db", result.Database, "Database should be from override")
		assert.Equal(t, "override_user", result.Username, "Username should be from override")
	})

	t.Run("options are merged", func(t *testing.T) {
		base := &history.Config{
			Type: "sqlite",
			Options: map[string]string{
				"key1": "base_value1",
				"key2": "base_value2",
			},
		}
		override := &history.Config{
			Options: map[string]string{
				"key2": "override_value2",
				"key3": "override_value3",
			},
		}

		result := MergeSourceConfig(base, override)

		assert.Equal(t, "base_value1", result.Options["key1"], "key1 should be from base")
		assert.Equal(t, "override_value2", result.Options["key2"], "key2 should be from override")
		assert.Equal(t, "override_value3", result.Options["key3"], "key3 should be from override")
	})
}

// TestLoadConfig_Defaults tests loading without any config file.
func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultSourceType, cfg.Source.Type)
	assert.Contains(t, cfg.StatePath, DefaultStateFile)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
}

// TestLoadConfigWithSource_Fixtures tests LoadConfigWithSource with config files.
func TestLoadConfigWithSource_Fixtures(t *testing.T) {
	t.Run("valid sqlite config", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: sqlite
  path: history.db
`)

		cfg, err := LoadConfigWithSource(cfgPath, "", nil)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Source.Type)
		assert.Equal(t, filepath.Join(tmpDir, "history.db"), cfg.Source.Path,
			"relative source path should resolve against the config file directory")
	})

	t.Run("named source override", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
  path: history.json
sources:
  prod:
    type: postgres
    host: db.internal
    database: app
    username: readonly
`)

		cfg, err := LoadConfigWithSource(cfgPath, "prod", nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres", cfg.Source.Type)
		assert.Equal(t, "db.internal", cfg.Source.Host)
		assert.Equal(t, "app", cfg.Source.Database)
	})

	t.Run("nonexistent named source falls back to base", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: sqlite
  path: history.db
`)

		cfg, err := LoadConfigWithSource(cfgPath, "nonexistent", nil)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Source.Type)
	})

	t.Run("invalid unknown type", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: mysql
`)

		_, err := LoadConfigWithSource(cfgPath, "", nil)
		require.Error(t, err, "expected error for unknown type")

		assert.Contains(t, err.Error(), "invalid source configuration")
		assert.Contains(t, err.Error(), "mysql")
	})

	t.Run("source type is normalized to lower case", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: JSON
  path: history.json
`)

		cfg, err := LoadConfigWithSource(cfgPath, "", nil)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Source.Type)
	})

	t.Run("config with env vars", func(t *testing.T) {
		ResetConfig()
		t.Setenv("TEST_DB_PATH", "/path/to/test.db")
		t.Setenv("TEST_DB_USER", "testuser")
		t.Setenv("TEST_DB_PASSWORD", "secret123")

		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: sqlite
  path: ${TEST_DB_PATH}
  username: ${TEST_DB_USER}
  password: ${TEST_DB_PASSWORD}
`)

		cfg, err := LoadConfigWithSource(cfgPath, "", nil)
		require.NoError(t, err)

		assert.Equal(t, "/path/to/test.db", cfg.Source.Path)
		assert.Equal(t, "testuser", cfg.Source.Username)
		assert.Equal(t, "secret123", cfg.Source.Password)
	})

	t.Run("build and serve sections", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
  path: history.json
build:
  view_mode: TABLE_ONLY
  query_type: SELECT
  default_schema: public
serve:
  port: 9900
  workers: 2
`)

		cfg, err := LoadConfigWithSource(cfgPath, "", nil)
		require.NoError(t, err)

		opts := cfg.Build.Options()
		assert.Equal(t, lineage.ViewModeTableOnly, opts.ViewMode)
		assert.Equal(t, "SELECT", opts.QueryTypeFilter)
		assert.Equal(t, "public", opts.DefaultSchema)

		serve := cfg.GetServeConfig()
		assert.Equal(t, 9900, serve.Port)
		assert.Equal(t, 2, serve.Workers)
	})
}

// TestLoadConfigWithSource_SourcesFile tests standalone sources files.
func TestLoadConfigWithSource_SourcesFile(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()

	sourcesPath := filepath.Join(tmpDir, "sources.yaml")
	require.NoError(t, os.WriteFile(sourcesPath, []byte(`sources:
  local:
    type: sqlite
    path: local.db
  shared:
    type: duckdb
    path: shared.duckdb
`), 0600))

	cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
  path: history.json
sources_file: sources.yaml
sources:
  local:
    type: json
    path: inline.json
`)

	t.Run("file definition is selectable", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithSource(cfgPath, "shared", nil)
		require.NoError(t, err)
		assert.Equal(t, "duckdb", cfg.Source.Type)
		assert.Equal(t, filepath.Join(tmpDir, "shared.duckdb"), cfg.Source.Path,
			"selected source path should resolve against the config file directory")
	})

	t.Run("inline definition wins on name clash", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithSource(cfgPath, "local", nil)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Source.Type)
		assert.Equal(t, filepath.Join(tmpDir, "inline.json"), cfg.Source.Path)
	})
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
state_path: from_file.db
`)

	t.Setenv("QUERYLENS_STATE_PATH", "from_env.db")

	// Create flag set with yet another value
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database path")
	require.NoError(t, flags.Set("state", "from_flag.db"))

	cfg, err := LoadConfigWithSource(cfgPath, "", flags)
	require.NoError(t, err)

	// Flag should win; flag paths resolve against the working directory
	wantPath, err := filepath.Abs("from_flag.db")
	require.NoError(t, err)
	assert.Equal(t, wantPath, cfg.StatePath, "flag value should override config file and env var")
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override the config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
state_path: from_file.db
`)

	t.Setenv("QUERYLENS_STATE_PATH", "from_env.db")

	cfg, err := LoadConfigWithSource(cfgPath, "", nil)
	require.NoError(t, err)

	// Env should win over file; both resolve against the config file dir
	assert.Equal(t, filepath.Join(tmpDir, "from_env.db"), cfg.StatePath,
		"env var should override config file")
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()

	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, `source:
  type: json
state_path: from_file.db
`)

	t.Setenv("QUERYLENS_STATE_PATH", "from_env.db")

	// Create flag set but don't set the flag (Changed will be false)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database path")

	cfg, err := LoadConfigWithSource(cfgPath, "", flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "from_env.db"), cfg.StatePath,
		"env var should be used when flag is not set")
}

// TestGetServeConfig tests serve config defaulting.
func TestGetServeConfig(t *testing.T) {
	t.Run("nil serve section uses defaults", func(t *testing.T) {
		cfg := &Config{}
		serve := cfg.GetServeConfig()
		assert.Equal(t, DefaultPort, serve.Port)
		assert.Equal(t, DefaultWorkers, serve.Workers)
	})

	t.Run("partial serve section fills gaps", func(t *testing.T) {
		cfg := &Config{Serve: &ServeConfig{Port: 9100}}
		serve := cfg.GetServeConfig()
		assert.Equal(t, 9100, serve.Port)
		assert.Equal(t, DefaultWorkers, serve.Workers)
	})
}

// TestGetLogger tests the context logger helpers.
func TestGetLogger(t *testing.T) {
	t.Run("missing logger returns discard fallback", func(t *testing.T) {
		logger := GetLogger(t.Context())
		require.NotNil(t, logger)
	})

	t.Run("stored logger is returned", func(t *testing.T) {
		want := slog.New(slog.DiscardHandler)
		ctx := context.WithValue(t.Context(), LoggerKey(), want)
		assert.Same(t, want, GetLogger(ctx))
	})
}
