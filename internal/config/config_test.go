package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv removes every TSS_* variable for the duration of the
// test so results do not depend on the invoking shell.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, EnvPrefix+"_") {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		key, val := parts[0], parts[1]
		os.Unsetenv(key)
		t.Cleanup(func() { os.Setenv(key, val) })
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8091, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Server.OperationTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "output", cfg.Paths.OutputDir)

	assert.Equal(t, int64(104857600), cfg.Limits.MaxFileSizeBytes)
	assert.Equal(t, 1000, cfg.Limits.MaxScanRows)
	assert.Equal(t, 50, cfg.Limits.HeaderSearchRows)

	assert.Equal(t, []string{"D", "E", "F"}, cfg.Fill.Columns)
	assert.Equal(t, 11, cfg.Fill.StartRow)

	assert.Equal(t, "H", cfg.Dedupe.IndicatorColumn)
	assert.Equal(t, 11, cfg.Dedupe.StartRow)
	assert.Equal(t, "SD", cfg.Dedupe.Marker)
	assert.Equal(t, []string{"B", "C", "D", "E", "F", "I", "J"}, cfg.Dedupe.KeyColumns)
	assert.Equal(t, []string{"K", "L", "M"}, cfg.Dedupe.ClearColumns)
	assert.Equal(t, "Yearly", cfg.Dedupe.DefaultFrequency)

	assert.Equal(t, "Q", cfg.CrossRef.ListColumn)
	assert.Equal(t, 11, cfg.CrossRef.StartRow)
	assert.Equal(t, "R", cfg.CrossRef.FirstArticleColumn)
	assert.Equal(t, 5, cfg.CrossRef.EmptyStreakStop)

	assert.Equal(t, "-", cfg.Mapping.CombinationDelimiter)
	for _, typ := range []string{"F", "M", "C", "P"} {
		table, ok := cfg.Mapping.Table(typ)
		require.True(t, ok, "missing mapping table for %s", typ)
		assert.NotEmpty(t, table.Rules)
	}

	fTable := cfg.Mapping.Tables["F"]
	require.Len(t, fTable.Literals, 1)
	assert.Equal(t, "A", fTable.Literals[0].Target)
	assert.Equal(t, "Art", fTable.Literals[0].Value)

	assert.Equal(t, []string{"J", "K", "L"}, cfg.Prefill.Columns["M"])
	assert.Equal(t, []string{"I", "J", "K"}, cfg.Prefill.Columns["C"])
	assert.NotContains(t, cfg.Prefill.Columns, "F")

	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.Equal(t, Default().Dedupe.Marker, cfg.Dedupe.Marker)
}

func TestLoad_FromFile(t *testing.T) {
	clearConfigEnv(t)

	content := `
server:
  port: 9000
logging:
  level: debug
limits:
  max_file_size_bytes: 52428800
dedupe:
  marker: XX
  indicator_column: H
  key_columns: [B, C]
  frequency_column: N
  default_frequency: Monthly
  start_row: 4
fill:
  columns: [D, E]
  start_row: 4
  max_iterations: 500
mapping:
  tables:
    P:
      rules:
        - {source: B, target: Q}
        - {source: O+P, target: I}
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv(EnvPrefix+"_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, int64(52428800), cfg.Limits.MaxFileSizeBytes)
	assert.Equal(t, "XX", cfg.Dedupe.Marker)
	assert.Equal(t, "Monthly", cfg.Dedupe.DefaultFrequency)
	assert.Equal(t, []string{"D", "E"}, cfg.Fill.Columns)

	// The file redefined only the P table; the rest are inherited.
	pTable, ok := cfg.Mapping.Table("P")
	require.True(t, ok)
	assert.Len(t, pTable.Rules, 2)
	fTable, ok := cfg.Mapping.Table("F")
	require.True(t, ok)
	assert.NotEmpty(t, fTable.Rules)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)

	content := "server:\n  port: 9000\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv(EnvPrefix+"_CONFIG_FILE", path)
	t.Setenv(EnvPrefix+"_SERVER_PORT", "9100")
	t.Setenv(EnvPrefix+"_DEDUPE_KEY_COLUMNS", "B,C,D")
	t.Setenv(EnvPrefix+"_WEBSOCKET_BROADCAST_RATE", "5.5")
	t.Setenv(EnvPrefix+"_SERVER_READ_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"B", "C", "D"}, cfg.Dedupe.KeyColumns)
	assert.Equal(t, 5.5, cfg.WebSocket.BroadcastRate)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv(EnvPrefix+"_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))
	t.Setenv(EnvPrefix+"_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ProbesWorkingDirectory(t *testing.T) {
	clearConfigEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9200\n"), 0644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "Port",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "Level",
		},
		{
			name:    "fill column not a letter",
			mutate:  func(c *Config) { c.Fill.Columns = []string{"D", "4"} },
			wantErr: "fill.columns",
		},
		{
			name:    "lowercase key column rejected",
			mutate:  func(c *Config) { c.Dedupe.KeyColumns = []string{"b"} },
			wantErr: "dedupe.key_columns",
		},
		{
			name: "duplicate mapping target",
			mutate: func(c *Config) {
				c.Mapping.Tables["M"] = TypeMapping{Rules: []ColumnRule{
					{Source: "B", Target: "B"},
					{Source: "C", Target: "B"},
				}}
			},
			wantErr: "mapped twice",
		},
		{
			name: "literal target collides with rule",
			mutate: func(c *Config) {
				c.Mapping.Tables["M"] = TypeMapping{
					Rules:    []ColumnRule{{Source: "B", Target: "A"}},
					Literals: []LiteralRule{{Target: "A", Value: "Art"}},
				}
			},
			wantErr: "mapped twice",
		},
		{
			name: "bad combination source",
			mutate: func(c *Config) {
				c.Mapping.Tables["M"] = TypeMapping{Rules: []ColumnRule{
					{Source: "K+", Target: "I"},
				}}
			},
			wantErr: "source",
		},
		{
			name:    "empty mapping tables",
			mutate:  func(c *Config) { c.Mapping.Tables = map[string]TypeMapping{} },
			wantErr: "mapping.tables",
		},
		{
			name:    "bad prefill column",
			mutate:  func(c *Config) { c.Prefill.Columns["M"] = []string{"J", "?"} },
			wantErr: "prefill.columns.M",
		},
		{
			name:    "zero scan rows",
			mutate:  func(c *Config) { c.Limits.MaxScanRows = 0 },
			wantErr: "MaxScanRows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestColumnRule_SourceColumns(t *testing.T) {
	tests := []struct {
		name   string
		rule   ColumnRule
		want   []string
		combod bool
	}{
		{
			name: "single source",
			rule: ColumnRule{Source: "C", Target: "D"},
			want: []string{"C"},
		},
		{
			name:   "combination source",
			rule:   ColumnRule{Source: "K+L", Target: "I"},
			want:   []string{"K", "L"},
			combod: true,
		},
		{
			name:   "combination with spaces",
			rule:   ColumnRule{Source: "O + P", Target: "I"},
			want:   []string{"O", "P"},
			combod: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.SourceColumns())
			assert.Equal(t, tt.combod, tt.rule.IsCombination())
		})
	}
}
