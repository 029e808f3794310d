package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.UsesDevSecret())
	assert.Equal(t, domain.ProviderDisabled, cfg.Embedding.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("EMBEDDING_PROVIDER", "mock")
	t.Setenv("EMBEDDING_DIMENSIONS", "32")
	t.Setenv("FUSION_FULLTEXT_WEIGHT", "0.5")
	t.Setenv("FUSION_SCOPE_BOOST", "false")
	t.Setenv("BACKFILL_INTERVAL_SEC", "30")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("MCP_ORGANIZATION_IDS", "org-1,org-2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, domain.ProviderMock, cfg.Embedding.Provider)
	assert.Equal(t, 32, cfg.Embedding.Dimensions)
	assert.InDelta(t, 0.5, cfg.Fusion.FulltextWeight, 1e-9)
	assert.False(t, cfg.Fusion.ScopeBoost)
	assert.Equal(t, 30*time.Second, cfg.Backfill.Interval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"org-1", "org-2"}, cfg.MCPCaller().OrganizationIDs)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hindsight.yaml")
	content := `
server:
  port: 7070
database:
  driver: sqlite
  path: ${TEST_HINDSIGHT_DB:-fallback.db}
embedding:
  provider: local
  model: nomic-embed-text
fusion:
  fulltext_weight: 0.6
  semantic_weight: 0.4
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HINDSIGHT_CONFIG", path)
	t.Setenv("TEST_HINDSIGHT_DB", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "fallback.db", cfg.Database.Path)
	assert.Equal(t, domain.ProviderLocal, cfg.Embedding.Provider)
	assert.InDelta(t, 0.6, cfg.Fusion.FulltextWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Fusion.SemanticWeight, 1e-9)
	// Values absent from the file keep their defaults
	assert.Equal(t, 2, cfg.Fusion.CandidateMultiplier)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("HINDSIGHT_CONFIG", path)
	t.Setenv("PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("HINDSIGHT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv("HINDSIGHT_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database.url",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.Driver = DriverSQLite
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantErr: "embedding.provider",
		},
		{
			name:    "unknown llm provider",
			mutate:  func(c *Config) { c.LLM.Provider = "anthropic" },
			wantErr: "llm.provider",
		},
		{
			name:    "weight out of range",
			mutate:  func(c *Config) { c.Fusion.SemanticWeight = 1.5 },
			wantErr: "fusion.semantic_weight",
		},
		{
			name:    "default above max",
			mutate:  func(c *Config) { c.Search.DefaultLimit = 500 },
			wantErr: "search.default_limit",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Auth.JWTSecret = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, domain.ProviderDisabled, cfg.Embedding.Provider)
	assert.Equal(t, domain.ProviderDisabled, cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 2, cfg.Fusion.CandidateMultiplier)
	assert.Equal(t, 100, cfg.Backfill.BatchSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseLevel("trace")
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_HINDSIGHT_SET", "value")
	t.Setenv("TEST_HINDSIGHT_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"a: ${TEST_HINDSIGHT_SET}", "a: value"},
		{"a: ${TEST_HINDSIGHT_SET:-other}", "a: value"},
		{"a: ${TEST_HINDSIGHT_EMPTY:-other}", "a: other"},
		{"a: ${TEST_HINDSIGHT_EMPTY}", "a: "},
		{"a: plain", "a: plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(expandEnvVars([]byte(tt.in))), tt.in)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_HINDSIGHT_INT", "not-a-number")
	t.Setenv("TEST_HINDSIGHT_BOOL", "yes")
	t.Setenv("TEST_HINDSIGHT_FLOAT", "0.25")

	assert.Equal(t, 7, getEnvInt("TEST_HINDSIGHT_INT", 7))
	assert.True(t, getEnvBool("TEST_HINDSIGHT_BOOL", false))
	assert.InDelta(t, 0.25, getEnvFloat("TEST_HINDSIGHT_FLOAT", 0), 1e-9)
	assert.Equal(t, "fallback", getEnv("TEST_HINDSIGHT_UNSET", "fallback"))
}
