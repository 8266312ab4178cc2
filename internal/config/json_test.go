package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "mtms.json", map[string]any{
		"storage_backend":    "postgres",
		"database_dsn":       "postgres://ledger",
		"secret_key":         "my_secret_key",
		"session_ttl":        "45m",
		"password_hasher":    "bcrypt",
		"report_window_days": 30,
		"s3_bucket":          "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "postgres", cfg.StorageBackend)
		assert.Equal(t, "postgres://ledger", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
		assert.Equal(t, "bcrypt", cfg.PasswordHasher)
		assert.Equal(t, 30, cfg.ReportWindowDays)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		// untouched by the file
		assert.Equal(t, "mtms.json", cfg.DataFile)
		assert.Equal(t, "us-east-1", cfg.S3Region)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{StorageBackend: "memory", SessionTTL: time.Minute}
		require.NoError(t, parseJson(cfg, []string{"-m", "file"}))
		assert.Equal(t, &Config{StorageBackend: "memory", SessionTTL: time.Minute}, cfg)
	})

	t.Run("flags override json", func(t *testing.T) {
		cfg, err := LoadConfig([]string{"-c", path, "-m", "sqlite", "-r", "3"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.StorageBackend)
		assert.Equal(t, 3, cfg.ReportWindowDays)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
