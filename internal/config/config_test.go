package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins:
    - "https://spots.sioma.com"

sioma:
  base_url: "https://api.sioma.test/v1"
  token: "file-token"
  timeout_seconds: 45
  catalog_ttl_seconds: 120

storage:
  dsn: "postgres://localhost/spots"

redis:
  addr: "localhost:6379"

ingest:
  enabled: true
  s3_bucket: "spot-uploads"
  s3_region: "us-east-1"
  finca_id: "9"
  interval_minutes: 10

validation:
  auto_remove_duplicates: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://spots.sioma.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "https://api.sioma.test/v1", cfg.Sioma.BaseURL)
	assert.Equal(t, "file-token", cfg.Sioma.Token)
	assert.Equal(t, 45*time.Second, cfg.Sioma.Timeout())
	assert.Equal(t, 2*time.Minute, cfg.Sioma.CatalogTTL())

	assert.Equal(t, "postgres://localhost/spots", cfg.Storage.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, "spot-uploads", cfg.Ingest.S3Bucket)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.Interval())

	assert.False(t, cfg.Validation.AutoRemoveDuplicatesOrDefault())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Sioma.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Sioma.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.Sioma.CatalogTTL())
	assert.Equal(t, 5*time.Minute, cfg.Ingest.Interval())
	assert.True(t, cfg.Validation.AutoRemoveDuplicatesOrDefault(),
		"duplicates are removed automatically unless configured off")
	assert.Empty(t, cfg.Storage.DSN, "storage is optional")
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
sioma:
  base_url: "https://file.example.com"
  token: "file-token"
`)

	t.Setenv("SIOMA_API_TOKEN", "env-token")
	t.Setenv("SIOMA_API_BASE_URL", "https://env.example.com")
	t.Setenv("DATABASE_URL", "postgres://env/spots")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Sioma.Token)
	assert.Equal(t, "https://env.example.com", cfg.Sioma.BaseURL)
	assert.Equal(t, "postgres://env/spots", cfg.Storage.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
