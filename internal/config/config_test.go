package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "vector", cfg.Render.Backend)
	assert.Equal(t, "A4", cfg.Render.Options.PageSize)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"llm": {"model": "gpt-4o", "timeout": 60000000000},
		"image_gen": {"enabled": true, "base_url": "https://images.example", "max_polls": 10},
		"storage": {"driver": "s3", "bucket": "leads"}
	}`), 0o600))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("LLM_TIMEOUT", "45s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(path, filepath.Join(dir, "none.env"))

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.ImageGen.Enabled)
	assert.Equal(t, "https://images.example", cfg.ImageGen.BaseURL)
	assert.Equal(t, 10, cfg.ImageGen.MaxPolls)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CRM_WEBHOOK_URL=https://crm.example/hook\nREDIS_ADDR=localhost:6379\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CRM_WEBHOOK_URL")
		os.Unsetenv("REDIS_ADDR")
	})

	cfg, err := LoadConfig("", envFile)

	require.NoError(t, err)
	assert.Equal(t, "https://crm.example/hook", cfg.CRM.WebhookURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "eighty")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "SERVER_PORT")
	})
	t.Run("short jwt secret", func(t *testing.T) {
		t.Setenv("ADMIN_API_KEY", "k")
		t.Setenv("JWT_SECRET", "short")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "jwt_secret")
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("RENDER_BACKEND", "fax")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "render.backend")
	})
	t.Run("s3 without bucket", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "storage.bucket")
	})
	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "pw", DBName: "reports", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:pw@db:5432/reports?sslmode=disable", db.GetDatabaseURL())

	db.URL = "postgres://override"
	assert.Equal(t, "postgres://override", db.GetDatabaseURL())
}
