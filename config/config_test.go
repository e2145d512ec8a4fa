package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "Issue Report", cfg.Split.Marker)
	assert.Equal(t, 3, cfg.Split.ScanPages)
	assert.Equal(t, "Issue_{Issue ID}", cfg.Split.Pattern)
	assert.Equal(t, "skip", cfg.Split.MissingPolicy)

	// 默认配置被写回磁盘
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
storage:
  type: minio
  access_key: ${TEST_SPLITTER_ACCESS_KEY}
  secret_key: plain-secret
split:
  pattern: "{Issue ID}_{Location}"
  fields:
    - Location
    - Priority
log:
  file: logs/app.log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("TEST_SPLITTER_ACCESS_KEY", "from-env")
	t.Setenv("SPLIT_PLACEHOLDER", "unknown")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "from-env", cfg.Storage.AccessKey)
	assert.Equal(t, "plain-secret", cfg.Storage.SecretKey)
	assert.Equal(t, "{Issue ID}_{Location}", cfg.Split.Pattern)
	assert.Equal(t, []string{"Location", "Priority"}, cfg.Split.Fields)
	assert.Equal(t, "unknown", cfg.Split.Placeholder)
	assert.Equal(t, "logs/app.log", cfg.Log.File)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_SPLITTER_VALUE", "x")
	assert.Equal(t, "x", expandEnv("${TEST_SPLITTER_VALUE}"))
	assert.Equal(t, "${TEST_SPLITTER_UNSET}", expandEnv("${TEST_SPLITTER_UNSET}"))
	assert.Equal(t, "literal", expandEnv("literal"))
}
