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
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err, "load without a config file should use defaults")

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./public", cfg.StaticDir)

	assert.Equal(t, 8, cfg.DefaultCapacity)
	assert.Equal(t, 180, cfg.DiscussionTime)
	assert.Equal(t, 60, cfg.VoteTime)

	assert.Equal(t, 30*time.Minute, cfg.EndedRoomTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 45*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 256, cfg.RequestBuffer)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_config.json")

	content := `{
		"port": 8080,
		"log_level": "debug",
		"public_url": "https://play.example.com/",
		"ended_room_ttl": "10m",
		"default_capacity": 10
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CONSPIRACY_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port, "environment should override the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10, cfg.DefaultCapacity)
	assert.Equal(t, 10*time.Minute, cfg.EndedRoomTTL)
	assert.Equal(t, "https://play.example.com", cfg.BaseURL())

	// 未设置的键仍然使用默认值
	assert.Equal(t, 60, cfg.VoteTime)
}

func TestLoadConfig_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "app_config.json"),
		[]byte(`{"host": "127.0.0.1", "vote_time": 90}`),
		0o644,
	))

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 90, cfg.VoteTime)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err, "explicit config path must exist")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("heartbeat", func(t *testing.T) {
		t.Setenv("CONSPIRACY_HEARTBEAT_TIMEOUT", "10s")

		_, err := LoadConfig("")
		assert.Error(t, err, "heartbeat timeout shorter than the interval should be rejected")
	})

	t.Run("port", func(t *testing.T) {
		t.Setenv("CONSPIRACY_PORT", "70000")

		_, err := LoadConfig("")
		assert.Error(t, err)
	})
}
