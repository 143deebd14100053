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

func setupTestConfig(t *testing.T) string {
	t.Helper()

	tmpConfigPath := filepath.Join(t.TempDir(), "config.yaml")
	setEnv(t, "MARQUEE_CONFIG_PATH", tmpConfigPath)

	t.Cleanup(func() {
		cleanupEnvVars(t)
	})

	return tmpConfigPath
}

// TestConfigIntegration tests the config package with actual file operations
// This test uses a temporary directory to avoid interfering with real user configs
func TestConfigIntegration(t *testing.T) {
	t.Run("LoadDefaultConfig", func(t *testing.T) {
		tmpConfigPath := setupTestConfig(t)
		config := loadConfig(t)

		assert.Equal(t, "", config.Player.Backend)
		assert.Equal(t, "mpv", config.Player.MPV.Path)
		assert.Equal(t, 300*time.Millisecond, config.Playback.StartDelay)
		assert.Equal(t, 20*time.Second, config.Progress.Interval)
		assert.Equal(t, 5*time.Second, config.Progress.MinDelta)
		assert.Equal(t, 10*time.Second, config.Progress.SeekThreshold)
		assert.Equal(t, "rest", config.Progress.Store)
		assert.True(t, config.Presence.PresenceEnabled())
		assert.True(t, config.Presence.WakeLockEnabled())
		assert.Equal(t, "info", config.Logging.Level)
		assert.NotEmpty(t, config.Logging.FilePath)
		assert.NotEmpty(t, config.Player.MPV.Socket)

		_, err := os.Stat(tmpConfigPath)
		require.NoError(t, err, "config file was not created")

		// Dynamic defaults are never written back to disk
		savedConfig, _ := loadFromDisk(tmpConfigPath)
		assert.Empty(t, savedConfig.Logging.FilePath)
		assert.Empty(t, savedConfig.Player.MPV.Socket)
	})

	t.Run("SaveAndLoadConfig", func(t *testing.T) {
		tmpConfigPath := setupTestConfig(t)
		disabled := false
		customConfig := &Config{
			Player: PlayerConfig{
				Backend: "tv-native",
				MPV:     MPVConfig{Path: "/usr/bin/mpv", Args: "--fullscreen", Socket: "/tmp/custom.sock"},
				Native:  NativeConfig{Socket: "/run/bridge.sock", FormFactor: "tv"},
			},
			Playback: PlaybackConfig{StartDelay: time.Second},
			Progress: ProgressConfig{
				Store:    "graphql",
				BaseURL:  "https://example.test/graphql",
				Interval: 30 * time.Second,
			},
			Presence: PresenceConfig{Enabled: &disabled},
			Logging: LoggingConfig{
				Level:    "error",
				FilePath: "/var/log/marquee.log",
			},
		}

		saveConfig(t, customConfig, tmpConfigPath)
		loadedConfig := loadConfig(t)

		assert.Equal(t, "tv-native", loadedConfig.Player.Backend)
		assert.Equal(t, "/usr/bin/mpv", loadedConfig.Player.MPV.Path)
		assert.Equal(t, "--fullscreen", loadedConfig.Player.MPV.Args)
		assert.Equal(t, "/tmp/custom.sock", loadedConfig.Player.MPV.Socket)
		assert.Equal(t, "tv", loadedConfig.Player.Native.FormFactor)
		assert.Equal(t, time.Second, loadedConfig.Playback.StartDelay)
		// unset values keep their defaults
		assert.Equal(t, 150*time.Millisecond, loadedConfig.Playback.TeardownGrace)
		assert.Equal(t, "graphql", loadedConfig.Progress.Store)
		assert.Equal(t, 30*time.Second, loadedConfig.Progress.Interval)
		assert.Equal(t, 5*time.Second, loadedConfig.Progress.MinDelta)
		assert.False(t, loadedConfig.Presence.PresenceEnabled())
		assert.Equal(t, "error", loadedConfig.Logging.Level)
		assert.Equal(t, "/var/log/marquee.log", loadedConfig.Logging.FilePath)
	})

	t.Run("DurationsAsStrings", func(t *testing.T) {
		tmpConfigPath := setupTestConfig(t)
		content := "progress:\n  interval: 45s\n  min_delta: 2s\nplayback:\n  start_delay: 500ms\n"
		require.NoError(t, os.WriteFile(tmpConfigPath, []byte(content), 0600))

		config := loadConfig(t)
		assert.Equal(t, 45*time.Second, config.Progress.Interval)
		assert.Equal(t, 2*time.Second, config.Progress.MinDelta)
		assert.Equal(t, 500*time.Millisecond, config.Playback.StartDelay)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		tmpConfigPath := setupTestConfig(t)
		require.NoError(t, os.WriteFile(tmpConfigPath, []byte("invalid: yaml: ["), 0600))

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("EnvironmentVariableOverrides", func(t *testing.T) {
		setupTestConfig(t)

		setEnv(t, "MARQUEE_CONFIG_PLAYER_BACKEND", "web")
		setEnv(t, "MARQUEE_CONFIG_PLAYER_MPV_PATH", "/opt/mpv")
		setEnv(t, "MARQUEE_CONFIG_PLAYER_NATIVE_SOCKET", "/run/native.sock")
		setEnv(t, "MARQUEE_CONFIG_PROGRESS_BASE_URL", "https://api.example.test")
		setEnv(t, "MARQUEE_CONFIG_PROGRESS_INTERVAL", "1m")
		setEnv(t, "MARQUEE_CONFIG_PRESENCE_ENABLED", "false")
		setEnv(t, "MARQUEE_CONFIG_LOGGING_LEVEL", "warn")
		setEnv(t, "MARQUEE_CONFIG_LOGGING_FILE_PATH", "/marquee.log")

		config := loadConfig(t)

		assert.Equal(t, "web", config.Player.Backend)
		assert.Equal(t, "/opt/mpv", config.Player.MPV.Path)
		assert.Equal(t, "/run/native.sock", config.Player.Native.Socket)
		assert.Equal(t, "https://api.example.test", config.Progress.BaseURL)
		assert.Equal(t, time.Minute, config.Progress.Interval)
		assert.False(t, config.Presence.PresenceEnabled())
		assert.Equal(t, "warn", config.Logging.Level)
		assert.Equal(t, "/marquee.log", config.Logging.FilePath)

		// Env overrides must not be persisted to disk
		unsetEnv(t, "MARQUEE_CONFIG_LOGGING_LEVEL")
		config = loadConfig(t)
		assert.Equal(t, "info", config.Logging.Level)
	})

	t.Run("InvalidEnvironmentDuration", func(t *testing.T) {
		setupTestConfig(t)
		setEnv(t, "MARQUEE_CONFIG_PROGRESS_INTERVAL", "soon")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MARQUEE_CONFIG_PROGRESS_INTERVAL")
	})

	t.Run("ModifyConfig", func(t *testing.T) {
		setupTestConfig(t)
		config := loadConfig(t)
		assert.Equal(t, "", config.Player.Backend)

		err := UpdateConfig(func(config *Config) {
			config.Player.Backend = "embedded-desktop"
		})
		require.NoError(t, err)

		config = loadConfig(t)
		assert.Equal(t, "embedded-desktop", config.Player.Backend)
	})
}

func TestEnvHelpListsEverySupportedVariable(t *testing.T) {
	help := EnvHelp()
	require.Len(t, help, len(supportedEnvVars))
	for _, entry := range help {
		assert.True(t, strings.HasPrefix(entry[0], "MARQUEE_CONFIG_"), entry[0])
		assert.NotEmpty(t, entry[1])
	}
}

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, os.Setenv(key, value))
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.Unsetenv(key))
}

func saveConfig(t *testing.T, config *Config, configPath string) {
	t.Helper()
	require.NoError(t, save(config, configPath))
}

func loadConfig(t *testing.T) *Config {
	t.Helper()
	config, err := Load()
	require.NoError(t, err)
	return config
}

// Removes any env vars with the MARQUEE_CONFIG prefix to ensure test isolation
func cleanupEnvVars(t *testing.T) {
	t.Helper()

	for _, envVar := range os.Environ() {
		if key := strings.Split(envVar, "=")[0]; strings.HasPrefix(key, "MARQUEE_CONFIG") {
			unsetEnv(t, key)
		}
	}
}
