package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Player   PlayerConfig   `yaml:"player,omitempty"`
	Playback PlaybackConfig `yaml:"playback,omitempty"`
	Progress ProgressConfig `yaml:"progress,omitempty"`
	Presence PresenceConfig `yaml:"presence,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// PlayerConfig contains the backend adapter settings
type PlayerConfig struct {
	// Backend forces a backend instead of detecting one.  One of "", "web", "embedded-desktop", "mobile-native", "tv-native"
	Backend string       `yaml:"backend,omitempty"`
	MPV     MPVConfig    `yaml:"mpv,omitempty"`
	Native  NativeConfig `yaml:"native,omitempty"`
	Web     WebConfig    `yaml:"web,omitempty"`
}

// MPVConfig configures the embedded-desktop backend, which drives mpv over its IPC socket
type MPVConfig struct {
	Path   string `yaml:"path,omitempty"`
	Args   string `yaml:"args,omitempty"`
	Socket string `yaml:"socket,omitempty"`
}

// NativeConfig configures the bridge into a mobile or TV native container
type NativeConfig struct {
	Socket     string `yaml:"socket,omitempty"`
	FormFactor string `yaml:"form_factor,omitempty"` // "mobile", "tv"
}

// WebConfig configures the websocket bridge into the page that owns the media element
type WebConfig struct {
	URL string `yaml:"url,omitempty"`
}

// PlaybackConfig holds the controller timings
type PlaybackConfig struct {
	StartDelay    time.Duration `yaml:"start_delay,omitempty"`
	TeardownGrace time.Duration `yaml:"teardown_grace,omitempty"`
	UnmuteDelay   time.Duration `yaml:"unmute_delay,omitempty"`
	SeekOffset    time.Duration `yaml:"seek_offset,omitempty"`
}

// ProgressConfig holds the remote progress store settings and the synchronizer policy values
type ProgressConfig struct {
	Store         string        `yaml:"store,omitempty"` // "rest", "graphql"
	BaseURL       string        `yaml:"base_url,omitempty"`
	Token         string        `yaml:"token,omitempty"`
	Interval      time.Duration `yaml:"interval,omitempty"`
	MinDelta      time.Duration `yaml:"min_delta,omitempty"`
	SeekThreshold time.Duration `yaml:"seek_threshold,omitempty"`
	WriteTimeout  time.Duration `yaml:"write_timeout,omitempty"`
}

// PresenceConfig contains the OS media session settings
type PresenceConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`
	AppName    string `yaml:"app_name,omitempty"`
	ArtworkURL string `yaml:"artwork_url,omitempty"`
	WakeLock   *bool  `yaml:"wake_lock,omitempty"`
}

// LoggingConfig contains log related settings
type LoggingConfig struct {
	Level    string `yaml:"level,omitempty"`
	FilePath string `yaml:"file_path,omitempty"`
}

// PresenceEnabled reports whether the OS media session should be registered.  Unset means enabled.
func (c PresenceConfig) PresenceEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// WakeLockEnabled reports whether a display wake lock is held while playing.  Unset means enabled.
func (c PresenceConfig) WakeLockEnabled() bool {
	return c.WakeLock == nil || *c.WakeLock
}

// Load builds a configuration struct from multiple sources using these steps:
// 1. Create a base config with default values
// 2. If no config file exists on disk, save the default config to that location
// 3. Apply 'dynamic' properties.  Dynamic properties are those that are determined at runtime, for example log file location which is different per OS.
// 4. Load & merge the config file, overwriting any defaults with user-specified values
// 5. Apply environment variable overrides
func Load() (*Config, error) {
	// 1. Start with base defaults
	cfg := createBaseDefaultConfig()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to determine config file path: %w", err)
	}

	// 2. If no config file exists on disk, then write a default one
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		// If there is an error saving the default config, then still let the application startup using the defaults.
		_ = save(cfg, configPath)
	}

	// 3. Apply dynamic defaults if necessary
	applyDynamicDefaults(cfg)

	// 4. Load the config from disk and merge it into the base defaults
	fileConfig, err := loadFromDisk(configPath)
	if err != nil {
		return nil, err
	}
	if err = mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("error merging config loaded from disk: %w", err)
	}

	// 5. Apply the environment variable overrides which take precedence
	if err := applyEnvVarOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDynamicDefaults sets runtime-determined default values for any properties that haven't been explicitly configured.
// Unlike static defaults, these values might change between runs based on the environment or system configuration.
func applyDynamicDefaults(cfg *Config) {
	cfg.Logging.FilePath = defaultLogFilePath()
	cfg.Player.MPV.Socket = defaultMPVSocketPath()
}

// loadFromDisk loads the YAML config from disk and returns the unmarshalled Config
func loadFromDisk(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return cfg, nil
}

func save(cfg *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// UpdateConfig reads the existing config, applies the update function, and saves it back to disk
func UpdateConfig(updateFn func(*Config)) error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("unable to determine config file path: %w", err)
	}

	cfg, err := loadFromDisk(configPath)
	if err != nil {
		return fmt.Errorf("error loading config file from disk: %w", err)
	}

	updateFn(cfg)

	return save(cfg, configPath)
}

// getConfigPath returns the path to the config file.  Uses the environment variable override if present, else tries
// to use OS config location defaults.
func getConfigPath() (string, error) {
	configPath := os.Getenv("MARQUEE_CONFIG_PATH")
	if configPath != "" {
		return configPath, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "marquee", "config.yaml"), nil
}

// createBaseDefaultConfig creates a config with all default values
func createBaseDefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			MPV: MPVConfig{
				Path: "mpv",
			},
			Native: NativeConfig{
				FormFactor: "mobile",
			},
			Web: WebConfig{
				URL: "ws://127.0.0.1:19332/media",
			},
		},
		Playback: PlaybackConfig{
			StartDelay:    300 * time.Millisecond,
			TeardownGrace: 150 * time.Millisecond,
			UnmuteDelay:   1500 * time.Millisecond,
			SeekOffset:    10 * time.Second,
		},
		Progress: ProgressConfig{
			Store:         "rest",
			Interval:      20 * time.Second,
			MinDelta:      5 * time.Second,
			SeekThreshold: 10 * time.Second,
			WriteTimeout:  10 * time.Second,
		},
		Presence: PresenceConfig{
			AppName: "marquee",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultMPVSocketPath returns the IPC endpoint handed to mpv via --input-ipc-server
func defaultMPVSocketPath() string {
	switch runtime.GOOS {
	case "windows":
		return `\\.\pipe\marquee-mpv`
	default:
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			return filepath.Join(runtimeDir, "marquee-mpv.sock")
		}
		return filepath.Join(os.TempDir(), "marquee-mpv.sock")
	}
}

// defaultLogFilePath returns the path to the log file.  Tries to use expected OS location defaults.
func defaultLogFilePath() string {
	var basePath string
	homedir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "marquee.log")
	}

	switch runtime.GOOS {
	case "windows":
		// Windows:  %LOCALAPPDATA%\marquee\logs
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			basePath = filepath.Join(appData, "marquee", "logs")
		} else {
			basePath = filepath.Join(homedir, "AppData", "local", "marquee", "logs")
		}
	case "darwin":
		// macOS:  ~/Library/Logs/marquee
		basePath = filepath.Join(homedir, "Library", "Logs", "marquee")
	default:
		// Linux/BSD:  XDG_STATE_HOME
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			basePath = filepath.Join(xdgState, "marquee", "logs")
		} else {
			basePath = filepath.Join(homedir, ".local", "state", "marquee", "logs")
		}
	}

	if err := os.MkdirAll(basePath, 0700); err != nil {
		return filepath.Join(".", "marquee.log")
	}
	return filepath.Join(basePath, "marquee.log")
}
