package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type envVar struct {
	name  string
	desc  string
	apply func(*Config, string) error
}

var supportedEnvVars = []envVar{
	{
		// Only here for documentation purposes.  Does not override any values in the config as this environment variable
		// points to where the config should be loaded.  It is handled prior to loading the config.
		name:  "MARQUEE_CONFIG_PATH",
		desc:  "Sets the path to the config file.  Default: OS-specific config directory",
		apply: func(c *Config, s string) error { return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PLAYER_BACKEND",
		desc:  "Forces a playback backend.  One of `web`, `embedded-desktop`, `mobile-native`, `tv-native`.  Default: detected",
		apply: func(c *Config, s string) error { c.Player.Backend = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PLAYER_MPV_PATH",
		desc:  "Sets the path to the mpv binary used by the embedded-desktop backend.  Default: mpv",
		apply: func(c *Config, s string) error { c.Player.MPV.Path = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PLAYER_MPV_ARGS",
		desc:  "Extra arguments passed to mpv.  Default: None",
		apply: func(c *Config, s string) error { c.Player.MPV.Args = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PLAYER_NATIVE_SOCKET",
		desc:  "Sets the native container bridge socket.  Default: None",
		apply: func(c *Config, s string) error { c.Player.Native.Socket = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PLAYER_WEB_URL",
		desc:  "Sets the websocket URL of the page hosting the web media element.  Default: ws://127.0.0.1:19332/media",
		apply: func(c *Config, s string) error { c.Player.Web.URL = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PROGRESS_STORE",
		desc:  "Sets the remote progress store kind.  One of `rest` or `graphql`.  Default: rest",
		apply: func(c *Config, s string) error { c.Progress.Store = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PROGRESS_BASE_URL",
		desc:  "Sets the base URL of the remote progress store.  Default: None (progress sync disabled)",
		apply: func(c *Config, s string) error { c.Progress.BaseURL = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PROGRESS_TOKEN",
		desc:  "Sets the bearer token sent to the progress store.  Default: None",
		apply: func(c *Config, s string) error { c.Progress.Token = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_PROGRESS_INTERVAL",
		desc:  "Sets the periodic progress write interval, e.g. `20s`.  Default: 20s",
		apply: durationSetter(func(c *Config) *time.Duration { return &c.Progress.Interval }),
	},
	{
		name:  "MARQUEE_CONFIG_PROGRESS_MIN_DELTA",
		desc:  "Sets the minimum position change for a periodic write.  Default: 5s",
		apply: durationSetter(func(c *Config) *time.Duration { return &c.Progress.MinDelta }),
	},
	{
		name:  "MARQUEE_CONFIG_PRESENCE_ENABLED",
		desc:  "Enables the OS media session.  Default: true",
		apply: boolSetter(func(c *Config) **bool { return &c.Presence.Enabled }),
	},
	{
		name:  "MARQUEE_CONFIG_LOGGING_LEVEL",
		desc:  "Sets the logging level.  One of: trace, debug, info, warn, error.  Default: info",
		apply: func(c *Config, s string) error { c.Logging.Level = s; return nil },
	},
	{
		name:  "MARQUEE_CONFIG_LOGGING_FILE_PATH",
		desc:  "Sets the logging file path.  Default: OS-specific",
		apply: func(c *Config, s string) error { c.Logging.FilePath = s; return nil },
	},
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolSetter(field func(*Config) **bool) func(*Config, string) error {
	return func(c *Config, s string) error {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*field(c) = &b
		return nil
	}
}

func applyEnvVarOverrides(c *Config) error {
	for _, envVar := range supportedEnvVars {
		if value := os.Getenv(envVar.name); value != "" {
			if err := envVar.apply(c, value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar.name, err)
			}
		}
	}
	return nil
}

// EnvHelp returns the supported environment variables and their descriptions, in declaration order
func EnvHelp() [][2]string {
	out := make([][2]string, 0, len(supportedEnvVars))
	for _, envVar := range supportedEnvVars {
		out = append(out, [2]string{envVar.name, envVar.desc})
	}
	return out
}
