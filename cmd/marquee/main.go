package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "marquee",
	Short:         "Play streamed titles through the native playback backend of this machine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(watchCmd, platformCmd, versionCmd, envCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "marquee: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger, tagged with the running command.  The returned func
// closes the log file.
func setup(command string, stderr bool) (*config.Config, func(), error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// It is unrecoverable if we cannot produce an application config
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialise logger
	logger, err := log.New(log.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.FilePath,
		Stderr:   stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise logger: %w", err)
	}

	// Set the default global logger
	log.SetDefaultLogger(logger.With("command", command))

	log.Info("Starting up marquee", "version", version.GetVersion(), "build_time", version.GetBuildTime(), "platform", version.Platform())
	return cfg, logger.Close, nil
}
