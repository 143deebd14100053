package main

import (
	"github.com/spf13/cobra"

	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Print the playback backend that would be used on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup("platform", true)
		if err != nil {
			return err
		}
		defer closeLog()

		var forced platform.Kind
		if cfg.Player.Backend != "" {
			if forced, err = platform.ParseKind(cfg.Player.Backend); err != nil {
				return err
			}
		}
		kind := platform.NewResolver(platform.OSEnvironment(), forced).Resolve()
		cmd.Println(kind)

		save, err := cmd.Flags().GetBool("save")
		if err != nil || !save {
			return err
		}
		if err := config.UpdateConfig(func(c *config.Config) { c.Player.Backend = string(kind) }); err != nil {
			return err
		}
		log.Info("Pinned playback backend in config", "backend", kind)
		return nil
	},
}

func init() {
	platformCmd.Flags().Bool("save", false, "Pin the resolved backend in the config file")
}
