package main

import (
	"github.com/spf13/cobra"

	"github.com/PizzaHomicide/marquee/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("%s %s\n", version.GetVersionInfo(), version.Platform())
	},
}
