package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/PizzaHomicide/marquee/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List the supported environment variables and their current values",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
		set := lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
		unset := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

		for _, env := range config.EnvHelp() {
			value, ok := os.LookupEnv(env[0])
			if ok {
				cmd.Printf("%s=%s\n", name.Render(env[0]), set.Render(value))
			} else {
				cmd.Printf("%s=%s\n", name.Render(env[0]), unset.Render("unset"))
			}
			cmd.Printf("    %s\n", env[1])
		}
	},
}
