package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tkoskela/scenefuse/cmd/dismiss"
	"github.com/tkoskela/scenefuse/cmd/ingest"
	"github.com/tkoskela/scenefuse/cmd/match"
	"github.com/tkoskela/scenefuse/cmd/refresh"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scenefuse",
		Short: "SceneFuse entity convergence CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if settings.Debug {
				logging.SetLevel(slog.LevelDebug)
			}
		},
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		ingest.Command(settings),
		match.Command(settings),
		refresh.Command(settings),
		dismiss.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
}
