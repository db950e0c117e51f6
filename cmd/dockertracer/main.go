package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shaulab/dockertracer/pkg/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dockertracer",
	Short: "Score how closely a Dockerfile matches a built container image",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(matchCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Errorf("dockertracer: %v", err)
		os.Exit(1)
	}
}
