package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dispatchd",
	Short:         "Driver dispatch engine for a grid city",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "config.yaml", "path to the config yaml file")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), configCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
