package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// -----------------------------------------------------------------------------

func main() {
	rootCmd := &cobra.Command{
		Use:   "lod-engine",
		Short: "Level-of-detail render engine for large time series",
		Long: `lod-engine keeps chart series in memory, decimates them to the pixel
budget of each pane and streams the result over HTTP, WebSocket and gRPC.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/default.yaml", "path to config file")

	rootCmd.AddCommand(newServeCmd(), newSeedCmd(), newExportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
