package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "etl",
	Short:        "Pull MGNREGA district data from the open-data API",
	Long:         "etl fetches the region's MGNREGA records, archives the raw response and upserts monthly metrics into the primary store.",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
