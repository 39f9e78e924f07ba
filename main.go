package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "roombooking",
	Short: "Room booking and client credit backend",
	Long: `Room booking API with a per-client credit ledger.
Credit is bought in hours, spent by bookings and refunded on cancellation.
Unused credit expires at the end of the month it was added.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional TOML config file; environment variables override it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
