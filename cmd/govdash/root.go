package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL string
	outputFmt string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "govdash",
	Short: "CLI for the governance dashboard server",
	Long: `govdash reads the governance dashboard served by govdash-server.

It lists aggregated model versions with their governance status, shows the
bundles, evidence and policies behind each model, triggers security scans
and refreshes, and offers an interactive browser of the dashboard table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		serverURL = strings.TrimRight(viper.GetString("server"), "/")
		return nil
	},
}

func init() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Dashboard server URL (env GOVDASH_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	viper.SetEnvPrefix("GOVDASH")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(browseCmd)
}
