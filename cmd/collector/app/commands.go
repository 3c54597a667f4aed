// Package app wires up the collector command tree.
package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"econharvest/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "collector",
	DisableAutoGenTag: true,
	Short:             "Economic time-series collector",
	Long: `collector ingests economic time series from the BLS and FRED public APIs
as described by a dataset registry, storing canonical observations in SQLite
and exporting the raw rows as per-dataset CSV files.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			fmt.Fprintln(os.Stderr, "error displaying help:", err)
		}
	},
}

// NewRootCmd creates the root command for the collector.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		fmt.Fprintln(os.Stderr, "error binding debug flag:", err)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error retrieving format flag:", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintln(os.Stderr, "error formatting version info as JSON:", err)
				return
			}
			fmt.Println(string(output))
			return
		}
		fmt.Printf("collector %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
