// Package app wires up the reporter command tree.
package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"econharvest/internal/config"
	"econharvest/internal/versions"
)

// The report pipeline is anchored on the CPI dataset ingested by the
// collector.
const (
	cpiProvider = "BLS"
	cpiDataset  = "CPI"
)

var rootCmd = &cobra.Command{
	Use:               "reporter",
	DisableAutoGenTag: true,
	Short:             "Sales report builder",
	Long: `reporter turns collected CPI observations into report artifacts: it
generates the synthetic sales dataset scaled by real CPI and builds the
merged CSV plus analysis JSON from it.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			fmt.Fprintln(os.Stderr, "error displaying help:", err)
		}
	},
}

// NewRootCmd creates the root command for the reporter.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		fmt.Fprintln(os.Stderr, "error binding debug flag:", err)
	}

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
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
		fmt.Printf("reporter %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
