package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"econharvest/internal/model"
	"econharvest/internal/store"
	"econharvest/internal/store/sqlite"
	"econharvest/internal/synth"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic sales dataset scaled by stored CPI",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().String("config", "", "Path to the settings file (built-in defaults when empty)")
	generateCmd.Flags().String("db", "", "SQLite database path (overrides settings)")
	generateCmd.Flags().String("out", "", "Sales CSV output path (overrides settings)")
	generateCmd.Flags().Int64("seed", 0, "Random seed (overrides settings)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if flags.Changed("db") {
		settings.Sinks.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("out") {
		settings.Report.SalesCSV, _ = flags.GetString("out")
	}
	if flags.Changed("seed") {
		settings.Report.Seed, _ = flags.GetInt64("seed")
	}

	st, err := sqlite.New(settings.Sinks.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cpi, err := loadMonthlyCPI(cmd.Context(), st)
	if err != nil {
		return err
	}

	cfg := synth.DefaultConfig()
	cfg.Seed = settings.Report.Seed
	records := synth.Generate(cfg, cpi)
	if err := synth.WriteCSV(settings.Report.SalesCSV, records); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "generated %d sales rows to %s (seed %d, %d CPI months)\n",
		len(records), settings.Report.SalesCSV, settings.Report.Seed, len(cpi))
	return nil
}

// loadMonthlyCPI keys stored CPI observations by their monthly period.
// Quarterly and annual rows do not apply to monthly sales and are skipped.
func loadMonthlyCPI(ctx context.Context, st store.Store) (map[string]decimal.Decimal, error) {
	observations, err := st.ListObservations(ctx, cpiProvider, cpiDataset)
	if err != nil {
		return nil, err
	}
	cpi := make(map[string]decimal.Decimal, len(observations))
	for _, observation := range observations {
		if _, _, ok := model.PeriodYearMonth(observation.Period); !ok {
			continue
		}
		cpi[observation.Period] = observation.Value
	}
	return cpi, nil
}
