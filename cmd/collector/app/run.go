package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"econharvest/internal/config"
	"econharvest/internal/engine"
	"econharvest/internal/export"
	"econharvest/internal/logging"
	"econharvest/internal/registry"
	"econharvest/internal/store"
	"econharvest/internal/store/sqlite"
	"econharvest/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch every registry dataset and store the results",
	Long: `run loads the dataset registry, fetches each dataset from its provider with
retries and rate limits, validates and normalizes the responses, upserts the
canonical observations into SQLite, and writes the raw rows to per-dataset
CSV files. A dataset that keeps failing does not stop the others; the exit
code is non-zero only when every dataset failed.`,
	RunE: runIngestion,
}

func init() {
	runCmd.Flags().String("registry", "configs/registry.json", "Path to the dataset registry")
	runCmd.Flags().String("config", "", "Path to the settings file (built-in defaults when empty)")
	runCmd.Flags().String("db", "", "SQLite database path (overrides settings; empty disables persistence)")
	runCmd.Flags().String("csv-dir", "", "Raw CSV output directory (overrides settings; empty disables export)")
	runCmd.Flags().Int("concurrency", 0, "Maximum concurrent dataset fetches (overrides settings)")
	runCmd.Flags().Duration("timeout", 0, "Per-request HTTP timeout (overrides settings)")
}

func runIngestion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if flags.Changed("db") {
		settings.Sinks.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("csv-dir") {
		settings.Sinks.CSVDir, _ = flags.GetString("csv-dir")
	}
	if concurrency, _ := flags.GetInt("concurrency"); concurrency > 0 {
		settings.Ingest.Concurrency = concurrency
	}
	if timeout, _ := flags.GetDuration("timeout"); timeout > 0 {
		settings.HTTP.Timeout = timeout.String()
	}

	logger, err := logging.New(viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registryPath, _ := flags.GetString("registry")
	reg, err := registry.Load(registryPath)
	if err != nil {
		return err
	}

	st, err := openStore(settings.Sinks.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	client := transport.New(transport.Config{
		Timeout:   settings.HTTPTimeout(),
		UserAgent: settings.HTTP.UserAgent,
	})
	eng := engine.New(engineConfig(settings), client, registry.NewKeyResolver(), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := eng.Run(ctx, reg)
	if err != nil {
		return err
	}

	// Persist whatever succeeded even when the run was interrupted.
	if err := st.UpsertObservations(context.Background(), summary.RunID, summary.AllObservations()); err != nil {
		return fmt.Errorf("store observations: %w", err)
	}

	if settings.Sinks.CSVDir != "" {
		if err := exportRaw(settings.Sinks.CSVDir, reg, summary); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), summary)

	if len(summary.Results) > 0 && summary.Succeeded() == 0 {
		return fmt.Errorf("all %d dataset jobs failed", len(summary.Results))
	}
	return nil
}

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func engineConfig(settings config.Settings) engine.Config {
	limits := make(map[string]engine.RateLimit, len(settings.Ingest.RateLimits))
	for provider, limit := range settings.Ingest.RateLimits {
		limits[provider] = engine.RateLimit{PerSec: limit.PerSec, Burst: limit.Burst}
	}
	return engine.Config{
		MaxAttempts:    settings.Retry.MaxAttempts,
		InitialBackoff: settings.InitialBackoff(),
		MaxBackoff:     settings.MaxBackoff(),
		Concurrency:    settings.Ingest.Concurrency,
		RateLimits:     limits,
	}
}

func exportRaw(dir string, reg *registry.Registry, summary *engine.RunSummary) error {
	for _, result := range summary.Results {
		if result.Status != engine.StatusSucceeded {
			continue
		}
		provider, ok := reg.Provider(result.Provider)
		if !ok {
			continue
		}
		dataset, ok := provider.Datasets[result.Dataset]
		if !ok {
			continue
		}
		if _, err := export.WriteDataset(dir, result.Dataset, dataset.RequiredFields, result.Raw); err != nil {
			return fmt.Errorf("export %s/%s: %w", result.Provider, result.Dataset, err)
		}
	}
	return nil
}

func printSummary(w io.Writer, summary *engine.RunSummary) {
	fmt.Fprintf(w, "run %s: %d succeeded, %d failed, %d observations, %d dropped (%.1fs)\n",
		summary.RunID, summary.Succeeded(), summary.Failed(),
		summary.ObservationCount(), summary.DroppedCount(),
		summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	for _, result := range summary.Results {
		if result.Status == engine.StatusSucceeded {
			fmt.Fprintf(w, "  %-4s %-24s ok: %d observations, %d dropped, %d attempt(s)\n",
				result.Provider, result.Dataset, len(result.Observations), result.Dropped, result.Attempts)
			continue
		}
		fmt.Fprintf(w, "  %-4s %-24s failed after %d attempt(s): %v\n",
			result.Provider, result.Dataset, result.Attempts, result.Err)
	}
}
