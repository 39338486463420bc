package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	serve := func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configFile)
	}

	rootCmd := &cobra.Command{
		Use:          "upwatch",
		Short:        "HTTP uptime monitor",
		Long:         `upwatch probes HTTP endpoints on independent schedules, records their history and alerts on up/down changes.`,
		SilenceUsage: true,
		RunE:         serve,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (default ./config/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the monitor and its HTTP API",
		RunE:  serve,
	})
	rootCmd.AddCommand(newCheckCmd())
	return rootCmd
}

func newCheckCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Probe a URL once and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(LogLevelWarn, true, EnvDev)
			target, err := validateAndNormalizeURL(args[0])
			if err != nil {
				return err
			}

			prober := NewProber(logger)
			outcome := prober.Probe(cmd.Context(), ProbeTarget{
				ID:         "cli",
				URL:        target,
				IntervalMs: clampInterval(interval.Milliseconds()),
			}, true)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]interface{}{
				"url":   target,
				"point": outcome.Point,
			}); err != nil {
				return err
			}
			if !outcome.Point.Up {
				return fmt.Errorf("%s is down", target)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "check interval used to derive the attempt timeout")
	return cmd
}

// openStore builds the configured store. SQLite is backed by the JSON file
// so a broken database never loses a save.
func openStore(cfg *Config, log zerolog.Logger) (Store, func(), error) {
	file := NewFileStore(cfg.Store.FallbackPath)
	if cfg.Store.Driver == StoreDriverFile {
		return file, func() {}, nil
	}

	db, err := OpenSQLiteStore(cfg.Store.Path, log)
	if err != nil {
		log.Error().Err(err).Str("fallback", cfg.Store.FallbackPath).Msg("[Store] SQLite unavailable, using JSON file")
		return file, func() {}, nil
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("[Store] Failed to close database")
		}
	}
	return NewFallbackStore(db, file, log), closeDB, nil
}

func runServe(parent context.Context, configFile string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Server.Environment)
	cfg.Summary(logger)

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	persister := NewPersister(store, logger)
	registry := NewRegistry(logger, persister)
	registry.SetDefaultInterval(cfg.DefaultIntervalMs())
	persister.Attach(registry)

	records, err := store.Load(parent)
	if err != nil {
		logger.Error().Err(err).Msg("[Store] Failed to load monitors, starting empty")
	}
	registry.Restore(records)

	broadcaster := NewBroadcaster(logger)
	broadcaster.SetStatsSource(func() StatsResponse { return computeStats(registry) })

	dispatcher := NewDispatcher(logger, NewLogSink(logger), NewBroadcastSink(broadcaster))
	if len(cfg.Alerts.Webhooks) > 0 {
		dispatcher.Register(NewWebhookSink(cfg.Alerts.Webhooks))
	}
	if cfg.Alerts.Email.Enabled() {
		dispatcher.Register(NewEmailSink(cfg.Alerts.Email))
	}
	logger.Info().Strs("sinks", dispatcher.Sinks()).Msg("[Alerts] Sinks registered")

	checker := NewChecker(registry, NewProber(logger), dispatcher, persister, broadcaster, logger)
	scheduler, err := NewScheduler(registry, checker, logger)
	if err != nil {
		return err
	}
	sweeper := NewSweeper(registry, checker, cfg.SweepInterval(), logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	persistCtx, cancelPersist := context.WithCancel(context.Background())
	go persister.Run(persistCtx)

	scheduler.ReconcileAll()
	if _, err := applySeed(registry, cfg.Seed.Path, logger); err != nil {
		logger.Warn().Err(err).Str("seed_path", cfg.Seed.Path).Msg("[Config] Failed to apply seed file")
	}
	if err := sweeper.Start(scheduler); err != nil {
		return err
	}
	if err := startMaintenance(scheduler, store, logger); err != nil {
		return err
	}
	scheduler.Start()

	api := NewAPI(ctx, registry, checker, sweeper, persister, broadcaster, logger)
	server, err := NewServer(cfg.Server.Address, NewRouter(api, logger))
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	logger.Info().Str("address", cfg.Server.Address).Int("monitors", registry.Len()).Msg("🚀 Server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("Server failed")
		}
	}

	sweeper.Stop(scheduler)
	scheduler.CancelAll()
	broadcaster.Close()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("[Scheduler] Shutdown incomplete")
	}
	sweeper.Wait()

	cancelPersist()
	persister.Wait()
	if err := persister.Flush(context.Background()); err != nil {
		logger.Error().Err(err).Msg("[Store] Final save failed")
		return err
	}
	logger.Info().Int("monitors", registry.Len()).Msg("[Store] Final save completed")
	return nil
}
