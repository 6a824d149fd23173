package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/channel-scout/internal/agent/scanner"
	"github.com/channel-scout/internal/api"
	"github.com/channel-scout/internal/config"
	"github.com/channel-scout/internal/metrics"
	"github.com/channel-scout/internal/platform/gateway"
	"github.com/channel-scout/internal/storage/sqlite"
	"github.com/channel-scout/pkg/logger"
	"github.com/channel-scout/pkg/ratelimit"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "scout-scheduler",
		Short: "Background scanner and HTTP API for channel scout",
		Long: `Serves the operator HTTP API and runs scan passes in the background,
on demand through POST /api/scan/start and optionally on a cron schedule.`,
		RunE:         runScheduler,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting channel scout scheduler")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewStoreCollector(repo, log),
	)
	scanMetrics := metrics.New(registry)

	// Rate limits for the platform and for manual triggers, config overrides defaults
	limiter := ratelimit.NewDefaultLimiter()
	limiter.AddLimiter(ratelimit.LimiterPlatform, cfg.Platform.RequestsPerSecond, cfg.Platform.Burst)
	if cfg.Server.ScanTriggersPerMinute > 0 {
		limiter.AddLimiter(ratelimit.LimiterScanTrigger, cfg.Server.ScanTriggersPerMinute/60, 2)
	} else {
		limiter.RemoveLimiter(ratelimit.LimiterScanTrigger)
	}

	// Scanner
	connector := gateway.NewConnector(cfg.Platform, limiter, log)
	agent := scanner.NewAgent(connector, repo, scanner.Options{
		SearchLimit:  cfg.Scanner.SearchLimit,
		MessageLimit: cfg.Scanner.MessageLimit,
	}, log)
	agent.SetMetrics(scanMetrics)
	runner := scanner.NewRunner(repo, agent, log)
	runner.SetMetrics(scanMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trigger := scanner.NewTrigger(runner, log)
	trigger.Start(ctx)

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}))
	if cfg.Scheduler.ScanCron != "" {
		_, err = c.AddFunc(cfg.Scheduler.ScanCron, func() {
			log.Info().Msg("Running scheduled scan pass")
			trigger.Request()
		})
		if err != nil {
			return fmt.Errorf("failed to schedule scan job: %w", err)
		}
		log.Info().Str("cron", cfg.Scheduler.ScanCron).Msg("Scan job scheduled")
	} else {
		log.Info().Msg("No scan cron configured, passes run on demand only")
	}
	c.Start()

	if cfg.Scheduler.RunOnStart {
		trigger.Request()
	}

	// HTTP API
	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.New(repo, trigger, log,
			api.WithLimiter(limiter),
			api.WithMetrics(registry),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
		stop()
	}

	log.Info().Msg("Shutting down scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server shutdown incomplete")
	}

	<-c.Stop().Done()
	trigger.Wait()

	log.Info().Msg("Scheduler stopped")
	return err
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
