// alertwatch keeps a realtime connection to the camera monitoring service,
// maintains the operator alert feed, and optionally journals alert notices.
// Usage: go run ./cmd/alertwatch --config configs/alertwatch.local.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/camwatch/internal/alertfeed"
	"github.com/rickgao/camwatch/internal/binder"
	"github.com/rickgao/camwatch/internal/config"
	"github.com/rickgao/camwatch/internal/connection"
	"github.com/rickgao/camwatch/internal/database"
	"github.com/rickgao/camwatch/internal/journal"
	"github.com/rickgao/camwatch/internal/keepalive"
	"github.com/rickgao/camwatch/internal/metrics"
	"github.com/rickgao/camwatch/internal/model"
	"github.com/rickgao/camwatch/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/alertwatch.local.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting alertwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"channel", cfg.Realtime.Channel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("alertwatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("alertwatch stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mgr, err := newManager(cfg.Realtime, m, logger)
	if err != nil {
		return err
	}
	logger.Info("realtime endpoint resolved", "url", mgr.Target().URL())

	sessionID := uuid.New()

	var writer *journal.Writer
	if cfg.Journal.Enabled {
		pool, err := database.Connect(ctx, cfg.Journal.Database, logger)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, journal.Schema); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}

		writer = journal.New(journalConfig(cfg.Journal), pool, sessionID, logger)
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}

	session, feed := attachFeed(mgr, cfg, sessionID, writer, m, logger)

	pinger := keepalive.New(keepalive.Config{Interval: cfg.Binder.KeepaliveInterval}, mgr, logger)
	if err := pinger.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopRealtime(stopCtx, session, nil, mgr, writer, logger)
		return fmt.Errorf("start keepalive: %w", err)
	}

	server := metrics.NewServer(
		fmt.Sprintf(":%d", cfg.Metrics.Port),
		cfg.Metrics.Path,
		reg,
		mgr.IsConnected,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})

	logger.Info("alertwatch running",
		"metrics", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	<-gctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopRealtime(shutdownCtx, session, pinger, mgr, writer, logger)

	st := mgr.Stats()
	logger.Info("connection totals",
		"dials", st.Dials,
		"frames", st.FramesReceived,
		"dropped", st.FramesDropped,
		"alerts", len(feed.Alerts()),
	)

	return g.Wait()
}

// stopRealtime tears down in reverse start order. pinger and writer may be nil.
func stopRealtime(ctx context.Context, session *binder.Session, pinger *keepalive.Pinger, mgr *connection.Manager, writer *journal.Writer, logger *slog.Logger) {
	session.Detach()
	if pinger != nil {
		if err := pinger.Stop(ctx); err != nil {
			logger.Warn("keepalive stop", "error", err)
		}
	}
	mgr.Disconnect()
	if writer != nil {
		if err := writer.Stop(ctx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
		st := writer.Stats()
		logger.Info("journal totals", "inserts", st.Inserts, "conflicts", st.Conflicts, "errors", st.Errors, "dropped", st.Dropped)
	}
}

func feedHooks(writer *journal.Writer, logger *slog.Logger) alertfeed.Hooks {
	hooks := alertfeed.Hooks{
		OnUrgent: func(a model.Alert) {
			logger.Warn("urgent alert",
				"alert_id", a.ID,
				"title", a.Title,
				"severity", a.Severity(),
			)
		},
		OnUrgentClosed: func(id int64) {
			logger.Info("urgent alert resolved", "alert_id", id)
		},
	}
	if writer != nil {
		hooks.OnAccepted = writer.Record
	}
	return hooks
}
