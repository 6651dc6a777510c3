package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rickgao/camwatch/internal/alertfeed"
	"github.com/rickgao/camwatch/internal/binder"
	"github.com/rickgao/camwatch/internal/config"
	"github.com/rickgao/camwatch/internal/connection"
	"github.com/rickgao/camwatch/internal/dedup"
	"github.com/rickgao/camwatch/internal/journal"
	"github.com/rickgao/camwatch/internal/metrics"
	"github.com/rickgao/camwatch/internal/router"
)

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func managerConfig(rt config.RealtimeConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		MaxReconnectAttempts: rt.MaxReconnectAttempts,
		ReconnectDelay:       rt.ReconnectDelay,
		ReconnectSettle:      rt.ReconnectSettle,
		Port:                 rt.Port,
		Client: connection.ClientConfig{
			HandshakeTimeout: rt.HandshakeTimeout,
			WriteTimeout:     rt.WriteTimeout,
			PingInterval:     rt.PingInterval,
			PingTimeout:      rt.PingTimeout,
			ReadBufferSize:   rt.ReadBuffer,
			SendBufferSize:   rt.SendBuffer,
			MaxMessageSize:   connection.DefaultClientConfig().MaxMessageSize,
		},
	}
}

// newManager builds the Manager for the configured channel.
func newManager(rt config.RealtimeConfig, m *metrics.Metrics, logger *slog.Logger) (*connection.Manager, error) {
	mc := managerConfig(rt)
	opt := connection.WithMetrics(m)

	var (
		mgr *connection.Manager
		err error
	)
	switch rt.Channel {
	case "alerts":
		mgr, err = connection.NewAlertManager(rt.Origin, mc, logger, opt)
	case "camera":
		mgr, err = connection.NewCameraManager(rt.Origin, rt.CameraID, mc, logger, opt)
	case "dashboard":
		mgr, err = connection.NewDashboardManager(rt.Origin, mc, logger, opt)
	default:
		return nil, fmt.Errorf("unknown channel %q", rt.Channel)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s endpoint: %w", rt.Channel, err)
	}
	return mgr, nil
}

func sessionOptions(b config.BinderConfig, logger *slog.Logger) binder.Options {
	return binder.Options{
		ConnectDebounce: b.ConnectDebounce,
		EventTypes:      b.EventTypes,
		OnConnect: func() {
			logger.Info("realtime connected")
		},
		OnDisconnect: func() {
			logger.Warn("realtime disconnected")
		},
		OnError: func(err error) {
			logger.Error("realtime connect failed", "error", err)
		},
		OnMessage: func(env router.Envelope) {
			logger.Debug("realtime message", "type", env.Type, "bytes", len(env.Raw))
		},
	}
}

func journalConfig(j config.JournalConfig) journal.Config {
	return journal.Config{
		BatchSize:     j.BatchSize,
		FlushInterval: j.FlushInterval,
	}
}

// attachFeed attaches a session with the given id to t and subscribes a new
// alert feed to it before returning. writer may be nil.
func attachFeed(t binder.Transport, cfg *config.Config, id uuid.UUID, writer *journal.Writer, m *metrics.Metrics, logger *slog.Logger) (*binder.Session, *alertfeed.Feed) {
	feed := alertfeed.New(
		alertfeed.Config{MaxAlerts: cfg.Feed.MaxAlerts},
		dedup.New(cfg.Feed.DedupCapacity),
		feedHooks(writer, logger),
		m,
		logger,
	)

	opts := sessionOptions(cfg.Binder, logger)
	opts.ID = id
	session := binder.Attach(t, opts, logger)
	session.Subscribe(router.TypeAlert, feed.Listener())

	return session, feed
}
