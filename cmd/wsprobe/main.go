// wsprobe connects to one realtime channel and prints every decoded message.
// Usage: go run ./cmd/wsprobe --origin http://localhost:5173 --channel camera --camera 3
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/camwatch/internal/connection"
	"github.com/rickgao/camwatch/internal/endpoint"
	"github.com/rickgao/camwatch/internal/router"
)

func main() {
	origin := flag.String("origin", "http://localhost:5173", "page origin the realtime host is derived from")
	channel := flag.String("channel", "alerts", "alerts, camera or dashboard")
	cameraID := flag.String("camera", "", "camera id for the camera channel")
	port := flag.Int("port", endpoint.DefaultPort, "realtime service port")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	target, err := endpoint.Resolve(*origin, endpoint.Channel(*channel), *cameraID, endpoint.Options{Port: *port})
	if err != nil {
		logger.Error("invalid target", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultManagerConfig()
	cfg.Port = *port
	mgr := connection.NewManager(target, cfg, logger)

	cancelObserve := mgr.Observe(func(s connection.State) {
		logger.Info("state", "state", s.String())
	})
	defer cancelObserve()

	printer := router.NewListener(func(env router.Envelope) {
		printEnvelope(os.Stdout, env, *verbose)
	})
	for _, t := range []string{
		router.TypeAlert,
		router.TypeFrame,
		router.TypeDetection,
		router.TypeDashboardUpdate,
		router.TypePong,
	} {
		mgr.On(t, printer)
	}

	logger.Info("connecting", "url", target.URL())
	if err := mgr.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := mgr.Stats()
				logger.Info("stats",
					"state", st.State.String(),
					"dials", st.Dials,
					"frames", st.FramesReceived,
					"dropped", st.FramesDropped,
					"reconnect_attempts", st.ReconnectAttempts,
				)
				if err := mgr.Send(map[string]string{"type": router.TypePing}); err != nil {
					logger.Debug("ping skipped", "error", err)
				}
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Disconnect()
	logger.Info("shutdown complete")
}

func printEnvelope(w io.Writer, env router.Envelope, verbose bool) {
	if verbose {
		var pretty any
		if err := json.Unmarshal(env.Raw, &pretty); err == nil {
			data, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Fprintf(w, "[%s] %s\n", env.Type, data)
			return
		}
	}

	switch ev := env.Event.(type) {
	case router.AlertEvent:
		id, _ := ev.Notice.AlertID()
		fmt.Fprintf(w, "[ALERT] action=%s id=%d title=%q severity=%d\n",
			ev.Notice.Action, id, ev.Notice.Alert.Title, ev.Notice.Alert.Severity())
	case router.FrameEvent:
		fmt.Fprintf(w, "[FRAME] camera=%s bytes=%d\n", ev.Frame.CameraID, len(ev.Frame.Data))
	case router.DetectionEvent:
		fmt.Fprintf(w, "[DETECTION] camera=%s bytes=%d\n", ev.Detection.CameraID, len(ev.Detection.Data))
	case router.DashboardUpdateEvent:
		fmt.Fprintf(w, "[DASHBOARD] fields=%d\n", len(ev.Update.Data))
	case router.PongEvent:
		fmt.Fprintf(w, "[PONG] camera=%s\n", ev.Pong.CameraID)
	case router.UnknownEvent:
		fmt.Fprintf(w, "[%s] undecoded bytes=%d err=%v\n", ev.Type, len(env.Raw), ev.Err)
	default:
		fmt.Fprintf(w, "[%s] bytes=%d\n", env.Type, len(env.Raw))
	}
}
