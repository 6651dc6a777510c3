package keepalive

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/camwatch/internal/router"
)

// Sender is the transport the pinger writes to.
type Sender interface {
	IsConnected() bool
	Send(payload any) error
}

// Ping is the keepalive frame.
type Ping struct {
	Type string `json:"type"`
}

// Config holds pinger configuration.
type Config struct {
	Interval time.Duration // Ping interval (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Pinger periodically sends a ping over a Sender.
type Pinger struct {
	cfg    Config
	sender Sender
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sent    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// New creates a new Pinger.
func New(cfg Config, sender Sender, logger *slog.Logger) *Pinger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Pinger{
		cfg:    cfg,
		sender: sender,
		logger: logger,
	}
}

// Start begins the ping loop.
func (p *Pinger) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("keepalive started", "interval", p.cfg.Interval)
	return nil
}

// Stop ends the ping loop.
func (p *Pinger) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("keepalive stopped", "sent", p.sent.Load(), "skipped", p.skipped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sent returns the number of pings written.
func (p *Pinger) Sent() int64 {
	return p.sent.Load()
}

// Skipped returns the number of ticks skipped while disconnected.
func (p *Pinger) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Pinger) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.ping()
		}
	}
}

// ping sends one keepalive if the sender is connected.
func (p *Pinger) ping() {
	if !p.sender.IsConnected() {
		p.skipped.Add(1)
		return
	}

	if err := p.sender.Send(Ping{Type: router.TypePing}); err != nil {
		p.failed.Add(1)
		p.logger.Debug("keepalive ping failed", "error", err)
		return
	}
	p.sent.Add(1)
}
