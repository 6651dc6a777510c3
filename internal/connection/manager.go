package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/camwatch/internal/endpoint"
	"github.com/rickgao/camwatch/internal/metrics"
	"github.com/rickgao/camwatch/internal/router"
)

const (
	connectKey       = "connect"
	disconnectReason = "manual disconnect"
)

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithMetrics records connection metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithBackOff replaces the constant ReconnectDelay policy. Returning
// backoff.Stop from NextBackOff ends automatic reconnection.
func WithBackOff(b backoff.BackOff) Option {
	return func(m *Manager) {
		if b != nil {
			m.backoff = b
		}
	}
}

type observer struct {
	id uint64
	fn func(State)
}

// Manager owns one WebSocket connection to a realtime channel.
type Manager struct {
	target   endpoint.Target
	cfg      ManagerConfig
	logger   *slog.Logger
	dialer   Dialer
	metrics  *metrics.Metrics
	backoff  backoff.BackOff
	registry *router.Registry
	group    singleflight.Group

	mu         sync.Mutex
	state      State
	socket     Socket
	attempts   int
	connToken  uint64 // Bumped by Disconnect; dials started under an older token are discarded
	retryTimer *time.Timer
	retryToken uint64 // Bumped whenever the retry timer is cancelled or replaced
	lastErr    error
	lastOpen   time.Time

	observers    []observer
	nextObserver uint64
	pending      []State // State changes not yet delivered to observers
	notifying    bool

	// Stats (atomic operations for thread safety)
	dials          atomic.Int64
	scheduled      atomic.Int64
	framesReceived atomic.Int64
	framesDropped  atomic.Int64
	listenerPanics atomic.Int64
	sent           atomic.Int64
}

// NewManager creates a Manager for target. Nothing is dialled until Connect.
func NewManager(target endpoint.Target, cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	m := &Manager{
		target:   target,
		cfg:      cfg,
		logger:   logger.With("url", target.URL()),
		registry: router.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewDialer(cfg.Client, logger)
	}
	if m.backoff == nil {
		m.backoff = backoff.NewConstantBackOff(cfg.ReconnectDelay)
	}
	m.metrics.SetState(m.channel(), int(StateIdle))

	return m
}

// Connect opens the connection if it is not already open. Concurrent callers
// share one dial. ctx bounds only this caller's wait; the dial itself is
// bounded by HandshakeTimeout. An explicit Connect after retries ran out or
// after Disconnect starts a fresh series of reconnect attempts.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}
	if m.state != StateConnecting && m.attempts >= m.cfg.MaxReconnectAttempts {
		m.attempts = 0
		m.backoff.Reset()
	}
	token := m.connToken
	m.mu.Unlock()

	for {
		err := m.connectShared(ctx)
		if !errors.Is(err, ErrDisconnected) {
			return err
		}

		// A dial started before Disconnect was still in flight. Callers that
		// arrived after the Disconnect wait it out and dial again.
		m.mu.Lock()
		current := token == m.connToken
		m.mu.Unlock()
		if !current {
			return err
		}
	}
}

func (m *Manager) connectShared(ctx context.Context) error {
	ch := m.group.DoChan(connectKey, func() (any, error) {
		return nil, m.dial()
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dial performs one physical connection attempt. Only ever runs inside the
// singleflight group.
func (m *Manager) dial() error {
	m.mu.Lock()
	if m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked()
	token := m.connToken
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.flushObservers()

	m.logger.Debug("connecting websocket")

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Client.HandshakeTimeout)
	defer cancel()

	sock, err := m.dialer.Dial(ctx, m.target)
	m.dials.Add(1)
	m.metrics.Dial(m.channel(), err)

	m.mu.Lock()
	if token != m.connToken {
		m.mu.Unlock()
		if sock != nil {
			_ = sock.Close(websocket.CloseNormalClosure, disconnectReason)
		}
		m.logger.Debug("discarding connection attempt after disconnect")
		return ErrDisconnected
	}

	if err != nil {
		cerr := &ConnectionError{URL: m.target.URL(), Attempt: m.attempts, Err: err}
		m.lastErr = err
		m.setStateLocked(StateClosed)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.flushObservers()

		m.logger.Error("websocket connection failed", "error", err, "attempt", cerr.Attempt)
		return cerr
	}

	m.socket = sock
	m.attempts = 0
	m.backoff.Reset()
	m.lastOpen = time.Now()
	m.setStateLocked(StateOpen)
	m.mu.Unlock()
	m.flushObservers()

	m.logger.Info("websocket connected")

	go m.pump(sock)
	return nil
}

// pump delivers frames from sock until it ends, then applies the close policy.
func (m *Manager) pump(sock Socket) {
	for msg := range sock.Messages() {
		m.handleFrame(msg)
	}
	err := sock.Err()

	m.mu.Lock()
	if m.socket != sock {
		// Disconnect or a newer connection already took over.
		m.mu.Unlock()
		return
	}
	m.socket = nil
	m.setStateLocked(StateClosed)

	if isNormalClosure(err) {
		m.attempts = 0
		m.backoff.Reset()
		m.mu.Unlock()
		m.flushObservers()
		m.logger.Info("websocket closed by server")
		return
	}

	m.lastErr = err
	m.scheduleReconnectLocked()
	m.mu.Unlock()
	m.flushObservers()

	m.logger.Warn("websocket closed abnormally", "error", err)
}

func (m *Manager) handleFrame(msg TimestampedMessage) {
	env, err := router.Decode(msg.Data)
	if err != nil {
		m.framesDropped.Add(1)
		m.metrics.FrameDropped(m.channel(), metrics.DropMalformed)
		m.logger.Warn("failed to parse frame", "error", err, "size", len(msg.Data))
		return
	}
	env.ReceivedAt = msg.ReceivedAt

	m.framesReceived.Add(1)
	m.metrics.FrameReceived(m.channel(), env.Type)

	called, failures := m.registry.Dispatch(env)
	if called == 0 {
		m.metrics.FrameDropped(m.channel(), metrics.DropNoListener)
	}
	for _, f := range failures {
		m.listenerPanics.Add(1)
		m.metrics.ListenerPanic(m.channel(), f.Type)
		m.logger.Error("listener panicked", "type", f.Type, "index", f.Index, "panic", f.Recovered)
	}
}

// scheduleReconnectLocked arms the retry timer if attempts remain.
// Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("max reconnection attempts reached", "attempts", m.attempts)
		return
	}

	next := m.backoff.NextBackOff()
	if next == backoff.Stop {
		m.logger.Error("reconnect policy stopped", "attempts", m.attempts)
		return
	}

	m.attempts++
	delay := next + m.cfg.ReconnectSettle

	m.stopRetryLocked()
	token := m.retryToken
	m.retryTimer = time.AfterFunc(delay, func() { m.retry(token) })

	m.scheduled.Add(1)
	m.metrics.ReconnectScheduled(m.channel())
	m.logger.Info("reconnecting",
		"attempt", m.attempts,
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
}

// stopRetryLocked cancels any pending retry. Caller holds m.mu.
func (m *Manager) stopRetryLocked() {
	m.retryToken++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *Manager) retry(token uint64) {
	m.mu.Lock()
	if token != m.retryToken || m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	attempt := m.attempts
	m.mu.Unlock()

	if err := m.connectShared(context.Background()); err != nil {
		m.logger.Debug("reconnection failed", "attempt", attempt, "error", err)
	}
}

// Send JSON-encodes payload and queues it for writing. It never blocks on the
// network and returns ErrNotConnected unless the connection is open.
func (m *Manager) Send(payload any) error {
	m.mu.Lock()
	sock := m.socket
	state := m.state
	m.mu.Unlock()

	if state != StateOpen || sock == nil {
		m.metrics.Sent(m.channel(), metrics.SendNotConnected)
		m.logger.Warn("websocket is not connected, message not sent", "state", state.String())
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.metrics.Sent(m.channel(), metrics.SendEncodeError)
		return fmt.Errorf("encode message: %w", err)
	}

	if err := sock.Send(data); err != nil {
		outcome := metrics.SendNotConnected
		if errors.Is(err, ErrSendBufferFull) {
			outcome = metrics.SendBufferFull
		}
		m.metrics.Sent(m.channel(), outcome)
		m.logger.Warn("message not sent", "error", err)
		return err
	}

	m.sent.Add(1)
	m.metrics.Sent(m.channel(), metrics.SendOK)
	return nil
}

// On registers l for eventType.
func (m *Manager) On(eventType string, l *router.Listener) {
	m.registry.On(eventType, l)
}

// Off unregisters l for eventType. Unknown listeners are ignored.
func (m *Manager) Off(eventType string, l *router.Listener) {
	m.registry.Off(eventType, l)
}

// Listeners returns the number of listeners registered for eventType.
func (m *Manager) Listeners(eventType string) int {
	return m.registry.Len(eventType)
}

// IsConnected reports whether the connection is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Target returns the endpoint this Manager connects to.
func (m *Manager) Target() endpoint.Target {
	return m.target
}

// Disconnect closes the connection with a normal closure, cancels any pending
// retry and clears all listeners. No automatic reconnection follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopRetryLocked()
	m.attempts = m.cfg.MaxReconnectAttempts
	m.connToken++
	sock := m.socket
	m.socket = nil
	if sock != nil {
		m.setStateLocked(StateClosing)
	}
	m.mu.Unlock()
	m.flushObservers()

	if sock != nil {
		if err := sock.Close(websocket.CloseNormalClosure, disconnectReason); err != nil {
			m.logger.Debug("close failed", "error", err)
		}
	}

	m.mu.Lock()
	if m.state != StateIdle {
		m.setStateLocked(StateClosed)
	}
	m.mu.Unlock()
	m.flushObservers()

	m.registry.Clear()
	m.logger.Info("websocket disconnected")
}

// Observe registers fn to be called on every state change, in order.
// Calling the returned function stops further calls.
func (m *Manager) Observe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers = append(m.observers, observer{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, o := range m.observers {
				if o.id == id {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		State:               m.state,
		ReconnectAttempts:   m.attempts,
		Dials:               m.dials.Load(),
		ReconnectsScheduled: m.scheduled.Load(),
		FramesReceived:      m.framesReceived.Load(),
		FramesDropped:       m.framesDropped.Load(),
		ListenerPanics:      m.listenerPanics.Load(),
		MessagesSent:        m.sent.Load(),
		LastConnectedAt:     m.lastOpen,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// setStateLocked records a transition for observers. Caller holds m.mu and
// must call flushObservers after unlocking.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.pending = append(m.pending, s)
	m.metrics.SetState(m.channel(), int(s))
}

// flushObservers delivers queued transitions in order. A call made while
// another goroutine (or an observer further up the stack) is delivering
// returns at once; the active deliverer picks up its transitions.
func (m *Manager) flushObservers() {
	m.mu.Lock()
	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true

	for len(m.pending) > 0 {
		s := m.pending[0]
		m.pending = m.pending[1:]

		observers := m.observers
		m.mu.Unlock()

		for _, o := range observers {
			m.notify(o.fn, s)
		}

		m.mu.Lock()
	}

	m.notifying = false
	m.mu.Unlock()
}

func (m *Manager) notify(fn func(State), s State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state observer panicked", "state", s.String(), "panic", r)
		}
	}()
	fn(s)
}

func (m *Manager) channel() string {
	return m.target.Path
}

// isNormalClosure reports whether err is a close frame with code 1000.
func isNormalClosure(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure
}
