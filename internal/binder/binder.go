package binder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/camwatch/internal/connection"
	"github.com/rickgao/camwatch/internal/router"
)

// DefaultConnectDebounce is the delay between Attach and the connect attempt.
const DefaultConnectDebounce = 100 * time.Millisecond

// DefaultEventTypes are the event types a session records by default.
var DefaultEventTypes = []string{
	router.TypeAlert,
	router.TypeFrame,
	router.TypeDetection,
	router.TypeDashboardUpdate,
	router.TypePong,
}

// Transport is the part of connection.Manager a session uses.
type Transport interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Send(payload any) error
	On(eventType string, l *router.Listener)
	Off(eventType string, l *router.Listener)
	Observe(fn func(connection.State)) (cancel func())
}

// Options configures a Session.
type Options struct {
	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
	OnMessage    func(router.Envelope)

	// AutoReconnect and ReconnectDelay are accepted for compatibility and
	// ignored; reconnection belongs to the transport.
	AutoReconnect  bool
	ReconnectDelay time.Duration

	ConnectDebounce time.Duration // Zero means DefaultConnectDebounce
	EventTypes      []string      // Nil means DefaultEventTypes; repeats are ignored
	ID              uuid.UUID     // Zero means a random id
}

type subscription struct {
	eventType string
	listener  *router.Listener
}

// Session is one consumer's attachment to a Transport.
type Session struct {
	id         uuid.UUID
	t          Transport
	opts       Options
	logger     *slog.Logger
	listener   *router.Listener
	eventTypes []string

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	mounted        bool
	connected      bool
	last           router.Envelope
	hasLast        bool
	connectTimer   *time.Timer
	connectStarted bool
	stopObserving  func()
	subs           []subscription
}

// Attach binds a new session to t. A nil t yields an inert session that is
// never connected.
func Attach(t Transport, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConnectDebounce <= 0 {
		opts.ConnectDebounce = DefaultConnectDebounce
	}

	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Session{
		id:      id,
		t:       t,
		opts:    opts,
		logger:  logger.With("session", id.String()),
		mounted: true,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if t == nil {
		s.logger.Debug("no transport available, session inert")
		return s
	}

	eventTypes := opts.EventTypes
	if eventTypes == nil {
		eventTypes = DefaultEventTypes
	}
	s.eventTypes = uniqueTypes(eventTypes)
	s.listener = router.NewListener(s.record)
	for _, et := range s.eventTypes {
		t.On(et, s.listener)
	}

	stop := t.Observe(s.onState)

	s.mu.Lock()
	s.stopObserving = stop
	if t.IsConnected() {
		s.connected = true
	} else {
		s.connectTimer = time.AfterFunc(opts.ConnectDebounce, s.connect)
	}
	s.mu.Unlock()

	s.logger.Debug("session attached", "event_types", s.eventTypes)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Connected reports whether the transport is open as seen by this session.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastMessage returns the most recent envelope of a watched type.
func (s *Session) LastMessage() (router.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Send forwards data to the transport when it is connected; otherwise the
// message is dropped.
func (s *Session) Send(data any) {
	if s.t == nil || !s.t.IsConnected() {
		s.logger.Debug("transport not connected, message dropped")
		return
	}
	if err := s.t.Send(data); err != nil {
		s.logger.Warn("send failed", "error", err)
	}
}

// Subscribe registers l on the transport. Subscriptions still registered at
// Detach are removed then.
func (s *Session) Subscribe(eventType string, l *router.Listener) {
	if s.t == nil || l == nil {
		return
	}

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.subs = append(s.subs, subscription{eventType: eventType, listener: l})
	s.mu.Unlock()

	s.t.On(eventType, l)
}

// Unsubscribe removes a listener added with Subscribe.
func (s *Session) Unsubscribe(eventType string, l *router.Listener) {
	if s.t == nil || l == nil {
		return
	}

	s.mu.Lock()
	for i, sub := range s.subs {
		if sub.eventType == eventType && sub.listener == l {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.t.Off(eventType, l)
}

// Detach ends the session. The transport is left connected.
func (s *Session) Detach() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	stop := s.stopObserving
	s.stopObserving = nil
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	if s.t == nil {
		return
	}

	for _, et := range s.eventTypes {
		s.t.Off(et, s.listener)
	}
	for _, sub := range subs {
		s.t.Off(sub.eventType, sub.listener)
	}
	if stop != nil {
		stop()
	}

	s.logger.Debug("session detached")
}

// connect runs once, after the debounce.
func (s *Session) connect() {
	s.mu.Lock()
	if !s.mounted || s.connectStarted {
		s.mu.Unlock()
		return
	}
	s.connectStarted = true
	s.connectTimer = nil
	s.mu.Unlock()

	err := s.t.Connect(s.ctx)

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to connect", "error", err)
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return
	}

	// The transport may have been opened by another session without a
	// transition this session observed.
	s.setConnected(s.t.IsConnected())
}

func (s *Session) onState(state connection.State) {
	s.setConnected(state == connection.StateOpen)
}

// setConnected updates the flag and fires OnConnect/OnDisconnect on change.
func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	if !s.mounted || s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.mu.Unlock()

	if connected {
		s.logger.Debug("transport connected")
		if s.opts.OnConnect != nil {
			s.opts.OnConnect()
		}
		return
	}

	s.logger.Debug("transport disconnected")
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect()
	}
}

func (s *Session) record(env router.Envelope) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.last = env
	s.hasLast = true
	s.mu.Unlock()

	if s.opts.OnMessage != nil {
		s.opts.OnMessage(env)
	}
}

// uniqueTypes drops repeated event types, keeping first-seen order.
func uniqueTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
