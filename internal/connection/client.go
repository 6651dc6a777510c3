package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/camwatch/internal/endpoint"
	"github.com/rickgao/camwatch/internal/version"
)

// Socket is one live WebSocket connection.
type Socket interface {
	// Messages returns inbound text frames in wire order. The channel is
	// closed when the connection ends; Err then reports why.
	Messages() <-chan TimestampedMessage

	// Err returns the terminal error. Only meaningful after Messages is closed.
	Err() error

	// Send queues a frame for writing without blocking on the network.
	Send(data []byte) error

	// Close sends a close frame with code and reason and tears the socket down.
	Close(code int, reason string) error
}

// Dialer opens sockets to a target.
type Dialer interface {
	Dial(ctx context.Context, target endpoint.Target) (Socket, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, target endpoint.Target) (Socket, error)

// Dial calls f(ctx, target).
func (f DialerFunc) Dial(ctx context.Context, target endpoint.Target) (Socket, error) {
	return f(ctx, target)
}

// NewDialer returns a Dialer backed by gorilla/websocket.
func NewDialer(cfg ClientConfig, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsDialer{cfg: cfg, logger: logger}
}

type wsDialer struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// Dial performs the opening handshake and starts the socket's loops.
func (d *wsDialer) Dial(ctx context.Context, target endpoint.Target) (Socket, error) {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	header.Set("Origin", target.Origin())

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, target.URL(), header)
	if err != nil {
		return nil, err
	}

	s := newSocket(conn, d.cfg, d.logger.With("url", target.URL()))
	s.start()
	return s, nil
}

// socket implements Socket over a gorilla connection.
type socket struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn

	messages chan TimestampedMessage
	outbound chan []byte
	done     chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu         sync.Mutex
	err        error
	lastPongAt time.Time
}

func newSocket(conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *socket {
	return &socket{
		cfg:        cfg,
		logger:     logger,
		conn:       conn,
		messages:   make(chan TimestampedMessage, cfg.ReadBufferSize),
		outbound:   make(chan []byte, cfg.SendBufferSize),
		done:       make(chan struct{}),
		lastPongAt: time.Now(),
	}
}

func (s *socket) start() {
	if s.cfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	// Server pings count as liveness too.
	s.conn.SetPingHandler(func(data string) error {
		s.touch()
		err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	s.wg.Add(3)
	go s.readLoop()
	go s.writeLoop()
	go s.heartbeatLoop()
}

func (s *socket) Messages() <-chan TimestampedMessage {
	return s.messages
}

func (s *socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *socket) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	select {
	case s.outbound <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (s *socket) Close(code int, reason string) error {
	closed := false
	s.closeOnce.Do(func() {
		closed = true
		s.fail(&websocket.CloseError{Code: code, Text: reason})
		close(s.done)

		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(s.cfg.WriteTimeout),
		)
	})
	if !closed {
		return ErrAlreadyClosed
	}
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// fail records the first terminal error.
func (s *socket) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// teardown ends the socket after a local failure.
func (s *socket) teardown(err error) {
	s.fail(err)
	s.closeOnce.Do(func() { close(s.done) })
	_ = s.conn.Close()
}

func (s *socket) touch() {
	s.mu.Lock()
	s.lastPongAt = time.Now()
	s.mu.Unlock()
}

// readLoop delivers frames until the connection fails, then closes messages.
func (s *socket) readLoop() {
	defer s.wg.Done()
	defer close(s.messages)

	for {
		msgType, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			s.teardown(err)
			return
		}
		if msgType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}

		select {
		case s.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-s.done:
			return
		}
	}
}

// writeLoop is the only writer of data frames.
func (s *socket) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.teardown(err)
				return
			}
		}
	}
}

// heartbeatLoop sends control pings and detects stale connections.
func (s *socket) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.Lock()
			lastPong := s.lastPongAt
			s.mu.Unlock()

			if time.Since(lastPong) > s.cfg.PingTimeout {
				s.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", s.cfg.PingTimeout,
				)
				s.teardown(ErrStaleConnection)
				return
			}
		}
	}
}
