package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrDisconnected    = errors.New("disconnected")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the lifecycle state of a Manager's connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ConnectionError is returned by Connect when the handshake fails.
type ConnectionError struct {
	URL     string
	Attempt int // Reconnect attempts already made when the dial failed
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw text frame
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a single WebSocket socket.
type ClientConfig struct {
	HandshakeTimeout time.Duration // Bound on the opening handshake
	WriteTimeout     time.Duration // Write deadline for frames and control messages
	PingInterval     time.Duration // Interval between control pings
	PingTimeout      time.Duration // Max time without pong before considering connection stale
	ReadBufferSize   int           // Inbound frame channel capacity
	SendBufferSize   int           // Outbound frame queue capacity
	MaxMessageSize   int64         // Read limit per frame; 0 means unlimited
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      75 * time.Second,
		ReadBufferSize:   256,
		SendBufferSize:   64,
		MaxMessageSize:   4 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	MaxReconnectAttempts int           // Retries after abnormal closes before giving up
	ReconnectDelay       time.Duration // Delay between an abnormal close and the next attempt
	ReconnectSettle      time.Duration // Extra delay added before each retry dial
	Port                 int           // Realtime service port; zero means endpoint.DefaultPort
	Client               ClientConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxReconnectAttempts: 5,
		ReconnectDelay:       3 * time.Second,
		ReconnectSettle:      1 * time.Second,
		Client:               DefaultClientConfig(),
	}
}

// withDefaults fills zero fields from DefaultManagerConfig. A negative
// MaxReconnectAttempts disables automatic reconnection.
func (c ManagerConfig) withDefaults() ManagerConfig {
	def := DefaultManagerConfig()
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.ReconnectSettle < 0 {
		c.ReconnectSettle = 0
	}
	if c.Client.HandshakeTimeout <= 0 {
		c.Client.HandshakeTimeout = def.Client.HandshakeTimeout
	}
	if c.Client.WriteTimeout <= 0 {
		c.Client.WriteTimeout = def.Client.WriteTimeout
	}
	if c.Client.PingInterval <= 0 {
		c.Client.PingInterval = def.Client.PingInterval
	}
	if c.Client.PingTimeout <= 0 {
		c.Client.PingTimeout = def.Client.PingTimeout
	}
	if c.Client.ReadBufferSize <= 0 {
		c.Client.ReadBufferSize = def.Client.ReadBufferSize
	}
	if c.Client.SendBufferSize <= 0 {
		c.Client.SendBufferSize = def.Client.SendBufferSize
	}
	return c
}

// Stats provides runtime statistics about a Manager.
type Stats struct {
	State               State
	ReconnectAttempts   int
	Dials               int64
	ReconnectsScheduled int64
	FramesReceived      int64
	FramesDropped       int64
	ListenerPanics      int64
	MessagesSent        int64
	LastConnectedAt     time.Time
	LastError           string
}
