package config

import "time"

// Config is the root configuration for an alertwatch instance.
type Config struct {
	Realtime RealtimeConfig `yaml:"realtime"`
	Binder   BinderConfig   `yaml:"binder"`
	Feed     FeedConfig     `yaml:"feed"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// RealtimeConfig holds connection manager settings.
type RealtimeConfig struct {
	Origin               string        `yaml:"origin"`                 // Page origin, e.g. https://cams.example.com
	Port                 int           `yaml:"port"`                   // Realtime service port
	Channel              string        `yaml:"channel"`                // "alerts", "camera" or "dashboard"
	CameraID             string        `yaml:"camera_id"`              // Required for the camera channel
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // -1 disables automatic reconnection
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ReconnectSettle      time.Duration `yaml:"reconnect_settle"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	SendBuffer           int           `yaml:"send_buffer"`
	ReadBuffer           int           `yaml:"read_buffer"`
}

// BinderConfig holds session settings.
type BinderConfig struct {
	ConnectDebounce   time.Duration `yaml:"connect_debounce"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	EventTypes        []string      `yaml:"event_types"`
}

// FeedConfig holds alert feed settings.
type FeedConfig struct {
	MaxAlerts     int `yaml:"max_alerts"`
	DedupCapacity int `yaml:"dedup_capacity"`
}

// JournalConfig holds the optional alert journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
