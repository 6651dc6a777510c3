package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort                 = 8000
	DefaultChannel              = "alerts"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 3 * time.Second
	DefaultReconnectSettle      = 1 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 75 * time.Second
	DefaultSendBuffer           = 64
	DefaultReadBuffer           = 256
	DefaultConnectDebounce      = 100 * time.Millisecond
	DefaultKeepaliveInterval    = 30 * time.Second
	DefaultMaxAlerts            = 10
	DefaultDedupCapacity        = 1024
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 1 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *Config) applyDefaults() {
	// Realtime defaults
	if c.Realtime.Port == 0 {
		c.Realtime.Port = DefaultPort
	}
	if c.Realtime.Channel == "" {
		c.Realtime.Channel = DefaultChannel
	}
	if c.Realtime.MaxReconnectAttempts == 0 {
		c.Realtime.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Realtime.ReconnectDelay == 0 {
		c.Realtime.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Realtime.ReconnectSettle == 0 {
		c.Realtime.ReconnectSettle = DefaultReconnectSettle
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.PingInterval == 0 {
		c.Realtime.PingInterval = DefaultPingInterval
	}
	if c.Realtime.PingTimeout == 0 {
		c.Realtime.PingTimeout = DefaultPingTimeout
	}
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = DefaultSendBuffer
	}
	if c.Realtime.ReadBuffer == 0 {
		c.Realtime.ReadBuffer = DefaultReadBuffer
	}

	// Binder defaults
	if c.Binder.ConnectDebounce == 0 {
		c.Binder.ConnectDebounce = DefaultConnectDebounce
	}
	if c.Binder.KeepaliveInterval == 0 {
		c.Binder.KeepaliveInterval = DefaultKeepaliveInterval
	}

	// Feed defaults
	if c.Feed.MaxAlerts == 0 {
		c.Feed.MaxAlerts = DefaultMaxAlerts
	}
	if c.Feed.DedupCapacity == 0 {
		c.Feed.DedupCapacity = DefaultDedupCapacity
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
