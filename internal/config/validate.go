package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Realtime.validate(); err != nil {
		return err
	}

	if c.Binder.ConnectDebounce < 0 {
		return errors.New("binder.connect_debounce must be >= 0")
	}
	if c.Binder.KeepaliveInterval < 0 {
		return errors.New("binder.keepalive_interval must be >= 0")
	}

	if c.Feed.MaxAlerts < 1 {
		return errors.New("feed.max_alerts must be >= 1")
	}
	if c.Feed.DedupCapacity < 1 {
		return errors.New("feed.dedup_capacity must be >= 1")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (r *RealtimeConfig) validate() error {
	if r.Origin == "" {
		return errors.New("realtime.origin is required")
	}
	if u, err := url.Parse(r.Origin); err != nil || u.Host == "" {
		return fmt.Errorf("realtime.origin %q is not an absolute URL", r.Origin)
	}

	switch r.Channel {
	case "alerts", "dashboard":
	case "camera":
		if r.CameraID == "" {
			return errors.New("realtime.camera_id is required for the camera channel")
		}
	default:
		return fmt.Errorf("realtime.channel must be alerts, camera or dashboard, got %q", r.Channel)
	}

	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("realtime.port must be between 1 and 65535, got %d", r.Port)
	}
	if r.MaxReconnectAttempts < -1 {
		return errors.New("realtime.max_reconnect_attempts must be >= -1")
	}
	if r.ReconnectDelay < 0 || r.ReconnectSettle < 0 {
		return errors.New("realtime reconnect delays must be >= 0")
	}
	if r.PingTimeout <= r.PingInterval {
		return fmt.Errorf("realtime.ping_timeout (%v) must exceed ping_interval (%v)", r.PingTimeout, r.PingInterval)
	}
	if r.SendBuffer < 1 {
		return errors.New("realtime.send_buffer must be >= 1")
	}
	if r.ReadBuffer < 1 {
		return errors.New("realtime.read_buffer must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
