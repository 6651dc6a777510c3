package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `
realtime:
  origin: https://cams.example.com
  port: 8443
  channel: camera
  camera_id: "12"
  max_reconnect_attempts: 3
  reconnect_delay: 2s
binder:
  connect_debounce: 50ms
  event_types: [alert, pong]
feed:
  max_alerts: 20
journal:
  enabled: true
  database:
    host: localhost
    port: 5432
    name: camwatch
    user: camwatch
    password: secret
  batch_size: 50
metrics:
  port: 9100
log:
  level: debug
  format: json
`
	path := writeTempFile(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Realtime.Origin != "https://cams.example.com" {
		t.Errorf("Realtime.Origin = %q, want %q", cfg.Realtime.Origin, "https://cams.example.com")
	}
	if cfg.Realtime.Port != 8443 {
		t.Errorf("Realtime.Port = %d, want 8443", cfg.Realtime.Port)
	}
	if cfg.Realtime.Channel != "camera" || cfg.Realtime.CameraID != "12" {
		t.Errorf("Realtime channel = %q/%q, want camera/12", cfg.Realtime.Channel, cfg.Realtime.CameraID)
	}
	if cfg.Realtime.MaxReconnectAttempts != 3 {
		t.Errorf("Realtime.MaxReconnectAttempts = %d, want 3", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Realtime.ReconnectDelay != 2*time.Second {
		t.Errorf("Realtime.ReconnectDelay = %v, want 2s", cfg.Realtime.ReconnectDelay)
	}
	if cfg.Binder.ConnectDebounce != 50*time.Millisecond {
		t.Errorf("Binder.ConnectDebounce = %v, want 50ms", cfg.Binder.ConnectDebounce)
	}
	if len(cfg.Binder.EventTypes) != 2 || cfg.Binder.EventTypes[1] != "pong" {
		t.Errorf("Binder.EventTypes = %v, want [alert pong]", cfg.Binder.EventTypes)
	}
	if cfg.Feed.MaxAlerts != 20 {
		t.Errorf("Feed.MaxAlerts = %d, want 20", cfg.Feed.MaxAlerts)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Database.Name != "camwatch" {
		t.Errorf("Journal = %+v, want enabled with database camwatch", cfg.Journal)
	}
	if cfg.Journal.BatchSize != 50 {
		t.Errorf("Journal.BatchSize = %d, want 50", cfg.Journal.BatchSize)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Metrics.Port = %d, want 9100", cfg.Metrics.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("CAMWATCH_TEST_ORIGIN", "https://env.example.com")
	t.Setenv("CAMWATCH_TEST_DB_PASSWORD", "from-env")

	content := `
realtime:
  origin: ${CAMWATCH_TEST_ORIGIN}
journal:
  enabled: true
  database:
    host: localhost
    name: camwatch
    user: camwatch
    password: ${CAMWATCH_TEST_DB_PASSWORD}
`
	path := writeTempFile(t, content)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	if cfg.Realtime.Origin != "https://env.example.com" {
		t.Errorf("Realtime.Origin = %q, want %q", cfg.Realtime.Origin, "https://env.example.com")
	}
	if cfg.Journal.Database.Password != "from-env" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "from-env")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	content := `
realtime:
  origin: https://cams.example.com
`
	path := writeTempFile(t, content)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Realtime.Port != DefaultPort {
		t.Errorf("Realtime.Port = %d, want %d", cfg.Realtime.Port, DefaultPort)
	}
	if cfg.Realtime.Channel != DefaultChannel {
		t.Errorf("Realtime.Channel = %q, want %q", cfg.Realtime.Channel, DefaultChannel)
	}
	if cfg.Realtime.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Realtime.MaxReconnectAttempts = %d, want %d", cfg.Realtime.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Realtime.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Realtime.ReconnectDelay = %v, want %v", cfg.Realtime.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Realtime.ReconnectSettle != DefaultReconnectSettle {
		t.Errorf("Realtime.ReconnectSettle = %v, want %v", cfg.Realtime.ReconnectSettle, DefaultReconnectSettle)
	}
	if cfg.Binder.ConnectDebounce != DefaultConnectDebounce {
		t.Errorf("Binder.ConnectDebounce = %v, want %v", cfg.Binder.ConnectDebounce, DefaultConnectDebounce)
	}
	if cfg.Feed.MaxAlerts != DefaultMaxAlerts {
		t.Errorf("Feed.MaxAlerts = %d, want %d", cfg.Feed.MaxAlerts, DefaultMaxAlerts)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Journal.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("Journal.Database.SSLMode = %q, want %q", cfg.Journal.Database.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v, want %s/%s", cfg.Log, DefaultLogLevel, DefaultLogFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadWithDefaults_DisabledReconnect(t *testing.T) {
	content := `
realtime:
  origin: https://cams.example.com
  max_reconnect_attempts: -1
`
	cfg, err := LoadAndValidate(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Realtime.MaxReconnectAttempts != -1 {
		t.Errorf("Realtime.MaxReconnectAttempts = %d, want -1", cfg.Realtime.MaxReconnectAttempts)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() on missing file should fail")
	}

	path := writeTempFile(t, "realtime: [not, a, map]")
	if _, err := Load(path); err == nil {
		t.Error("Load() on malformed yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	validConfig := func() *Config {
		cfg := &Config{
			Realtime: RealtimeConfig{Origin: "https://cams.example.com"},
			Journal: JournalConfig{
				Enabled: true,
				Database: DBConfig{
					Host:     "localhost",
					Name:     "camwatch",
					User:     "camwatch",
					Password: "secret",
				},
			},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing origin",
			modify:  func(c *Config) { c.Realtime.Origin = "" },
			wantErr: "realtime.origin is required",
		},
		{
			name:    "relative origin",
			modify:  func(c *Config) { c.Realtime.Origin = "cams.example.com" },
			wantErr: `realtime.origin "cams.example.com" is not an absolute URL`,
		},
		{
			name:    "unknown channel",
			modify:  func(c *Config) { c.Realtime.Channel = "lobby" },
			wantErr: `realtime.channel must be alerts, camera or dashboard, got "lobby"`,
		},
		{
			name:    "camera channel without id",
			modify:  func(c *Config) { c.Realtime.Channel = "camera" },
			wantErr: "realtime.camera_id is required for the camera channel",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Realtime.Port = 70000 },
			wantErr: "realtime.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "max reconnect attempts too low",
			modify:  func(c *Config) { c.Realtime.MaxReconnectAttempts = -2 },
			wantErr: "realtime.max_reconnect_attempts must be >= -1",
		},
		{
			name:    "negative reconnect delay",
			modify:  func(c *Config) { c.Realtime.ReconnectDelay = -time.Second },
			wantErr: "realtime reconnect delays must be >= 0",
		},
		{
			name:    "ping timeout not above interval",
			modify:  func(c *Config) { c.Realtime.PingTimeout = c.Realtime.PingInterval },
			wantErr: "realtime.ping_timeout (30s) must exceed ping_interval (30s)",
		},
		{
			name:    "negative max alerts",
			modify:  func(c *Config) { c.Feed.MaxAlerts = -1 },
			wantErr: "feed.max_alerts must be >= 1",
		},
		{
			name:    "journal missing host",
			modify:  func(c *Config) { c.Journal.Database.Host = "" },
			wantErr: "journal.database.host is required",
		},
		{
			name:    "journal min exceeds max",
			modify:  func(c *Config) { c.Journal.Database.MinConns = 10 },
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (4)",
		},
		{
			name: "disabled journal skips database checks",
			modify: func(c *Config) {
				c.Journal.Enabled = false
				c.Journal.Database = DBConfig{}
			},
			wantErr: "",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() error = nil, want %q", tt.wantErr)
				return
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
