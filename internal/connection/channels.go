package connection

import (
	"log/slog"

	"github.com/rickgao/camwatch/internal/endpoint"
)

// NewAlertManager creates a Manager for the alerts channel of origin.
func NewAlertManager(origin string, cfg ManagerConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	return newChannelManager(origin, endpoint.ChannelAlerts, "", cfg, logger, opts...)
}

// NewCameraManager creates a Manager for one camera's stream.
func NewCameraManager(origin, cameraID string, cfg ManagerConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	return newChannelManager(origin, endpoint.ChannelCamera, cameraID, cfg, logger, opts...)
}

// NewDashboardManager creates a Manager for the dashboard channel of origin.
func NewDashboardManager(origin string, cfg ManagerConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	return newChannelManager(origin, endpoint.ChannelDashboard, "", cfg, logger, opts...)
}

func newChannelManager(origin string, ch endpoint.Channel, id string, cfg ManagerConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	target, err := endpoint.Resolve(origin, ch, id, endpoint.Options{Port: cfg.Port})
	if err != nil {
		return nil, err
	}
	return NewManager(target, cfg, logger, opts...), nil
}
