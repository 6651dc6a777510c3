// Package alertfeed keeps the operator-facing list of recent alerts.
//
// Alert notices arrive as created, updated or deleted. Creations are
// deduplicated and prepended, updates replace the stored alert, deletions
// remove it. An unacknowledged new alert becomes the urgent alert once; it is
// cleared when acknowledged, deleted or dismissed.
package alertfeed

import (
	"log/slog"
	"sync"

	"github.com/rickgao/camwatch/internal/dedup"
	"github.com/rickgao/camwatch/internal/metrics"
	"github.com/rickgao/camwatch/internal/model"
	"github.com/rickgao/camwatch/internal/router"
)

// DefaultMaxAlerts is the number of alerts kept when Config.MaxAlerts is zero.
const DefaultMaxAlerts = 10

// Config holds feed configuration.
type Config struct {
	MaxAlerts int // Alerts kept, newest first (default: 10)
}

// Hooks are called after the feed state changes. They run on the caller's
// goroutine with no feed lock held.
type Hooks struct {
	OnAccepted     func(ev router.AlertEvent, env router.Envelope) // Every notice applied
	OnUrgent       func(model.Alert)                               // A new unacknowledged alert
	OnUrgentClosed func(id int64)                                  // The urgent alert was resolved
}

// Feed is safe for concurrent use.
type Feed struct {
	cfg     Config
	filter  *dedup.Filter
	hooks   Hooks
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	alerts   []model.Alert
	urgent   *model.Alert
	notified map[int64]struct{} // Ids already raised as urgent
}

// New creates a Feed. A nil filter gets a default-sized one.
func New(cfg Config, filter *dedup.Filter, hooks Hooks, m *metrics.Metrics, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultMaxAlerts
	}
	if filter == nil {
		filter = dedup.New(0)
	}
	return &Feed{
		cfg:      cfg,
		filter:   filter,
		hooks:    hooks,
		metrics:  m,
		logger:   logger,
		notified: make(map[int64]struct{}),
	}
}

// Listener returns a listener that applies alert envelopes to the feed.
func (f *Feed) Listener() *router.Listener {
	return router.NewListener(func(env router.Envelope) {
		f.Apply(env)
	})
}

// Apply updates the feed from one envelope and reports whether it changed
// anything.
func (f *Feed) Apply(env router.Envelope) bool {
	ev, ok := env.Event.(router.AlertEvent)
	if !ok {
		f.logger.Debug("ignoring non-alert envelope", "type", env.Type)
		return false
	}

	if !f.filter.AcceptEnvelope(env) {
		f.metrics.AlertDuplicate()
		f.logger.Debug("duplicate alert dropped", "type", env.Type)
		return false
	}

	var (
		changed bool
		raised  *model.Alert
		closed  int64
	)

	f.mu.Lock()
	switch ev.Notice.Action {
	case model.AlertCreated, "":
		alert, ok := noticeAlert(ev.Notice)
		if !ok {
			break
		}
		changed = f.addLocked(alert)
		if changed && !alert.Acknowledged {
			if _, seen := f.notified[alert.ID]; !seen {
				f.notified[alert.ID] = struct{}{}
				a := alert
				f.urgent = &a
				raised = &a
			}
		}

	case model.AlertUpdated:
		alert := ev.Notice.Alert
		changed = f.replaceLocked(alert)
		if f.urgent != nil && f.urgent.ID == alert.ID && alert.Acknowledged {
			f.urgent = nil
			closed = alert.ID
		}

	case model.AlertDeleted:
		id, ok := ev.Notice.AlertID()
		if !ok {
			break
		}
		changed = f.removeLocked(id)
		if f.urgent != nil && f.urgent.ID == id {
			f.urgent = nil
			closed = id
		}

	default:
		f.logger.Warn("unknown alert action", "action", ev.Notice.Action)
	}
	f.mu.Unlock()

	if !changed && closed == 0 {
		return false
	}

	f.metrics.AlertAccepted()
	if f.hooks.OnAccepted != nil {
		f.hooks.OnAccepted(ev, env)
	}
	if raised != nil && f.hooks.OnUrgent != nil {
		f.hooks.OnUrgent(*raised)
	}
	if closed != 0 && f.hooks.OnUrgentClosed != nil {
		f.hooks.OnUrgentClosed(closed)
	}
	return true
}

// Alerts returns the stored alerts, newest first.
func (f *Feed) Alerts() []model.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Alert, len(f.alerts))
	copy(out, f.alerts)
	return out
}

// Urgent returns the alert currently flagged as urgent.
func (f *Feed) Urgent() (model.Alert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urgent == nil {
		return model.Alert{}, false
	}
	return *f.urgent, true
}

// Dismiss clears the urgent alert without acknowledging it. It is not raised
// again.
func (f *Feed) Dismiss() {
	f.mu.Lock()
	f.urgent = nil
	f.mu.Unlock()
}

func (f *Feed) addLocked(alert model.Alert) bool {
	for _, a := range f.alerts {
		if a.ID == alert.ID {
			return false
		}
	}

	f.alerts = append([]model.Alert{alert}, f.alerts...)
	if len(f.alerts) > f.cfg.MaxAlerts {
		f.alerts = f.alerts[:f.cfg.MaxAlerts]
	}
	return true
}

func (f *Feed) replaceLocked(alert model.Alert) bool {
	for i, a := range f.alerts {
		if a.ID == alert.ID {
			f.alerts[i] = alert
			return true
		}
	}
	return false
}

func (f *Feed) removeLocked(id int64) bool {
	for i, a := range f.alerts {
		if a.ID == id {
			f.alerts = append(f.alerts[:i], f.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// noticeAlert returns the alert a creation notice carries. Bare notices
// produce an alert holding only the id.
func noticeAlert(n model.AlertNotice) (model.Alert, bool) {
	id, ok := n.AlertID()
	if !ok {
		return model.Alert{}, false
	}
	alert := n.Alert
	alert.ID = id
	return alert, true
}
