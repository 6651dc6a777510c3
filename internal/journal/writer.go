package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/camwatch/internal/router"
)

// Schema creates the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS alert_journal (
	notice_id     UUID PRIMARY KEY,
	session_id    UUID NOT NULL,
	alert_id      BIGINT NOT NULL,
	action        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	severity      SMALLINT NOT NULL DEFAULT 0,
	incident_type TEXT NOT NULL DEFAULT '',
	payload       JSONB NOT NULL,
	received_at   BIGINT NOT NULL
)`

const insertNotice = `
	INSERT INTO alert_journal (notice_id, session_id, alert_id, action, title, severity, incident_type, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (notice_id) DO NOTHING
`

// noticeNamespace scopes the name-based notice ids.
var noticeNamespace = uuid.MustParse("6f1c7a52-3c4e-4f0b-9a59-2d0f3e8b6c11")

// BatchSender sends a queued batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds writer configuration.
type Config struct {
	BatchSize     int           // Rows per insert batch (default: 100)
	FlushInterval time.Duration // Max time a row waits (default: 1s)
	QueueSize     int           // Pending notices before Record drops (default: 1024)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		QueueSize:     1024,
	}
}

// Stats are the writer counters.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // Notices refused because the queue was full
}

// Writer batches alert notices into the alert_journal table.
type Writer struct {
	cfg       Config
	db        BatchSender
	sessionID uuid.UUID
	logger    *slog.Logger

	input chan noticeRow

	batch       []noticeRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
}

// noticeRow is one alert_journal row.
type noticeRow struct {
	NoticeID     uuid.UUID
	AlertID      int64
	Action       string
	Title        string
	Severity     int
	IncidentType string
	Payload      []byte
	ReceivedAt   int64 // Unix microseconds
}

// New creates a Writer. Rows are tagged with sessionID.
func New(cfg Config, db BatchSender, sessionID uuid.UUID, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Writer{
		cfg:       cfg,
		db:        db,
		sessionID: sessionID,
		logger:    logger.With("component", "journal", "session", sessionID),
		input:     make(chan noticeRow, cfg.QueueSize),
		batch:     make([]noticeRow, 0, cfg.BatchSize),
	}
}

// Record queues an accepted notice. It never blocks; a full queue drops the
// notice. Notices without an alert id are skipped.
func (w *Writer) Record(ev router.AlertEvent, env router.Envelope) {
	row, ok := transform(ev, env)
	if !ok {
		return
	}

	select {
	case w.input <- row:
	default:
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("journal queue full, notice dropped", "alert_id", row.AlertID)
	}
}

// Start begins consuming notices and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("journal started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued notices, flushes, and waits for the writer to exit.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal stop timed out")
		return ctx.Err()
	}

	w.drain()
	w.flushWith(ctx)
	w.logger.Info("journal stopped")
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case row := <-w.input:
			w.add(row)
		case <-w.flushTicker.C:
			w.flushWith(w.ctx)
		}
	}
}

// drain moves queued rows into the batch after the loop has exited.
func (w *Writer) drain() {
	for {
		select {
		case row := <-w.input:
			w.batchMu.Lock()
			w.batch = append(w.batch, row)
			w.batchMu.Unlock()
		default:
			return
		}
	}
}

func (w *Writer) add(row noticeRow) {
	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flushWith(w.ctx)
	}
}

// transform converts an accepted notice to a row.
func transform(ev router.AlertEvent, env router.Envelope) (noticeRow, bool) {
	id, ok := ev.Notice.AlertID()
	if !ok {
		return noticeRow{}, false
	}

	action := string(ev.Notice.Action)
	if action == "" {
		action = "created"
	}

	row := noticeRow{
		NoticeID:   uuid.NewSHA1(noticeNamespace, env.Raw),
		AlertID:    id,
		Action:     action,
		Title:      ev.Notice.Alert.Title,
		Severity:   ev.Notice.Alert.Severity(),
		Payload:    env.Raw,
		ReceivedAt: env.ReceivedAt.UnixMicro(),
	}
	if inc := ev.Notice.Alert.Incident; inc != nil {
		row.IncidentType = string(inc.Type)
	}
	return row, true
}

func (w *Writer) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]noticeRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed notices",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []noticeRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertNotice,
			r.NoticeID, w.sessionID, r.AlertID, r.Action, r.Title,
			r.Severity, r.IncidentType, r.Payload, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
