package timing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracker instruments one session at a time with start/end stage marks and
// flushes them to the store. A nil store disables tracking; every call
// becomes a no-op so callers never branch on configuration.
type Tracker struct {
	store *Store
	log   *slog.Logger

	mu        sync.Mutex
	sessionID string
	started   time.Time
	starts    map[string]time.Time
}

func NewTracker(store *Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		store:  store,
		log:    log,
		starts: make(map[string]time.Time),
	}
}

func (t *Tracker) StartSession(ctx context.Context, id, provider, mode string) {
	if t.store == nil {
		return
	}
	session := &TimingSession{ID: id, Provider: provider, Mode: mode, StartedAt: time.Now()}
	if err := t.store.CreateSession(ctx, session); err != nil {
		t.log.Warn("failed to record timing session", "error", err)
		return
	}

	t.mu.Lock()
	t.sessionID = session.ID
	t.started = session.StartedAt
	t.starts = make(map[string]time.Time)
	t.mu.Unlock()
}

func (t *Tracker) StartStage(stage string) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == "" {
		return
	}
	t.starts[stage] = time.Now()
}

func (t *Tracker) EndStage(ctx context.Context, stage string) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	start, ok := t.starts[stage]
	if ok {
		delete(t.starts, stage)
	}
	sessionID := t.sessionID
	t.mu.Unlock()
	if !ok || sessionID == "" {
		return
	}

	m := &Measurement{
		SessionID:  sessionID,
		Stage:      stage,
		DurationMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
	if err := t.store.AddMeasurement(ctx, m); err != nil {
		t.log.Warn("failed to record stage measurement", "stage", stage, "error", err)
	}
}

func (t *Tracker) EndSession(ctx context.Context, outcome string) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	sessionID := t.sessionID
	started := t.started
	t.sessionID = ""
	t.starts = make(map[string]time.Time)
	t.mu.Unlock()
	if sessionID == "" {
		return
	}

	ended := time.Now()
	total := &Measurement{
		SessionID:  sessionID,
		Stage:      StageTotal,
		DurationMS: float64(ended.Sub(started)) / float64(time.Millisecond),
	}
	if err := t.store.AddMeasurement(ctx, total); err != nil {
		t.log.Warn("failed to record total measurement", "error", err)
	}
	if err := t.store.FinishSession(ctx, sessionID, outcome, ended); err != nil {
		t.log.Warn("failed to finish timing session", "error", err)
	}
}
