package timing

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/dicton/internal/shared"
)

func setupTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestStore_SessionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &TimingSession{Provider: "gladia", Mode: "basic"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated session ID")
	}

	ended := time.Now()
	if err := store.FinishSession(ctx, session.ID, OutcomeCompleted, ended); err != nil {
		t.Fatalf("FinishSession() error = %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", got.Outcome)
	}
}

func TestStore_FinishUnknownSession(t *testing.T) {
	store := setupTestStore(t)
	err := store.FinishSession(context.Background(), "tm_missing", OutcomeFailed, time.Now())
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("FinishSession() error = %v, want ErrNotFound", err)
	}
}

func TestStore_MeasurementsOrdered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &TimingSession{Provider: "gladia"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	stages := []string{StageCapture, StageTranscription, StageTotal}
	for i, stage := range stages {
		m := &Measurement{SessionID: session.ID, Stage: stage, DurationMS: float64(i+1) * 10}
		if err := store.AddMeasurement(ctx, m); err != nil {
			t.Fatalf("AddMeasurement(%s) error = %v", stage, err)
		}
	}

	got, err := store.GetMeasurements(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetMeasurements() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d measurements, want 3", len(got))
	}
	for i, stage := range stages {
		if got[i].Stage != stage {
			t.Errorf("measurement %d stage = %q, want %q", i, got[i].Stage, stage)
		}
	}
}

func TestStore_Summary(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &TimingSession{Provider: "gladia"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	for _, d := range []float64{10, 20, 30} {
		m := &Measurement{SessionID: session.ID, Stage: StageTranscription, DurationMS: d}
		if err := store.AddMeasurement(ctx, m); err != nil {
			t.Fatalf("AddMeasurement() error = %v", err)
		}
	}

	summaries, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	s := summaries[0]
	if s.Stage != StageTranscription || s.Count != 3 {
		t.Errorf("summary = %+v", s)
	}
	if s.AvgMS != 20 || s.MinMS != 10 || s.MaxMS != 30 {
		t.Errorf("aggregates = avg %v min %v max %v", s.AvgMS, s.MinMS, s.MaxMS)
	}
}

func TestTracker_RecordsStagesAndOutcome(t *testing.T) {
	store := setupTestStore(t)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	tracker.StartSession(ctx, "tm_test", "gladia", "basic")
	tracker.StartStage(StageTranscription)
	time.Sleep(5 * time.Millisecond)
	tracker.EndStage(ctx, StageTranscription)
	tracker.EndSession(ctx, OutcomeCompleted)

	session, err := store.GetSession(ctx, "tm_test")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", session.Outcome)
	}

	measurements, err := store.GetMeasurements(ctx, "tm_test")
	if err != nil {
		t.Fatalf("GetMeasurements() error = %v", err)
	}
	if len(measurements) != 2 {
		t.Fatalf("got %d measurements, want stage + total", len(measurements))
	}
	if measurements[0].Stage != StageTranscription || measurements[0].DurationMS <= 0 {
		t.Errorf("stage measurement = %+v", measurements[0])
	}
	if measurements[1].Stage != StageTotal {
		t.Errorf("final measurement stage = %q, want total", measurements[1].Stage)
	}
}

func TestTracker_DisabledWithoutStore(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()

	// Every call must be a safe no-op.
	tracker.StartSession(ctx, "tm_x", "gladia", "basic")
	tracker.StartStage(StageCapture)
	tracker.EndStage(ctx, StageCapture)
	tracker.EndSession(ctx, OutcomeFailed)
}
