package timing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/eleven-am/dicton/internal/shared"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&TimingSession{}, &Measurement{})
}

func (s *Store) CreateSession(ctx context.Context, session *TimingSession) error {
	if session.ID == "" {
		session.ID = shared.NewID("tm_")
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(session).Error
}

// FinishSession stamps the terminal outcome. The one permitted write after
// creation; measurements themselves are never touched.
func (s *Store) FinishSession(ctx context.Context, id, outcome string, endedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&TimingSession{}).Where("id = ?", id).
		Updates(map[string]any{"outcome": outcome, "ended_at": endedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *Store) AddMeasurement(ctx context.Context, m *Measurement) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (*TimingSession, error) {
	var session TimingSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &session, err
}

func (s *Store) GetMeasurements(ctx context.Context, sessionID string) ([]*Measurement, error) {
	var measurements []*Measurement
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&measurements).Error
	return measurements, err
}

func (s *Store) RecentSessions(ctx context.Context, limit int) ([]*TimingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []*TimingSession
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

// Summary aggregates measurements per stage across all recorded sessions.
func (s *Store) Summary(ctx context.Context) ([]*StageSummary, error) {
	var summaries []*StageSummary
	err := s.db.WithContext(ctx).Model(&Measurement{}).
		Select("stage, COUNT(*) as count, AVG(duration_ms) as avg_ms, MIN(duration_ms) as min_ms, MAX(duration_ms) as max_ms").
		Group("stage").
		Order("stage").
		Find(&summaries).Error
	return summaries, err
}
