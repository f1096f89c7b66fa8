// Package timing persists per-session pipeline latency measurements in an
// append-only log. Records are written once and never updated; summaries
// are computed by query.
package timing

import "time"

// TimingSession is one recorded dictation session.
type TimingSession struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Provider  string    `json:"provider"`
	Mode      string    `json:"mode"`
	Outcome   string    `json:"outcome"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Measurement is one timed pipeline stage within a session.
type Measurement struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"index" json:"session_id"`
	Stage      string    `json:"stage"`
	DurationMS float64   `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pipeline stage names recorded by the controller.
const (
	StageCapture       = "capture"
	StageTranscription = "transcription"
	StageTotal         = "total"
)

// Session outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// StageSummary aggregates one stage across sessions.
type StageSummary struct {
	Stage string  `json:"stage"`
	Count int64   `json:"count"`
	AvgMS float64 `json:"avg_ms"`
	MinMS float64 `json:"min_ms"`
	MaxMS float64 `json:"max_ms"`
}
