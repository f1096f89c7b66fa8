package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/hotkey"
)

// SessionState is the lifecycle of one recording session. A session is
// created running, transitions to exactly one terminal state, and is then
// discarded, never reused.
type SessionState int

const (
	SessionRunning SessionState = iota
	SessionCompleted
	SessionCancelled
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionCompleted:
		return "completed"
	case SessionCancelled:
		return "cancelled"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the live unit of work: one capture queue, one audio source,
// one pending network exchange. The buffer keeps every captured frame so
// batch providers and batch-eligible retries can replay the full audio
// even after the lossy queue has evicted frames.
type Session struct {
	ID        string
	Mode      hotkey.Mode
	StartedAt time.Time

	queue  *audio.FrameQueue
	source *audio.Source
	level  *audio.LevelMeter

	mu        sync.Mutex
	state     SessionState
	buffer    []byte
	cancelled bool

	doneOnce sync.Once
	done     chan struct{}
}

func newSession(mode hotkey.Mode, queueCapacity int, poll time.Duration) *Session {
	queue := audio.NewFrameQueue(queueCapacity)
	return &Session{
		ID:        "ses_" + uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
		queue:     queue,
		source:    audio.NewSource(queue, poll),
		level:     audio.NewLevelMeter(0),
		state:     SessionRunning,
		done:      make(chan struct{}),
	}
}

// ingest is the capture callback path. Runs on the audio device thread;
// it must stay non-blocking. Returns the number of frames evicted.
func (s *Session) ingest(pcm []byte) int {
	s.mu.Lock()
	if s.state != SessionRunning || s.cancelled {
		s.mu.Unlock()
		return 0
	}
	s.buffer = append(s.buffer, pcm...)
	s.mu.Unlock()

	s.level.Update(pcm)
	return s.queue.Push(pcm)
}

// Audio returns a copy of everything captured so far.
func (s *Session) Audio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buffer))
	copy(out, s.buffer)
	return out
}

func (s *Session) Level() float64 {
	return s.level.Level()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Terminal() bool {
	return s.State() != SessionRunning
}

func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// stop signals end of audio. Buffered frames remain drainable.
func (s *Session) stop() {
	s.source.Stop()
	s.doneOnce.Do(func() { close(s.done) })
}

// cancel discards buffered audio and ends the session immediately.
func (s *Session) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.buffer = nil
	s.mu.Unlock()

	s.source.Cancel()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) finish(state SessionState) {
	s.mu.Lock()
	if s.state == SessionRunning {
		s.state = state
	}
	s.mu.Unlock()
}

// Done closes when end of audio has been signalled by stop or cancel.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
