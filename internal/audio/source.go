package audio

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval balances partial-result latency against busy looping
// on an empty queue.
const DefaultPollInterval = 10 * time.Millisecond

// Source adapts a FrameQueue into a cancelable pull sequence for the
// streaming session. Next never blocks on the queue itself: an empty queue
// suspends for one poll interval and retries, so a shared worker goroutine
// is never stalled behind a blocking read.
//
// Stop ends the sequence gracefully: frames already buffered are still
// delivered, then Next reports end of sequence. Cancel discards buffered
// frames and ends the sequence immediately.
type Source struct {
	queue *FrameQueue
	poll  time.Duration

	stopOnce   sync.Once
	cancelOnce sync.Once
	stopped    chan struct{}
	cancelled  chan struct{}
}

func NewSource(queue *FrameQueue, poll time.Duration) *Source {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Source{
		queue:     queue,
		poll:      poll,
		stopped:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// Next returns the next frame, or ok=false when the sequence has ended.
// Frames are atomic units: a half-read frame is never produced.
func (s *Source) Next(ctx context.Context) (Frame, bool) {
	for {
		select {
		case <-s.cancelled:
			return Frame{}, false
		default:
		}

		if f, ok := s.queue.Pop(); ok {
			return f, true
		}

		select {
		case <-s.stopped:
			// Drained after stop.
			return Frame{}, false
		default:
		}

		select {
		case <-ctx.Done():
			return Frame{}, false
		case <-s.cancelled:
			return Frame{}, false
		case <-time.After(s.poll):
		}
	}
}

// Stop signals end of input. Buffered frames remain readable.
func (s *Source) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Cancel discards buffered frames and ends the sequence immediately.
func (s *Source) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancelled)
		s.queue.Clear()
	})
	s.Stop()
}

// Stopped reports whether end of input has been signalled.
func (s *Source) Stopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}
