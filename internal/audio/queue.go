package audio

import "sync"

// Frame is one fixed-size buffer of PCM16 mono samples. The sequence
// number is assigned by the queue and is monotonic per queue, so gaps
// reveal dropped frames. Data is never mutated after enqueue.
type Frame struct {
	Seq  uint64
	Data []byte
}

// FrameQueue is a bounded lossy FIFO between the capture callback and the
// streaming session. Push never blocks: when the queue is full the oldest
// frame is evicted, keeping the most recent audio. One producer, one
// consumer.
type FrameQueue struct {
	mu      sync.Mutex
	frames  []Frame
	head    int
	count   int
	nextSeq uint64
	dropped uint64
}

const DefaultQueueCapacity = 64

func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{frames: make([]Frame, capacity)}
}

// Push enqueues a copy of data, evicting the oldest frame when full. It
// returns the number of frames dropped to admit this one (0 or 1).
func (q *FrameQueue) Push(data []byte) int {
	buf := make([]byte, len(data))
	copy(buf, data)

	q.mu.Lock()
	defer q.mu.Unlock()

	f := Frame{Seq: q.nextSeq, Data: buf}
	q.nextSeq++

	evicted := 0
	if q.count == len(q.frames) {
		q.head = (q.head + 1) % len(q.frames)
		q.count--
		q.dropped++
		evicted = 1
	}

	q.frames[(q.head+q.count)%len(q.frames)] = f
	q.count++
	return evicted
}

// Pop dequeues the oldest frame without blocking.
func (q *FrameQueue) Pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Frame{}, false
	}
	f := q.frames[q.head]
	q.frames[q.head] = Frame{}
	q.head = (q.head + 1) % len(q.frames)
	q.count--
	return f, true
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped returns the total number of frames evicted since creation.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all buffered frames.
func (q *FrameQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.frames {
		q.frames[i] = Frame{}
	}
	q.head = 0
	q.count = 0
}
