package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// LevelMeter tracks a smoothed RMS level of recent PCM16 frames. It feeds
// external visual feedback; the lock is held only for the duration of the
// update, never across I/O.
type LevelMeter struct {
	mu     sync.Mutex
	level  float64
	smooth float64
}

// NewLevelMeter creates a meter with the given smoothing factor in (0, 1];
// higher reacts faster.
func NewLevelMeter(smoothing float64) *LevelMeter {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 0.3
	}
	return &LevelMeter{smooth: smoothing}
}

// Update folds one frame into the level. Safe to call from the capture
// goroutine.
func (m *LevelMeter) Update(pcm []byte) {
	n := len(pcm) / 2
	if n == 0 {
		return
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))

	m.mu.Lock()
	m.level = m.level*(1-m.smooth) + rms*m.smooth
	m.mu.Unlock()
}

// Level returns the current smoothed level in [0, 1].
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Reset zeroes the level between sessions.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}
