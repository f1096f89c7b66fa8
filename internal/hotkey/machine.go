package hotkey

import (
	"log/slog"
	"sync"
	"time"
)

// State is the gesture machine state.
type State int

const (
	StateIdle State = iota
	StateKeyDown
	StateWaitingDouble
	StateRecordingPTT
	StateRecordingToggle
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyDown:
		return "key_down"
	case StateWaitingDouble:
		return "waiting_double"
	case StateRecordingPTT:
		return "recording_ptt"
	case StateRecordingToggle:
		return "recording_toggle"
	}
	return "unknown"
}

// Callbacks are invoked when a gesture resolves into a recording intent.
// They run synchronously with the machine locked, on the goroutine that
// delivered the triggering event or timer: they must not block and must
// not call back into the machine.
type Callbacks struct {
	OnStart  func(mode Mode)
	OnStop   func()
	OnCancel func()
}

// Config holds gesture timing thresholds.
type Config struct {
	// HoldThreshold distinguishes a tap from a hold. A press held longer
	// than this enters push-to-talk.
	HoldThreshold time.Duration
	// DoubleTapWindow is how long after a tap a second press still counts
	// as a double tap (toggle lock).
	DoubleTapWindow time.Duration
	// ActivationDelay is how long a press must be held before recording
	// starts. Defaults to HoldThreshold; setting it lower starts capture
	// earlier at the cost of Start/Cancel pairs on short taps.
	ActivationDelay time.Duration
	// ToggleStopOnPress stops a toggle recording on the next key press
	// instead of requiring a full short tap. The tap predicate is the
	// default; the press predicate matches older builds.
	ToggleStopOnPress bool
}

func (c Config) withDefaults() Config {
	if c.HoldThreshold <= 0 {
		c.HoldThreshold = 100 * time.Millisecond
	}
	if c.DoubleTapWindow <= 0 {
		c.DoubleTapWindow = 300 * time.Millisecond
	}
	if c.ActivationDelay <= 0 {
		c.ActivationDelay = c.HoldThreshold
	}
	return c
}

// Machine turns raw key edge events plus tracked modifier flags into
// recording intents. It holds no I/O; timers fire on their own goroutines
// and re-validate state under the mutex, so a stale timer is a no-op.
type Machine struct {
	cfg Config
	cb  Callbacks
	log *slog.Logger

	mu        sync.Mutex
	state     State
	mode      Mode
	modifiers Modifiers

	keyDownAt time.Time
	keyUpAt   time.Time

	// Advanced (modifier) modes enter toggle directly; the release of the
	// initiating press must not count as the stop tap.
	toggleFirstRelease bool

	activationTimer *time.Timer
	doubleTapTimer  *time.Timer

	now func() time.Time
}

func NewMachine(cfg Config, cb Callbacks, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		cfg:   cfg.withDefaults(),
		cb:    cb,
		log:   log,
		state: StateIdle,
		now:   time.Now,
	}
}

// SetModifier tracks a modifier key edge. Modifier state only matters at
// hotkey press time, when it is snapshotted into the recording mode.
func (m *Machine) SetModifier(mod Modifier, pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mod {
	case ModifierShift:
		m.modifiers.Shift = pressed
	case ModifierCtrl:
		m.modifiers.Ctrl = pressed
	case ModifierAlt:
		m.modifiers.Alt = pressed
	case ModifierSpace:
		m.modifiers.Space = pressed
	}
}

// HandleKeyDown processes a hotkey press edge.
func (m *Machine) HandleKeyDown() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		m.beginPress(now)

	case StateWaitingDouble:
		if now.Sub(m.keyUpAt) < m.cfg.DoubleTapWindow {
			// Second tap inside the window locks the recording.
			m.stopActivationTimer()
			m.stopDoubleTapTimer()
			m.state = StateRecordingToggle
			m.toggleFirstRelease = false
			m.keyDownAt = now
			m.emitStart(m.mode)
		} else {
			// Window expired but the timer has not fired yet.
			m.stopDoubleTapTimer()
			m.beginPress(now)
		}

	case StateRecordingToggle:
		m.keyDownAt = now
		if m.cfg.ToggleStopOnPress {
			m.state = StateIdle
			m.emitStop()
		}
	}
}

// HandleKeyUp processes a hotkey release edge.
func (m *Machine) HandleKeyUp() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateKeyDown:
		// Released before the activation timer fired: a tap.
		m.stopActivationTimer()
		m.keyUpAt = now
		m.state = StateWaitingDouble
		m.startDoubleTapTimer()

	case StateRecordingPTT:
		if now.Sub(m.keyDownAt) < m.cfg.HoldThreshold {
			// Capture started early but the press was a tap: discard
			// the audio and give the double tap a chance.
			m.keyUpAt = now
			m.state = StateWaitingDouble
			m.emitCancel()
			m.startDoubleTapTimer()
		} else {
			m.state = StateIdle
			m.emitStop()
		}

	case StateRecordingToggle:
		if m.toggleFirstRelease {
			m.toggleFirstRelease = false
			m.keyUpAt = now
			return
		}
		if m.cfg.ToggleStopOnPress {
			m.keyUpAt = now
			return
		}
		if now.Sub(m.keyDownAt) < m.cfg.HoldThreshold {
			m.state = StateIdle
			m.emitStop()
		} else {
			m.keyUpAt = now
		}
	}
}

// beginPress is called with the mutex held.
func (m *Machine) beginPress(now time.Time) {
	m.keyDownAt = now
	m.mode = ResolveMode(m.modifiers)

	if m.mode != ModeBasic {
		// Modifier modes are toggle-only: press to start, tap to stop.
		m.state = StateRecordingToggle
		m.toggleFirstRelease = true
		m.keyUpAt = now
		m.emitStart(m.mode)
		return
	}

	m.state = StateKeyDown
	m.startActivationTimer()
}

func (m *Machine) startActivationTimer() {
	m.stopActivationTimer()
	m.activationTimer = time.AfterFunc(m.cfg.ActivationDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Re-validate: a KeyUp may have raced the timer.
		if m.state != StateKeyDown {
			return
		}
		m.state = StateRecordingPTT
		m.emitStart(m.mode)
	})
}

func (m *Machine) stopActivationTimer() {
	if m.activationTimer != nil {
		m.activationTimer.Stop()
		m.activationTimer = nil
	}
}

func (m *Machine) startDoubleTapTimer() {
	m.stopDoubleTapTimer()
	m.doubleTapTimer = time.AfterFunc(m.cfg.DoubleTapWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state != StateWaitingDouble {
			return
		}
		// Lone tap: no intent.
		m.state = StateIdle
	})
}

func (m *Machine) stopDoubleTapTimer() {
	if m.doubleTapTimer != nil {
		m.doubleTapTimer.Stop()
		m.doubleTapTimer = nil
	}
}

func (m *Machine) emitStart(mode Mode) {
	m.log.Debug("gesture start", "mode", mode.String(), "state", m.state.String())
	if m.cb.OnStart != nil {
		m.cb.OnStart(mode)
	}
}

func (m *Machine) emitStop() {
	m.log.Debug("gesture stop")
	if m.cb.OnStop != nil {
		m.cb.OnStop()
	}
}

func (m *Machine) emitCancel() {
	m.log.Debug("gesture cancel")
	if m.cb.OnCancel != nil {
		m.cb.OnCancel()
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRecording reports whether a recording gesture is live.
func (m *Machine) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRecordingPTT || m.state == StateRecordingToggle
}

// CurrentMode returns the mode snapshotted at the last press.
func (m *Machine) CurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Reset returns the machine to idle, cancelling pending timers. Used when
// the controller aborts a session out from under the gesture layer.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopActivationTimer()
	m.stopDoubleTapTimer()
	m.state = StateIdle
	m.toggleFirstRelease = false
}
