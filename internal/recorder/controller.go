// Package recorder orchestrates capture, streaming transcription, and
// provider fallback behind a small synchronous surface consumed by the
// gesture layer and the status server.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/bridge"
	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/shared"
	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/timing"
)

type Config struct {
	QueueCapacity  int
	PollInterval   time.Duration
	SampleRate     int
	SessionTimeout time.Duration
	TargetLanguage string
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = audio.DefaultQueueCapacity
	}
	if c.PollInterval <= 0 {
		c.PollInterval = audio.DefaultPollInterval
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 120 * time.Second
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "en"
	}
	return c
}

// Controller enforces the single-session invariant: at most one non-terminal
// session exists at any time. All streaming exchanges run on the shared
// bridge worker, which serializes them.
type Controller struct {
	cfg      Config
	log      *slog.Logger
	registry *stt.Registry
	bridge   *bridge.Bridge
	device   audio.Device
	metrics  *metrics.Metrics
	tracker  *timing.Tracker

	mu      sync.Mutex
	current *Session
}

func NewController(cfg Config, registry *stt.Registry, br *bridge.Bridge, device audio.Device, m *metrics.Metrics, tracker *timing.Tracker, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if tracker == nil {
		tracker = timing.NewTracker(nil, log)
	}
	return &Controller{
		cfg:      cfg.withDefaults(),
		log:      log,
		registry: registry,
		bridge:   br,
		device:   device,
		metrics:  m,
		tracker:  tracker,
	}
}

// Current returns the active session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) begin(ctx context.Context, mode hotkey.Mode) (*Session, error) {
	c.mu.Lock()
	if c.current != nil && !c.current.Terminal() {
		c.mu.Unlock()
		return nil, shared.ErrSessionActive
	}
	s := newSession(mode, c.cfg.QueueCapacity, c.cfg.PollInterval)
	c.current = s
	c.mu.Unlock()

	if err := c.device.Start(func(pcm []byte) {
		evicted := s.ingest(pcm)
		if c.metrics != nil {
			c.metrics.RecordFrame(evicted, s.queue.Len())
			c.metrics.AudioLevel.Set(s.Level())
		}
	}); err != nil {
		s.finish(SessionFailed)
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	c.tracker.StartSession(ctx, s.ID, "", s.Mode.String())
	c.tracker.StartStage(timing.StageCapture)
	if c.metrics != nil {
		c.metrics.RecordSessionStart()
	}
	c.log.Info("recording started", "session", s.ID, "mode", s.Mode.String())
	return s, nil
}

// Stop signals end of audio for the active session. Any pending network
// exchange keeps running; its caller resolves the final transcript.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return
	}

	// Release the device even when the session already reached a terminal
	// state, so the next session can start capture.
	if err := c.device.Stop(); err != nil {
		c.log.Warn("capture stop failed", "error", err)
	}
	if s.Terminal() {
		return
	}
	s.stop()
	c.tracker.EndStage(context.Background(), timing.StageCapture)
	c.tracker.StartStage(timing.StageTranscription)
	c.log.Info("recording stopped", "session", s.ID)
}

// Cancel discards the active session: buffered audio is dropped and no
// transcript is waited for.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return
	}

	if err := c.device.Stop(); err != nil {
		c.log.Warn("capture stop failed", "error", err)
	}
	if s.Terminal() {
		return
	}
	s.cancel()
	c.log.Info("recording cancelled", "session", s.ID)
}

// Record captures audio until Stop or Cancel and returns the raw PCM.
// Cancellation returns shared.ErrCancelled, which callers treat as a
// silent discard rather than a failure.
func (c *Controller) Record(ctx context.Context, mode hotkey.Mode) ([]byte, error) {
	s, err := c.begin(ctx, mode)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.Cancel()
		c.end(ctx, s, SessionCancelled)
		return nil, ctx.Err()
	case <-s.Done():
	}

	if s.Cancelled() {
		c.end(ctx, s, SessionCancelled)
		return nil, shared.ErrCancelled
	}

	pcm := s.Audio()
	c.end(ctx, s, SessionCompleted)
	return pcm, nil
}

// StreamTranscribe runs a full dictation session: capture starts now,
// audio streams to the selected provider while it is being recorded, and
// the call resolves to the final transcript once Stop is called. Providers
// without streaming capability degrade to collect-then-batch transparently.
func (c *Controller) StreamTranscribe(ctx context.Context, mode hotkey.Mode, onPartial stt.PartialFunc) (*stt.Result, error) {
	s, err := c.begin(ctx, mode)
	if err != nil {
		return nil, err
	}

	provider, err := c.registry.GetWithFallback(ctx)
	if err != nil {
		c.Cancel()
		c.end(ctx, s, SessionFailed)
		return nil, err
	}

	partial := onPartial
	if c.metrics != nil && onPartial != nil {
		partial = func(r stt.Result) {
			c.metrics.RecordPartial()
			onPartial(r)
		}
	}

	sp, streaming := stt.CanStream(provider)
	if !streaming {
		return c.streamAsBatch(ctx, s, provider)
	}

	future, err := c.bridge.Submit("stream_transcribe", func(taskCtx context.Context) (any, error) {
		return sp.StreamTranscribe(taskCtx, s.source, partial)
	})
	if err != nil {
		c.Cancel()
		c.end(ctx, s, SessionFailed)
		return nil, err
	}

	started := time.Now()
	value, err := future.Wait(c.cfg.SessionTimeout)
	if errors.Is(err, shared.ErrTimeout) {
		future.Cancel()
	}

	if s.Cancelled() {
		c.end(ctx, s, SessionCancelled)
		return nil, shared.ErrCancelled
	}
	if err != nil {
		// Mid-stream failure: partially sent audio cannot be replayed on
		// another streaming connection, so no silent retry here. The user
		// may still be recording; stop capture so the next session can
		// start fresh.
		if c.metrics != nil {
			c.metrics.RecordProviderError(provider.Name())
		}
		c.Cancel()
		c.end(ctx, s, SessionFailed)
		return nil, fmt.Errorf("streaming transcription failed: %w", err)
	}

	result := value.(*stt.Result)
	if c.metrics != nil {
		c.metrics.RecordTranscription(provider.Name(), time.Since(started).Seconds())
	}
	return c.resolve(ctx, s, result)
}

// streamAsBatch collects the whole session and issues one batch request
// once audio ends.
func (c *Controller) streamAsBatch(ctx context.Context, s *Session, provider stt.Provider) (*stt.Result, error) {
	select {
	case <-ctx.Done():
		c.Cancel()
		c.end(ctx, s, SessionCancelled)
		return nil, ctx.Err()
	case <-s.Done():
	}

	if s.Cancelled() {
		c.end(ctx, s, SessionCancelled)
		return nil, shared.ErrCancelled
	}

	result, err := c.batchTranscribe(ctx, provider, s.Audio())
	if err != nil {
		c.end(ctx, s, SessionFailed)
		return nil, err
	}
	return c.resolve(ctx, s, result)
}

// Transcribe runs one batch request over the fallback chain. A failed
// provider is marked unavailable and the request is retried once against
// the next provider in the order; batch retries are safe because the full
// audio is still in hand.
func (c *Controller) Transcribe(ctx context.Context, pcm []byte) (*stt.Result, error) {
	provider, err := c.registry.GetWithFallback(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.batchTranscribe(ctx, provider, pcm)
	if err != nil {
		return nil, err
	}
	return c.filterResult(result)
}

func (c *Controller) batchTranscribe(ctx context.Context, provider stt.Provider, pcm []byte) (*stt.Result, error) {
	if len(pcm) == 0 {
		return nil, shared.ErrNoSpeech
	}
	wav, err := audio.EncodeWAV(pcm, c.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := provider.Transcribe(ctx, wav)
	if err == nil {
		if c.metrics != nil {
			c.metrics.RecordTranscription(provider.Name(), time.Since(started).Seconds())
		}
		return result, nil
	}

	c.log.Warn("batch transcription failed, trying next provider", "provider", provider.Name(), "error", err)
	if c.metrics != nil {
		c.metrics.RecordProviderError(provider.Name())
	}
	c.registry.MarkUnavailable(provider.Name())

	next, nextErr := c.registry.Next(ctx, provider.Name())
	if nextErr != nil {
		return nil, fmt.Errorf("transcription failed with %s: %w", provider.Name(), err)
	}
	if c.metrics != nil {
		c.metrics.RecordFallback()
	}

	result, err = next.Transcribe(ctx, wav)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordProviderError(next.Name())
		}
		return nil, fmt.Errorf("transcription failed with fallback %s: %w", next.Name(), err)
	}
	if c.metrics != nil {
		c.metrics.RecordTranscription(next.Name(), time.Since(started).Seconds())
	}
	return result, nil
}

// Translate transcribes and translates in one call via the first available
// provider with native translation.
func (c *Controller) Translate(ctx context.Context, pcm []byte) (*stt.Result, error) {
	if len(pcm) == 0 {
		return nil, shared.ErrNoSpeech
	}
	wav, err := audio.EncodeWAV(pcm, c.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	for _, name := range c.registry.Names() {
		provider, err := c.registry.Get(name)
		if err != nil {
			continue
		}
		tr, ok := stt.CanTranslate(provider)
		if !ok || !provider.Available(ctx) {
			continue
		}
		result, err := tr.Translate(ctx, wav, c.cfg.TargetLanguage)
		if err != nil {
			c.log.Warn("translation failed", "provider", name, "error", err)
			continue
		}
		return c.filterResult(result)
	}
	return nil, shared.ErrNoProvider
}

func (c *Controller) resolve(ctx context.Context, s *Session, result *stt.Result) (*stt.Result, error) {
	filtered, err := c.filterResult(result)
	if err != nil {
		c.end(ctx, s, SessionCompleted)
		return nil, err
	}
	c.end(ctx, s, SessionCompleted)
	return filtered, nil
}

func (c *Controller) filterResult(result *stt.Result) (*stt.Result, error) {
	if result == nil {
		return nil, shared.ErrNoSpeech
	}
	text := filterNoise(result.Text)
	if text == "" {
		return nil, shared.ErrNoSpeech
	}
	out := *result
	out.Text = text
	return &out, nil
}

func (c *Controller) end(ctx context.Context, s *Session, state SessionState) {
	s.finish(state)
	c.tracker.EndStage(ctx, timing.StageTranscription)

	var outcome string
	switch state {
	case SessionCompleted:
		outcome = timing.OutcomeCompleted
	case SessionCancelled:
		outcome = timing.OutcomeCancelled
	default:
		outcome = timing.OutcomeFailed
	}
	c.tracker.EndSession(ctx, outcome)
	if c.metrics != nil {
		c.metrics.RecordSessionEnd(outcome, time.Since(s.StartedAt).Seconds())
	}
}
