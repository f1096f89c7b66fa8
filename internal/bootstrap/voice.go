package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/bridge"
	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/recorder"
	"github.com/eleven-am/dicton/internal/shared"
	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/timing"
)

func ProvideBridge(lc fx.Lifecycle, log *slog.Logger) *bridge.Bridge {
	b := bridge.New(log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			b.Close()
			return nil
		},
	})
	return b
}

func ProvideDevice(cfg *Config, log *slog.Logger) audio.Device {
	return audio.NewCommandDevice(audio.CaptureConfig{
		Command:    cfg.CaptureCommand,
		SampleRate: cfg.SampleRate,
	}, log)
}

func ProvideController(cfg *Config, registry *stt.Registry, br *bridge.Bridge, device audio.Device, m *metrics.Metrics, tracker *timing.Tracker, log *slog.Logger) *recorder.Controller {
	return recorder.NewController(recorder.Config{
		QueueCapacity:  cfg.QueueCapacity,
		SampleRate:     cfg.SampleRate,
		SessionTimeout: cfg.SessionTimeout,
		TargetLanguage: cfg.TargetLanguage,
	}, registry, br, device, m, tracker, log)
}

// ProvideMachine wires the gesture state machine to the controller. The
// machine's callbacks run under its mutex, so each one hands off to a
// goroutine immediately.
func ProvideMachine(cfg *Config, controller *recorder.Controller, log *slog.Logger) *hotkey.Machine {
	callbacks := hotkey.Callbacks{
		OnStart: func(mode hotkey.Mode) {
			go runDictation(controller, mode, log)
		},
		OnStop: func() {
			go controller.Stop()
		},
		OnCancel: func() {
			go controller.Cancel()
		},
	}
	return hotkey.NewMachine(hotkey.Config{
		HoldThreshold:   cfg.HoldThreshold,
		DoubleTapWindow: cfg.DoubleTapWindow,
	}, callbacks, log)
}

// runDictation is the OnStart path: one full capture-and-transcribe
// session. The final text goes to the downstream text pipeline; here that
// boundary is the log.
func runDictation(controller *recorder.Controller, mode hotkey.Mode, log *slog.Logger) {
	result, err := controller.StreamTranscribe(context.Background(), mode, func(r stt.Result) {
		log.Debug("partial transcript", "text", r.Text)
	})
	switch {
	case errors.Is(err, shared.ErrCancelled):
		log.Info("dictation cancelled")
	case errors.Is(err, shared.ErrNoSpeech):
		log.Info("no speech detected")
	case err != nil:
		log.Error("dictation failed", "mode", mode.String(), "error", err)
	default:
		log.Info("dictation complete", "mode", mode.String(), "text", result.Text)
	}
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideBridge,
		ProvideDevice,
		ProvideController,
		ProvideMachine,
	),
)
