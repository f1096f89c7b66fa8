package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/stt/elevenlabs"
	"github.com/eleven-am/dicton/internal/stt/gladia"
	"github.com/eleven-am/dicton/internal/stt/mistral"
)

func ProvideRegistry(cfg *Config, log *slog.Logger) *stt.Registry {
	var opts []stt.RegistryOption
	if cfg.PreferredSTT != "" {
		opts = append(opts, stt.WithPreferred(cfg.PreferredSTT))
	}
	registry := stt.NewRegistry(log, opts...)
	registerProviders(registry, cfg, log)
	return registry
}

// registerProviders builds fresh provider instances from the current config.
// Called again by the watcher when credentials change on disk.
func registerProviders(registry *stt.Registry, cfg *Config, log *slog.Logger) {
	registry.Register(gladia.New(stt.Config{
		APIKey:     cfg.GladiaAPIKey,
		Timeout:    cfg.RequestTimeout,
		Language:   cfg.Language,
		SampleRate: cfg.SampleRate,
	}, log))

	registry.Register(mistral.New(stt.Config{
		APIKey:     cfg.MistralAPIKey,
		Model:      cfg.MistralModel,
		Timeout:    cfg.RequestTimeout,
		Language:   cfg.Language,
		SampleRate: cfg.SampleRate,
	}, log))

	registry.Register(elevenlabs.New(stt.Config{
		APIKey:     cfg.ElevenLabsAPIKey,
		Model:      cfg.ElevenLabsModel,
		Timeout:    cfg.RequestTimeout,
		Language:   cfg.Language,
		SampleRate: cfg.SampleRate,
	}, log))

	if cfg.GladiaAPIKey == "" && cfg.MistralAPIKey == "" && cfg.ElevenLabsAPIKey == "" {
		log.Warn("no speech provider credentials configured, registering null provider")
		registry.Register(stt.NewNullProvider())
	}
}

var ProvidersModule = fx.Options(
	fx.Provide(ProvideRegistry),
)
