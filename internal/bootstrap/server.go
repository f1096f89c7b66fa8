package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/recorder"
	"github.com/eleven-am/dicton/internal/server"
	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/timing"
)

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	return e
}

func ProvideStatusHandler(controller *recorder.Controller, registry *stt.Registry, store *timing.Store, m *metrics.Metrics, machine *hotkey.Machine, log *slog.Logger) *server.Handler {
	return server.NewHandler(controller, registry, store, m, machine, log)
}

func RegisterRoutes(e *echo.Echo, h *server.Handler) {
	h.RegisterRoutes(e)
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config, log *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
					log.Error("status server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

var ServerModule = fx.Options(
	fx.Provide(
		NewEchoServer,
		ProvideStatusHandler,
	),
	fx.Invoke(RegisterRoutes, StartServer),
)

// Run assembles the application and blocks until shutdown.
func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		InfrastructureModule,
		ProvidersModule,
		VoiceModule,
		ServerModule,
		WatcherModule,
	).Run()
}
