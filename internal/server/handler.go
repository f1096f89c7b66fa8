// Package server exposes the local status and diagnostics HTTP surface:
// session state, provider availability, timing summaries, and Prometheus
// metrics. It is an observer; recordings are driven by the gesture layer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/recorder"
	"github.com/eleven-am/dicton/internal/shared"
	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/timing"
)

type Handler struct {
	controller *recorder.Controller
	registry   *stt.Registry
	store      *timing.Store
	metrics    *metrics.Metrics
	machine    *hotkey.Machine
	logger     *slog.Logger
	startedAt  time.Time
}

func NewHandler(controller *recorder.Controller, registry *stt.Registry, store *timing.Store, m *metrics.Metrics, machine *hotkey.Machine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		controller: controller,
		registry:   registry,
		store:      store,
		metrics:    m,
		machine:    machine,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/status", h.Status)
	e.GET("/api/providers", h.Providers)
	e.GET("/api/timings", h.Timings)
	e.GET("/api/timings/summary", h.TimingsSummary)
	if h.machine != nil {
		h.registerGestureRoutes(e)
	}
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	})
}

type statusResponse struct {
	Recording bool    `json:"recording"`
	SessionID string  `json:"session_id,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	State     string  `json:"state,omitempty"`
	Level     float64 `json:"level"`
}

func (h *Handler) Status(c echo.Context) error {
	resp := statusResponse{}
	if s := h.controller.Current(); s != nil {
		resp.SessionID = s.ID
		resp.Mode = s.Mode.String()
		resp.State = s.State().String()
		resp.Level = s.Level()
		resp.Recording = !s.Terminal()
	}
	return c.JSON(http.StatusOK, resp)
}

type providerInfo struct {
	Name         string   `json:"name"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
}

func (h *Handler) Providers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var infos []providerInfo
	for _, name := range h.registry.Names() {
		p, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, providerInfo{
			Name:         p.Name(),
			Available:    p.Available(ctx),
			Capabilities: p.Capabilities().List(),
		})
	}
	return c.JSON(http.StatusOK, infos)
}

func (h *Handler) Timings(c echo.Context) error {
	if h.store == nil {
		return shared.NotFound("timing_disabled", "timing log is not enabled")
	}
	sessions, err := h.store.RecentSessions(c.Request().Context(), 50)
	if err != nil {
		h.logger.Error("failed to load timing sessions", "error", err)
		return shared.InternalError("timing_query_failed", "failed to load timing sessions")
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) TimingsSummary(c echo.Context) error {
	if h.store == nil {
		return shared.NotFound("timing_disabled", "timing log is not enabled")
	}
	summary, err := h.store.Summary(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to summarize timings", "error", err)
		return shared.InternalError("timing_query_failed", "failed to summarize timings")
	}
	return c.JSON(http.StatusOK, summary)
}
