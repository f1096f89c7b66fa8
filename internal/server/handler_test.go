package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/dicton/internal/bridge"
	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/metrics"
	"github.com/eleven-am/dicton/internal/recorder"
	"github.com/eleven-am/dicton/internal/stt"
	"github.com/eleven-am/dicton/internal/timing"
)

type stubProvider struct {
	name      string
	available bool
}

func (p *stubProvider) Name() string                          { return p.name }
func (p *stubProvider) Capabilities() stt.CapabilitySet       { return stt.NewCapabilitySet(stt.CapBatch) }
func (p *stubProvider) Available(ctx context.Context) bool    { return p.available }
func (p *stubProvider) Transcribe(ctx context.Context, wav []byte) (*stt.Result, error) {
	return nil, nil
}

type noopDevice struct{}

func (noopDevice) Start(onFrame func(pcm []byte)) error { return nil }
func (noopDevice) Stop() error                          { return nil }

func setupHandler(t *testing.T) *Handler {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := timing.NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	registry := stt.NewRegistry(nil)
	registry.Register(&stubProvider{name: "gladia", available: true})
	registry.Register(&stubProvider{name: "mistral", available: false})

	br := bridge.New(nil)
	t.Cleanup(br.Close)
	controller := recorder.NewController(recorder.Config{}, registry, br, noopDevice{}, nil, nil, nil)
	machine := hotkey.NewMachine(hotkey.Config{}, hotkey.Callbacks{}, nil)

	return NewHandler(controller, registry, store, metrics.New(), machine, nil)
}

func request(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := request(t, setupHandler(t), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestStatusIdle(t *testing.T) {
	rec := request(t, setupHandler(t), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Recording bool   `json:"recording"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Recording || body.SessionID != "" {
		t.Errorf("idle status = %+v, want no active session", body)
	}
}

func TestProvidersReportAvailability(t *testing.T) {
	rec := request(t, setupHandler(t), "/api/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body []struct {
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("got %d providers, want 2", len(body))
	}
	byName := map[string]bool{}
	for _, p := range body {
		byName[p.Name] = p.Available
	}
	if !byName["gladia"] || byName["mistral"] {
		t.Errorf("availability = %v", byName)
	}
}

func TestTimingsEmpty(t *testing.T) {
	rec := request(t, setupHandler(t), "/api/timings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGestureStateIdle(t *testing.T) {
	rec := request(t, setupHandler(t), "/api/gesture")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body gestureStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.State != "idle" || body.Recording {
		t.Errorf("gesture state = %+v, want idle", body)
	}
}

func TestGestureModifierValidation(t *testing.T) {
	h := setupHandler(t)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/gesture/modifier", strings.NewReader(`{"modifier":"hyper","pressed":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown modifier", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := request(t, setupHandler(t), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics body is empty")
	}
}
