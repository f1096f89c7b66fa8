package gladia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/dicton/internal/stt"
)

func testConfig() stt.Config {
	return stt.Config{APIKey: "test-key", SampleRate: 16000, Timeout: 5 * time.Second}
}

func TestTranscribeUploadsAndPolls(t *testing.T) {
	var sawKey, sawPoll bool
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v2/pre-recorded", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-gladia-key") == "test-key" {
			sawKey = true
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("missing audio part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"result_url": server.URL + "/v2/pre-recorded/result",
		})
	})
	mux.HandleFunc("/v2/pre-recorded/result", func(w http.ResponseWriter, r *http.Request) {
		sawPoll = true
		json.NewEncoder(w).Encode(map[string]any{
			"status": "done",
			"result": map[string]any{
				"transcription": map[string]any{
					"full_transcript": "hello world",
					"language":        "en",
				},
				"metadata": map[string]any{"audio_duration": 1.5},
			},
		})
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	result, err := p.Transcribe(context.Background(), []byte("RIFFfakewav"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("text = %q, want hello world", result.Text)
	}
	if result.Language != "en" || !result.IsFinal {
		t.Fatalf("unexpected result metadata: %+v", result)
	}
	if result.Duration != 1500*time.Millisecond {
		t.Fatalf("duration = %v, want 1.5s", result.Duration)
	}
	if !sawKey || !sawPoll {
		t.Fatalf("sawKey=%v sawPoll=%v, want both", sawKey, sawPoll)
	}
}

func TestTranslateSendsTranslationConfig(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v2/pre-recorded", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		cfg := r.FormValue("translation_config")
		if !strings.Contains(cfg, `"fr"`) {
			t.Errorf("translation_config = %q, want target fr", cfg)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transcription": map[string]any{"full_transcript": "bonjour"},
			"translation":   []map[string]any{{"full_transcript": "hello"}},
		})
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	result, err := p.Translate(context.Background(), []byte("RIFFfakewav"), "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if result.Text != "bonjour" || result.Translation != "hello" {
		t.Fatalf("result = %+v, want text bonjour translation hello", result)
	}
}

func TestTranscribeReportsJobError(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v2/pre-recorded", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"result_url": server.URL + "/v2/pre-recorded/result",
		})
	})
	mux.HandleFunc("/v2/pre-recorded/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"error":  map[string]string{"message": "unsupported audio"},
		})
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	if _, err := p.Transcribe(context.Background(), []byte("RIFFfakewav")); err == nil {
		t.Fatal("expected error for failed transcription job")
	}
}

func TestAvailableRequiresAPIKey(t *testing.T) {
	p := New(stt.Config{}, nil)
	if p.Available(context.Background()) {
		t.Fatal("provider without API key reported available")
	}
	if !New(testConfig(), nil).Available(context.Background()) {
		t.Fatal("provider with API key reported unavailable")
	}
}

func TestCapabilitiesIncludeStreaming(t *testing.T) {
	p := New(testConfig(), nil)
	if _, ok := stt.CanStream(p); !ok {
		t.Fatal("gladia must declare streaming capability")
	}
	if _, ok := stt.CanTranslate(p); !ok {
		t.Fatal("gladia must declare translation capability")
	}
}
