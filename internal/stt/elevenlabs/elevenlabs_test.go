package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eleven-am/dicton/internal/stt"
)

func testConfig() stt.Config {
	return stt.Config{APIKey: "test-key", SampleRate: 16000, Timeout: 5 * time.Second}
}

func TestTranscribeSendsScribeRequest(t *testing.T) {
	var gotKey, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech-to-text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotKey = r.Header.Get("xi-api-key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model_id")
		json.NewEncoder(w).Encode(map[string]any{
			"text":                 "hello world",
			"language_code":        "en",
			"language_probability": 0.98,
			"words": []map[string]any{
				{"text": "hello", "start": 0.0, "end": 0.4, "type": "word"},
				{"text": " ", "start": 0.4, "end": 0.5, "type": "spacing"},
				{"text": "world", "start": 0.5, "end": 0.9, "type": "word"},
			},
		})
	}))
	defer server.Close()

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	result, err := p.Transcribe(context.Background(), make([]byte, 3200))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello world" || result.Language != "en" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Words) != 2 {
		t.Fatalf("words = %+v, want spacing tokens filtered out", result.Words)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotModel != "scribe_v1" {
		t.Fatalf("model_id = %q, want default scribe_v1", gotModel)
	}
}

func TestTranscribeForwardsLanguageHint(t *testing.T) {
	var gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language_code")
		json.NewEncoder(w).Encode(map[string]any{"text": "bonjour"})
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Language = "fr"
	p := New(cfg, nil, WithBaseURL(server.URL))
	if _, err := p.Transcribe(context.Background(), make([]byte, 3200)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotLanguage != "fr" {
		t.Fatalf("language_code = %q, want fr", gotLanguage)
	}
}

func TestTranscribeEmptyTranscriptIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": ""})
	}))
	defer server.Close()

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	if _, err := p.Transcribe(context.Background(), make([]byte, 3200)); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestCapabilitiesAreBatchOnly(t *testing.T) {
	p := New(testConfig(), nil)
	if _, ok := stt.CanStream(p); ok {
		t.Fatal("elevenlabs must not declare streaming capability")
	}
	if _, ok := stt.CanTranslate(p); ok {
		t.Fatal("elevenlabs must not declare translation capability")
	}
}
