// Package elevenlabs implements batch transcription via the ElevenLabs
// Scribe API. Last resort in the fallback chain.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/stt"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "scribe_v1"
)

type Provider struct {
	cfg     stt.Config
	log     *slog.Logger
	http    *http.Client
	baseURL string
}

type Option func(*Provider)

func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

func New(cfg stt.Config, log *slog.Logger, opts ...Option) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	p := &Provider{
		cfg:     cfg,
		log:     log.With("provider", "elevenlabs"),
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "elevenlabs" }

func (p *Provider) Capabilities() stt.CapabilitySet {
	return stt.NewCapabilitySet(stt.CapBatch, stt.CapWordTimestamps, stt.CapDiarization)
}

func (p *Provider) Available(ctx context.Context) bool {
	return p.cfg.APIKey != ""
}

func (p *Provider) Transcribe(ctx context.Context, wav []byte) (*stt.Result, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}
	if !audio.IsWAV(wav) {
		encoded, err := audio.EncodeWAV(wav, p.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audio: %w", err)
		}
		wav = encoded
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.WriteField("model_id", p.cfg.Model); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if p.cfg.Language != "" {
		if err := writer.WriteField("language_code", p.cfg.Language); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/speech-to-text", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs transcription failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs returned %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Text                string  `json:"text"`
		LanguageCode        string  `json:"language_code"`
		LanguageProbability float64 `json:"language_probability"`
		Words               []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Type  string  `json:"type"`
		} `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse elevenlabs response: %w", err)
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("elevenlabs returned an empty transcript")
	}

	result := &stt.Result{
		Text:       parsed.Text,
		Language:   parsed.LanguageCode,
		Confidence: parsed.LanguageProbability,
		IsFinal:    true,
	}
	if d, err := audio.WAVDuration(wav); err == nil {
		result.Duration = d
	}
	for _, w := range parsed.Words {
		// Scribe interleaves word and spacing tokens.
		if w.Type != "word" {
			continue
		}
		result.Words = append(result.Words, stt.WordInfo{Word: w.Text, Start: w.Start, End: w.End})
	}
	return result, nil
}
