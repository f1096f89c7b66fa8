// Package mistral implements batch transcription via the Mistral Voxtral
// API. Batch-only; streaming callers degrade to collect-then-transcribe.
package mistral

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
	defaultBaseURL = "https://api.mistral.ai"
	defaultModel   = "voxtral-mini-latest"

	// API limits per request.
	maxAudioDuration = 30 * time.Minute
	maxAudioSize     = 100_000_000
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
		log:     log.With("provider", "mistral"),
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "mistral" }

func (p *Provider) Capabilities() stt.CapabilitySet {
	return stt.NewCapabilitySet(stt.CapBatch, stt.CapWordTimestamps)
}

func (p *Provider) Available(ctx context.Context) bool {
	return p.cfg.APIKey != ""
}

func (p *Provider) Transcribe(ctx context.Context, wav []byte) (*stt.Result, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}
	if len(wav) > maxAudioSize {
		return nil, fmt.Errorf("audio exceeds %d byte limit", maxAudioSize)
	}
	if !audio.IsWAV(wav) {
		encoded, err := audio.EncodeWAV(wav, p.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audio: %w", err)
		}
		wav = encoded
	}
	duration, err := audio.WAVDuration(wav)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio header: %w", err)
	}
	if duration > maxAudioDuration {
		return nil, fmt.Errorf("audio duration %s exceeds %s limit", duration, maxAudioDuration)
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
	if err := writer.WriteField("model", p.cfg.Model); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	// Language hint and timestamps are mutually exclusive on this API;
	// timestamps win when no hint is configured.
	if p.cfg.Language != "" {
		if err := writer.WriteField("language", p.cfg.Language); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	} else if err := writer.WriteField("timestamp_granularities", "word"); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mistral transcription failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mistral returned %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Words    []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse mistral response: %w", err)
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("mistral returned an empty transcript")
	}

	result := &stt.Result{
		Text:     parsed.Text,
		Language: parsed.Language,
		IsFinal:  true,
		Duration: duration,
	}
	for _, w := range parsed.Words {
		result.Words = append(result.Words, stt.WordInfo{Word: w.Word, Start: w.Start, End: w.End})
	}
	return result, nil
}
