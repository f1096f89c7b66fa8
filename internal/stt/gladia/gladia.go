// Package gladia implements the Gladia speech-to-text provider. It is the
// primary provider: batch transcription over REST, live transcription over
// a websocket, and native translation without a separate LLM round trip.
package gladia

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

	"github.com/gorilla/websocket"

	"github.com/eleven-am/dicton/internal/stt"
)

const (
	defaultBaseURL = "https://api.gladia.io"
	pollInterval   = time.Second
	maxPolls       = 60
)

type Provider struct {
	cfg     stt.Config
	log     *slog.Logger
	http    *http.Client
	dialer  *websocket.Dialer
	baseURL string
	drain   time.Duration
}

type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.http = c }
}

// WithDrainGrace overrides how long a live session keeps draining after
// end-of-audio before the connection is forced closed. Used by tests.
func WithDrainGrace(d time.Duration) Option {
	return func(p *Provider) { p.drain = d }
}

func New(cfg stt.Config, log *slog.Logger, opts ...Option) *Provider {
	if log == nil {
		log = slog.Default()
	}
	p := &Provider{
		cfg:     cfg,
		log:     log.With("provider", "gladia"),
		http:    &http.Client{Timeout: cfg.Timeout},
		dialer:  websocket.DefaultDialer,
		baseURL: defaultBaseURL,
		drain:   drainGrace,
	}
	if p.http.Timeout == 0 {
		p.http.Timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "gladia" }

func (p *Provider) Capabilities() stt.CapabilitySet {
	return stt.NewCapabilitySet(stt.CapBatch, stt.CapStreaming, stt.CapTranslation, stt.CapWordTimestamps)
}

func (p *Provider) Available(ctx context.Context) bool {
	return p.cfg.APIKey != ""
}

// Transcribe uploads a complete WAV buffer to the pre-recorded endpoint and
// polls the result URL until the job finishes.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (*stt.Result, error) {
	return p.upload(ctx, wav, "")
}

// Translate runs transcription with native translation enabled.
func (p *Provider) Translate(ctx context.Context, wav []byte, targetLanguage string) (*stt.Result, error) {
	return p.upload(ctx, wav, targetLanguage)
}

func (p *Provider) upload(ctx context.Context, wav []byte, targetLanguage string) (*stt.Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if targetLanguage != "" {
		cfg, _ := json.Marshal(map[string]any{
			"target_languages": []string{targetLanguage},
			"model":            "base",
		})
		if err := writer.WriteField("translation_config", string(cfg)); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/pre-recorded", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-gladia-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gladia upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gladia upload returned %d: %s", resp.StatusCode, payload)
	}

	var initial struct {
		ResultURL string `json:"result_url"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gladia response: %w", err)
	}
	if err := json.Unmarshal(raw, &initial); err != nil {
		return nil, fmt.Errorf("failed to parse gladia response: %w", err)
	}
	if initial.ResultURL != "" {
		return p.pollResult(ctx, initial.ResultURL)
	}

	// Synchronous result, not the documented v2 path but handled anyway.
	var direct batchResult
	if err := json.Unmarshal(raw, &direct); err != nil {
		return nil, fmt.Errorf("failed to parse gladia response: %w", err)
	}
	return direct.toResult()
}

func (p *Provider) pollResult(ctx context.Context, resultURL string) (*stt.Result, error) {
	for attempt := 0; attempt < maxPolls; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create poll request: %w", err)
		}
		req.Header.Set("x-gladia-key", p.cfg.APIKey)

		resp, err := p.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gladia poll failed: %w", err)
		}

		var envelope struct {
			Status string          `json:"status"`
			Error  json.RawMessage `json:"error"`
			Result batchResult     `json:"result"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to parse gladia poll response: %w", decodeErr)
		}

		switch envelope.Status {
		case "done":
			return envelope.Result.toResult()
		case "error":
			return nil, fmt.Errorf("gladia transcription failed: %s", envelope.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil, fmt.Errorf("gladia transcription did not finish after %d polls", maxPolls)
}

type batchResult struct {
	Transcription struct {
		FullTranscript string `json:"full_transcript"`
		Language       string `json:"language"`
		Utterances     []struct {
			Words []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"utterances"`
	} `json:"transcription"`
	Translation []struct {
		FullTranscript string `json:"full_transcript"`
	} `json:"translation"`
	Metadata struct {
		AudioDuration float64 `json:"audio_duration"`
	} `json:"metadata"`
}

func (b *batchResult) toResult() (*stt.Result, error) {
	if b.Transcription.FullTranscript == "" {
		return nil, fmt.Errorf("gladia returned an empty transcript")
	}

	result := &stt.Result{
		Text:     b.Transcription.FullTranscript,
		Language: b.Transcription.Language,
		IsFinal:  true,
		Duration: time.Duration(b.Metadata.AudioDuration * float64(time.Second)),
	}
	for _, utterance := range b.Transcription.Utterances {
		for _, w := range utterance.Words {
			result.Words = append(result.Words, stt.WordInfo{
				Word:       w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Confidence,
			})
		}
	}
	if len(b.Translation) > 0 {
		result.Translation = b.Translation[0].FullTranscript
	}
	return result, nil
}
