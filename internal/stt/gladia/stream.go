package gladia

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/stt"
)

// drainGrace bounds how long the receiver keeps draining after end-of-audio
// has been sent, in case the remote never closes the connection.
const drainGrace = 10 * time.Second

type liveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type transcriptData struct {
	IsFinal   bool `json:"is_final"`
	Utterance struct {
		Text       string  `json:"text"`
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	} `json:"utterance"`
}

// StreamTranscribe drives a live session: init over REST for a session URL,
// then a websocket with a sender forwarding frames from src and a receiver
// parsing transcripts. The two run concurrently so socket reads are never
// starved while audio is being pulled. It resolves to the consolidated
// post-session transcript, or, absent one, the joined final utterances.
func (p *Provider) StreamTranscribe(ctx context.Context, src *audio.Source, onPartial stt.PartialFunc) (*stt.Result, error) {
	wsURL, err := p.initLive(ctx, onPartial != nil)
	if err != nil {
		return nil, err
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gladia websocket dial failed: %w", err)
	}
	defer conn.Close()

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watchdog: unblocks the receiver when the caller abandons the session,
	// or when the remote keeps the connection open past the drain grace
	// after end-of-audio. Close may run concurrently with the read loop;
	// read deadlines may not.
	audioDone := make(chan struct{})
	go func() {
		select {
		case <-sendCtx.Done():
		case <-audioDone:
			select {
			case <-sendCtx.Done():
			case <-time.After(p.drain):
				conn.Close()
				return
			}
		}
		if ctx.Err() != nil {
			conn.Close()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sendAudio(sendCtx, conn, src)
		close(audioDone)
	}()

	result, recvErr := p.receive(conn, onPartial)
	// A receiver that bailed on a stream error must not leave the sender
	// pulling frames until the session timeout.
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if result == nil && recvErr != nil {
		return nil, recvErr
	}
	if result == nil {
		return nil, fmt.Errorf("gladia stream ended without a final transcript")
	}
	return result, nil
}

func (p *Provider) initLive(ctx context.Context, wantPartials bool) (string, error) {
	languages := []string{}
	codeSwitching := true
	if p.cfg.Language != "" {
		languages = []string{p.cfg.Language}
		codeSwitching = false
	}

	payload := map[string]any{
		"encoding":    "wav/pcm",
		"sample_rate": p.cfg.SampleRate,
		"bit_depth":   16,
		"channels":    1,
		"language_config": map[string]any{
			"languages":      languages,
			"code_switching": codeSwitching,
		},
		"realtime_processing": map[string]any{
			"words_accurate_timestamps": true,
		},
		"messages_config": map[string]any{
			"receive_partial_transcripts": wantPartials,
			"receive_final_transcripts":   true,
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/live", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create live init request: %w", err)
	}
	req.Header.Set("x-gladia-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gladia live init failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gladia live init returned %d: %s", resp.StatusCode, payload)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to parse live init response: %w", err)
	}
	if session.URL == "" {
		return "", fmt.Errorf("gladia live init returned no session url")
	}
	return session.URL, nil
}

// sendAudio forwards frames until the source ends, then signals end-of-audio
// to the remote.
func (p *Provider) sendAudio(ctx context.Context, conn *websocket.Conn, src *audio.Source) {
	for {
		frame, ok := src.Next(ctx)
		if !ok {
			break
		}
		msg := map[string]any{
			"type": "audio_chunk",
			"data": map[string]any{
				"chunk": base64.StdEncoding.EncodeToString(frame.Data),
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			p.log.Debug("audio send failed", "error", err)
			break
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "stop_recording"}); err != nil {
		p.log.Debug("stop message failed", "error", err)
	}
}

func (p *Provider) receive(conn *websocket.Conn, onPartial stt.PartialFunc) (*stt.Result, error) {
	var finals []string
	var consolidated *stt.Result

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Remote close or drain watchdog; resolve with what we have.
			break
		}

		var msg liveMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			p.log.Debug("unparseable stream message ignored", "error", err)
			continue
		}

		switch msg.Type {
		case "transcript":
			var data transcriptData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				p.log.Debug("malformed transcript ignored", "error", err)
				continue
			}
			if data.Utterance.Text == "" {
				continue
			}
			if data.IsFinal {
				finals = append(finals, data.Utterance.Text)
			} else if onPartial != nil {
				onPartial(stt.Result{
					Text:       data.Utterance.Text,
					Language:   data.Utterance.Language,
					Confidence: data.Utterance.Confidence,
					IsFinal:    false,
				})
			}

		case "post_final_transcript":
			var data struct {
				FullTranscript string `json:"full_transcript"`
			}
			if err := json.Unmarshal(msg.Data, &data); err == nil && data.FullTranscript != "" {
				consolidated = &stt.Result{Text: data.FullTranscript, IsFinal: true}
			}

		case "error":
			return nil, fmt.Errorf("gladia stream error: %s", msg.Data)
		}
	}

	if consolidated != nil {
		return consolidated, nil
	}
	if len(finals) > 0 {
		return &stt.Result{Text: strings.TrimSpace(strings.Join(finals, " ")), IsFinal: true}, nil
	}
	return nil, nil
}
