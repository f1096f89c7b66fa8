package gladia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eleven-am/dicton/internal/audio"
	"github.com/eleven-am/dicton/internal/stt"
)

// newStreamServer stands in for the live API: it answers the session init
// and hands the upgraded websocket to handle, which runs the remote side.
func newStreamServer(t *testing.T, handle func(conn *websocket.Conn, chunks []string)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/v2/live", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v2/live/session"
		json.NewEncoder(w).Encode(map[string]string{"url": wsURL})
	})
	mux.HandleFunc("/v2/live/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Consume all audio first, exactly like a batch-style remote that
		// only answers once the stream has ended.
		var chunks []string
		for {
			var msg struct {
				Type string `json:"type"`
				Data struct {
					Chunk string `json:"chunk"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "stop_recording" {
				break
			}
			if msg.Type == "audio_chunk" {
				chunks = append(chunks, msg.Data.Chunk)
			}
		}
		handle(conn, chunks)
	})
	return server
}

func transcriptMsg(text string, isFinal bool) map[string]any {
	return map[string]any{
		"type": "transcript",
		"data": map[string]any{
			"is_final": isFinal,
			"utterance": map[string]any{
				"text":       text,
				"language":   "en",
				"confidence": 0.9,
			},
		},
	}
}

func stoppedSource(frames ...[]byte) *audio.Source {
	q := audio.NewFrameQueue(audio.DefaultQueueCapacity)
	for _, f := range frames {
		q.Push(f)
	}
	src := audio.NewSource(q, time.Millisecond)
	src.Stop()
	return src
}

func TestStreamPartialsInOrderThenFinal(t *testing.T) {
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		conn.WriteJSON(transcriptMsg("hel", false))
		conn.WriteJSON(transcriptMsg("hello", false))
		conn.WriteJSON(map[string]any{
			"type": "post_final_transcript",
			"data": map[string]any{"full_transcript": "hello world"},
		})
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))

	var partials []string
	result, err := p.StreamTranscribe(context.Background(), stoppedSource([]byte("pcm")), func(r stt.Result) {
		partials = append(partials, r.Text)
	})
	if err != nil {
		t.Fatalf("StreamTranscribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("final text = %q, want hello world (not concatenated messages)", result.Text)
	}
	if len(partials) != 2 || partials[0] != "hel" || partials[1] != "hello" {
		t.Fatalf("partials = %v, want [hel hello] in order", partials)
	}
}

func TestStreamBatchStyleRemoteDoesNotDeadlock(t *testing.T) {
	// Remote that emits nothing until the whole stream is consumed.
	var received atomic.Int32
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		received.Store(int32(len(chunks)))
		conn.WriteJSON(transcriptMsg("hello world", true))
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))

	done := make(chan struct{})
	var result *stt.Result
	var err error
	go func() {
		defer close(done)
		result, err = p.StreamTranscribe(context.Background(), stoppedSource(
			[]byte("one"), []byte("two"), []byte("three"),
		), nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("streaming session deadlocked against batch-style remote")
	}
	if err != nil {
		t.Fatalf("StreamTranscribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("text = %q, want hello world", result.Text)
	}
	if got := received.Load(); got != 3 {
		t.Fatalf("remote received %d chunks, want 3", got)
	}
}

func TestStreamJoinsDiscreteFinals(t *testing.T) {
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		conn.WriteJSON(transcriptMsg("hello", true))
		conn.WriteJSON(transcriptMsg("world", true))
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	result, err := p.StreamTranscribe(context.Background(), stoppedSource([]byte("pcm")), nil)
	if err != nil {
		t.Fatalf("StreamTranscribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("text = %q, want joined finals", result.Text)
	}
}

func TestStreamSilentRemoteResolvesAfterDrainGrace(t *testing.T) {
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		conn.WriteJSON(transcriptMsg("hello world", true))
		// Keep the connection open; the session must not depend on the
		// remote closing it.
		time.Sleep(3 * time.Second)
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL), WithDrainGrace(150*time.Millisecond))

	done := make(chan struct{})
	var result *stt.Result
	var err error
	go func() {
		defer close(done)
		result, err = p.StreamTranscribe(context.Background(), stoppedSource([]byte("pcm")), nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session hung on a remote that never closes")
	}
	if err != nil {
		t.Fatalf("StreamTranscribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("text = %q, want hello world", result.Text)
	}
}

func TestStreamErrorMessageAbortsSession(t *testing.T) {
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		conn.WriteJSON(map[string]any{
			"type": "error",
			"data": map[string]any{"message": "quota exceeded"},
		})
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	if _, err := p.StreamTranscribe(context.Background(), stoppedSource([]byte("pcm")), nil); err == nil {
		t.Fatal("expected error from remote error message")
	}
}

func TestStreamMalformedPartialIgnored(t *testing.T) {
	server := newStreamServer(t, func(conn *websocket.Conn, chunks []string) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(transcriptMsg("hello", true))
	})

	p := New(testConfig(), nil, WithBaseURL(server.URL))
	result, err := p.StreamTranscribe(context.Background(), stoppedSource([]byte("pcm")), nil)
	if err != nil {
		t.Fatalf("StreamTranscribe: %v", err)
	}
	if result.Text != "hello" {
		t.Fatalf("text = %q, want hello", result.Text)
	}
}
