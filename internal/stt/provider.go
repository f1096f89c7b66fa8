package stt

import (
	"context"

	"github.com/eleven-am/dicton/internal/audio"
)

// PartialFunc receives non-final results during streaming, in the order the
// provider emitted them.
type PartialFunc func(Result)

// Provider is the batch surface every speech-to-text backend implements.
// Transcribe takes a complete WAV buffer and returns the authoritative
// result for it.
type Provider interface {
	Name() string
	Capabilities() CapabilitySet
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, wav []byte) (*Result, error)
}

// StreamingProvider is implemented by providers that accept live audio over
// a bidirectional connection. The provider consumes src until end-of-stream
// and resolves to one final result.
type StreamingProvider interface {
	Provider
	StreamTranscribe(ctx context.Context, src *audio.Source, onPartial PartialFunc) (*Result, error)
}

// Translator is implemented by providers with native translate-while-
// transcribing support.
type Translator interface {
	Provider
	Translate(ctx context.Context, wav []byte, targetLanguage string) (*Result, error)
}

// CanStream reports whether p declares streaming support. The capability
// set is the single source of truth; it must agree with the concrete type.
func CanStream(p Provider) (StreamingProvider, bool) {
	if !p.Capabilities().Has(CapStreaming) {
		return nil, false
	}
	sp, ok := p.(StreamingProvider)
	return sp, ok
}

// CanTranslate reports whether p declares native translation support.
func CanTranslate(p Provider) (Translator, bool) {
	if !p.Capabilities().Has(CapTranslation) {
		return nil, false
	}
	tr, ok := p.(Translator)
	return tr, ok
}
