package stt

import (
	"context"

	"github.com/eleven-am/dicton/internal/shared"
)

// NullProvider stands in when no backend has credentials. It reports itself
// available so a session can still run end to end; transcription degrades to
// "no transcription produced" instead of an empty registry error.
type NullProvider struct{}

func NewNullProvider() *NullProvider { return &NullProvider{} }

func (n *NullProvider) Name() string { return "null" }

func (n *NullProvider) Capabilities() CapabilitySet { return NewCapabilitySet() }

func (n *NullProvider) Available(ctx context.Context) bool { return true }

func (n *NullProvider) Transcribe(ctx context.Context, wav []byte) (*Result, error) {
	return nil, shared.ErrNoProvider
}
