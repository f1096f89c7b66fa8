package stt

import (
	"sort"
	"time"
)

// Capability is one fixed operation class a provider supports. Capability
// sets are static per provider and declared at construction; dispatch never
// probes a provider at runtime to discover what it can do.
type Capability int

const (
	CapBatch Capability = iota
	CapStreaming
	CapTranslation
	CapWordTimestamps
	CapDiarization
)

func (c Capability) String() string {
	switch c {
	case CapBatch:
		return "batch"
	case CapStreaming:
		return "streaming"
	case CapTranslation:
		return "translation"
	case CapWordTimestamps:
		return "word_timestamps"
	case CapDiarization:
		return "diarization"
	default:
		return "unknown"
	}
}

// CapabilitySet is the immutable set of operations a provider declares.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) List() []string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, c.String())
	}
	sort.Strings(names)
	return names
}

// WordInfo carries per-word timing from providers that report it.
type WordInfo struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is one transcription outcome. Partial results (IsFinal=false) are
// advisory and subject to revision; only a final result is authoritative.
type Result struct {
	Text        string        `json:"text"`
	Language    string        `json:"language,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	IsFinal     bool          `json:"is_final"`
	Words       []WordInfo    `json:"words,omitempty"`
	Translation string        `json:"translation,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Config is the per-provider construction config. Immutable once a provider
// is built; changing credentials means building a new provider.
type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	Language   string
	SampleRate int
}
