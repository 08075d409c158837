package tts

import (
	"context"
	"time"
)

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
	// InitialWait overrides the poll policy's first wait for async backends.
	InitialWait time.Duration `json:"-"`
}

// SynthesisResult holds the generated audio and where it came from.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/wav"
	AudioURL    string // empty for synchronous backends
	Attempts    int
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

// AsyncProvider exposes the submit/poll halves of an asynchronous backend so
// callers can schedule each poll themselves instead of blocking.
type AsyncProvider interface {
	Provider
	Submit(ctx context.Context, text, voice string) (*SynthesisJob, error)
	PollOnce(ctx context.Context, job *SynthesisJob) ([]byte, error)
	Policy() PollPolicy
}
