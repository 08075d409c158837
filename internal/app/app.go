// Package app builds the conversion pipeline from configuration. The CLI,
// the API server and the worker all wire their services through here.
package app

import (
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/visionspeech/internal/config"
	"github.com/nikhilbhutani/visionspeech/internal/llm"
	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
	"github.com/nikhilbhutani/visionspeech/internal/tts"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

// Services is everything a conversion needs.
type Services struct {
	Analyzer    *vision.Analyzer
	Synthesizer tts.Provider
	Converter   *pipeline.Converter
	Voices      []tts.Voice // speakers the selected backend accepts
}

// voiced is implemented by backends that carry their own default speaker.
type voiced interface {
	Voice() string
}

func Build(cfg *config.Config) (*Services, error) {
	prompt := vision.DefaultPrompt
	if cfg.Vision.PromptFile != "" {
		p, err := vision.LoadPrompt(cfg.Vision.PromptFile)
		if err != nil {
			return nil, err
		}
		prompt = p
	}

	analyzer := vision.NewAnalyzer(llm.NewGateway(cfg.Vision), cfg.Vision.Model)

	synth, err := NewSynthesizer(cfg.TTS)
	if err != nil {
		return nil, err
	}

	voice := cfg.TTS.Voice
	if v, ok := synth.(voiced); ok {
		voice = v.Voice()
	}

	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{
		Voice:  voice,
		Prompt: prompt,
		Logger: slog.Default(),
	})

	return &Services{
		Analyzer:    analyzer,
		Synthesizer: synth,
		Converter:   conv,
		Voices:      Voices(cfg.TTS.Backend),
	}, nil
}

// Voices lists the speakers of a TTS backend.
func Voices(backend string) []tts.Voice {
	if backend == "openai" {
		return tts.OpenAIVoices
	}
	return tts.Voices
}

// NewSynthesizer returns the TTS backend selected by cfg.Backend.
func NewSynthesizer(cfg config.TTSConfig) (tts.Provider, error) {
	switch cfg.Backend {
	case "fpt", "":
		return tts.NewFPTTTS(tts.FPTConfig{
			APIKey: cfg.FPTKey,
			URL:    cfg.FPTURL,
			Voice:  cfg.Voice,
			Speed:  cfg.Speed,
			Policy: PollPolicy(cfg.Poll),
		}), nil
	case "openai":
		return tts.NewOpenAISpeech(tts.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.OpenAIVoice,
		}), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}

func PollPolicy(cfg config.PollConfig) tts.PollPolicy {
	return tts.PollPolicy{
		InitialWait: cfg.InitialWait,
		Step:        cfg.Step,
		MaxAttempts: cfg.MaxAttempts,
		ValidateURL: cfg.ValidateURL,
	}
}
