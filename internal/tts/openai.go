package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIVoices lists the speakers accepted by the OpenAI speech endpoint.
var OpenAIVoices = []Voice{
	{ID: string(openai.VoiceAlloy), Name: "Alloy"},
	{ID: string(openai.VoiceAsh), Name: "Ash"},
	{ID: string(openai.VoiceCoral), Name: "Coral"},
	{ID: string(openai.VoiceEcho), Name: "Echo"},
	{ID: string(openai.VoiceFable), Name: "Fable"},
	{ID: string(openai.VoiceNova), Name: "Nova"},
	{ID: string(openai.VoiceOnyx), Name: "Onyx"},
	{ID: string(openai.VoiceShimmer), Name: "Shimmer"},
}

// OpenAIConfig configures the synchronous OpenAI speech backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "gpt-4o-mini-tts"
	Voice   string // default: "alloy"
}

// OpenAISpeech renders the whole text in one request and returns WAV bytes.
// It has no job URL, so conversions through it never poll.
type OpenAISpeech struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  string
}

func NewOpenAISpeech(cfg OpenAIConfig) *OpenAISpeech {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModelGPT4oMini)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenAISpeech{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.SpeechModel(cfg.Model),
		voice:  cfg.Voice,
	}
}

func (o *OpenAISpeech) Name() string { return "openai-tts" }

// Voice is the speaker used when a request names none.
func (o *OpenAISpeech) Voice() string { return o.voice }

func (o *OpenAISpeech) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          req.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, speechError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/wav",
		Attempts:    1,
	}, nil
}

// speechError keeps the HTTP status of a rejected request so it classifies
// like an FPT submit failure.
func speechError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Err: ErrRequestFailed, StatusCode: apiErr.HTTPStatusCode, Detail: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Err: ErrRequestFailed, StatusCode: reqErr.HTTPStatusCode, Detail: string(reqErr.Body)}
	}
	return fmt.Errorf("tts request: %w", err)
}
