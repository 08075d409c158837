package queue

import "time"

const (
	TypeConversionRun = "conversion:run"
	TypeAudioPoll     = "audio:poll"
)

// ConversionRunPayload starts a conversion: load, analyze, submit.
type ConversionRunPayload struct {
	RequestID   string        `json:"request_id"`
	ImagePath   string        `json:"image_path"`
	OutputPath  string        `json:"output_path"`
	Voice       string        `json:"voice,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	InitialWait time.Duration `json:"initial_wait,omitempty"`
	CallbackURL string        `json:"callback_url,omitempty"`
}

// AudioPollPayload is one scheduled fetch of a pending TTS job.
type AudioPollPayload struct {
	RequestID   string        `json:"request_id"`
	OutputPath  string        `json:"output_path"`
	AudioURL    string        `json:"audio_url"`
	Voice       string        `json:"voice"`
	Attempt     int           `json:"attempt"` // 1-based
	InitialWait time.Duration `json:"initial_wait,omitempty"`
	TextResult  string        `json:"text_result"`
	Category    string        `json:"category"`
	Hazard      bool          `json:"hazard,omitempty"`
	CallbackURL string        `json:"callback_url,omitempty"`
}
