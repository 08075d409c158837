package pipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nikhilbhutani/visionspeech/internal/tts"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

// ConversionRequest describes one image-to-audio run. Empty Voice and Prompt
// use the converter's values; zero WaitTime uses the TTS poll policy.
type ConversionRequest struct {
	ID         string        `json:"request_id,omitempty"`
	ImagePath  string        `json:"image_path"`
	OutputPath string        `json:"output_path"`
	WaitTime   time.Duration `json:"-"`
	Voice      string        `json:"voice,omitempty"`
	Prompt     string        `json:"prompt,omitempty"`
}

// ConversionResult is the terminal record of a run. Whatever was obtained
// before a failure (analysis text, audio URL) is kept.
type ConversionResult struct {
	RequestID   string          `json:"request_id"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
	FailedStage Stage           `json:"failed_stage,omitempty"`
	TextResult  string          `json:"text_result,omitempty"`
	Category    vision.Category `json:"category,omitempty"`
	Hazard      bool            `json:"hazard,omitempty"`
	AudioPath   string          `json:"audio_path,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	VoiceUsed   string          `json:"voice_used"`
	APIResponse json.RawMessage `json:"api_response,omitempty"`
}

// Fail records err, tagged, as the outcome of the run at stage.
func (r *ConversionResult) Fail(stage Stage, err error) {
	pe := Classify(err)
	r.Success = false
	r.Error = pe.Message
	r.ErrorKind = pe.Kind
	r.FailedStage = stage
	r.AudioPath = ""

	var se *tts.StatusError
	if errors.As(err, &se) && len(se.Response) > 0 {
		r.APIResponse = se.Response
	}
}

// SetAnalysis copies the analysis into the result.
func (r *ConversionResult) SetAnalysis(a *vision.AnalysisResult) {
	r.TextResult = a.Text
	r.Category = a.Category
	r.Hazard = a.Hazard
}

// Stage is a step of the conversion; the last one reached is logged and
// reported on failure.
type Stage string

const (
	StageStart              Stage = "start"
	StageImageLoaded        Stage = "image_loaded"
	StageAnalyzed           Stage = "analyzed"
	StageSynthesisSubmitted Stage = "synthesis_submitted"
	StagePolling            Stage = "polling"
	StageAudioDownloaded    Stage = "audio_downloaded"
	StageSaved              Stage = "saved"
)
