package tts

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobReady   JobStatus = "ready"
	JobFailed  JobStatus = "failed"
)

// SynthesisJob tracks one submitted text while its audio is generated.
type SynthesisJob struct {
	AudioURL       string    `json:"audio_url"`
	Voice          string    `json:"voice"`
	RequestID      string    `json:"request_id,omitempty"` // issued by the TTS service
	Status         JobStatus `json:"status"`
	Attempts       int       `json:"attempts"`
	LastStatusCode int       `json:"last_status_code,omitempty"`
}
