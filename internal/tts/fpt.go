package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Voice describes one FPT.AI speaker.
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Gender string `json:"gender"`
}

// Voices lists the FPT.AI v5 speakers.
var Voices = []Voice{
	{ID: "banmai", Name: "Ban Mai", Region: "north", Gender: "female"},
	{ID: "thuminh", Name: "Thu Minh", Region: "north", Gender: "female"},
	{ID: "leminh", Name: "Lê Minh", Region: "north", Gender: "male"},
	{ID: "myan", Name: "Mỹ An", Region: "central", Gender: "female"},
	{ID: "giahuy", Name: "Gia Huy", Region: "central", Gender: "male"},
	{ID: "ngoclam", Name: "Ngọc Lam", Region: "central", Gender: "female"},
	{ID: "lannhi", Name: "Lan Nhi", Region: "south", Gender: "female"},
	{ID: "linhsan", Name: "Linh San", Region: "south", Gender: "female"},
	{ID: "minhquang", Name: "Minh Quang", Region: "south", Gender: "male"},
}

// FPTConfig holds configuration for the FPT.AI async TTS backend.
type FPTConfig struct {
	APIKey string
	URL    string // default: "https://api.fpt.ai/hmi/tts/v5"
	Voice  string // default: "banmai"
	Speed  string // sent verbatim in the speed header, "" means normal
	Policy PollPolicy
	Wait   WaitFunc // default: timer that honours ctx
}

// FPTTTS submits text to FPT.AI and polls the returned URL for the WAV file.
type FPTTTS struct {
	cfg        FPTConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFPTTTS creates an FPTTTS with defaults applied. A zero Policy becomes DefaultPollPolicy.
func NewFPTTTS(cfg FPTConfig) *FPTTTS {
	if cfg.URL == "" {
		cfg.URL = "https://api.fpt.ai/hmi/tts/v5"
	}
	if cfg.Voice == "" {
		cfg.Voice = "banmai"
	}
	if cfg.Policy == (PollPolicy{}) {
		cfg.Policy = DefaultPollPolicy()
	}
	cfg.Policy = cfg.Policy.normalized()
	if cfg.Wait == nil {
		cfg.Wait = sleepContext
	}
	return &FPTTTS{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: slog.Default(),
	}
}

func (f *FPTTTS) Name() string { return "fpt-tts" }

func (f *FPTTTS) Policy() PollPolicy { return f.cfg.Policy }

// Voice is the speaker used when a request names none.
func (f *FPTTTS) Voice() string { return f.cfg.Voice }

// Synthesize submits the text, then waits and polls until the audio is ready
// or the policy gives up.
func (f *FPTTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	job, err := f.Submit(ctx, req.Input, req.Voice)
	if err != nil {
		return nil, err
	}

	policy := f.cfg.Policy
	if req.InitialWait > 0 {
		policy.InitialWait = req.InitialWait
	}

	audio, err := f.await(ctx, job, policy)
	if err != nil {
		return nil, err
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/wav",
		AudioURL:    job.AudioURL,
		Attempts:    job.Attempts,
	}, nil
}

type fptSubmitResponse struct {
	Async     *string `json:"async"`
	Error     int     `json:"error"`
	Message   string  `json:"message"`
	RequestID string  `json:"request_id"`
}

// Submit posts the UTF-8 text and returns a pending job holding the poll URL.
func (f *FPTTTS) Submit(ctx context.Context, text, voice string) (*SynthesisJob, error) {
	if voice == "" {
		voice = f.cfg.Voice
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader([]byte(text)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("api-key", f.cfg.APIKey)
	httpReq.Header.Set("speed", f.cfg.Speed)
	httpReq.Header.Set("voice", voice)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Err: ErrRequestFailed, StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(respBody))}
	}

	var apiResp fptSubmitResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse tts response: %w", err)
	}
	if apiResp.Async == nil {
		f.logger.Warn("tts response without async url", "error_code", apiResp.Error, "message", apiResp.Message)
		return nil, &StatusError{Err: ErrNoAudioURL, Detail: apiResp.Message, Response: json.RawMessage(respBody)}
	}

	audioURL := *apiResp.Async
	if f.cfg.Policy.ValidateURL && !hasHTTPScheme(audioURL) {
		return nil, &StatusError{Err: ErrInvalidAudioURL, URL: audioURL}
	}

	f.logger.Info("tts job submitted", "voice", voice, "audio_url", audioURL, "fpt_request_id", apiResp.RequestID)

	return &SynthesisJob{
		AudioURL:  audioURL,
		Voice:     voice,
		RequestID: apiResp.RequestID,
		Status:    JobPending,
	}, nil
}

// PollOnce fetches the job URL a single time. A 404 leaves the job pending and
// returns ErrNotReady; any other non-200 fails the job.
func (f *FPTTTS) PollOnce(ctx context.Context, job *SynthesisJob) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, job.AudioURL, nil)
	if err != nil {
		job.Status = JobFailed
		return nil, fmt.Errorf("build poll request: %w", err)
	}

	job.Attempts++
	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		job.Status = JobFailed
		return nil, fmt.Errorf("poll audio: %w", err)
	}
	defer resp.Body.Close()

	job.LastStatusCode = resp.StatusCode

	switch resp.StatusCode {
	case http.StatusOK:
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			job.Status = JobFailed
			return nil, fmt.Errorf("read audio: %w", err)
		}
		job.Status = JobReady
		return audio, nil
	case http.StatusNotFound:
		return nil, &StatusError{Err: ErrNotReady, StatusCode: resp.StatusCode, Attempts: job.Attempts, URL: job.AudioURL}
	default:
		job.Status = JobFailed
		return nil, &StatusError{Err: ErrDownloadFailed, StatusCode: resp.StatusCode, Attempts: job.Attempts, URL: job.AudioURL}
	}
}

func (f *FPTTTS) await(ctx context.Context, job *SynthesisJob, policy PollPolicy) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		wait := policy.WaitFor(attempt)
		f.logger.Info("waiting for audio generation", "attempt", attempt, "wait", wait.String())
		if err := f.cfg.Wait(ctx, wait); err != nil {
			return nil, err
		}

		audio, err := f.PollOnce(ctx, job)
		if err == nil {
			return audio, nil
		}
		if !errors.Is(err, ErrNotReady) {
			return nil, err
		}
		if attempt >= policy.MaxAttempts {
			job.Status = JobFailed
			return nil, &StatusError{Err: ErrDownloadFailed, StatusCode: job.LastStatusCode, Attempts: job.Attempts, URL: job.AudioURL}
		}
		f.logger.Debug("audio not ready", "attempt", attempt, "audio_url", job.AudioURL)
	}
}

func hasHTTPScheme(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
