package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/visionspeech/internal/auth"
	"github.com/nikhilbhutani/visionspeech/internal/cache"
	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
	"github.com/nikhilbhutani/visionspeech/internal/queue"
	"github.com/nikhilbhutani/visionspeech/internal/storage"
)

// MaxWaitSeconds caps the client-chosen wait before the first audio poll.
const MaxWaitSeconds = 60

// Enqueuer hands a conversion to the worker.
type Enqueuer interface {
	EnqueueConversion(ctx context.Context, payload queue.ConversionRunPayload) (string, error)
}

// Results tracks asynchronous conversions by request ID.
type Results interface {
	MarkPending(ctx context.Context, requestID string) error
	Save(ctx context.Context, res pipeline.ConversionResult) error
	Load(ctx context.Context, requestID string) (*cache.Record, error)
}

type ConversionHandler struct {
	converter *pipeline.Converter
	queue     Enqueuer
	results   Results
	inputs    *storage.Dir
	outputs   *storage.Dir
}

// NewConversionHandler serves conversions whose image paths are read from
// inputs and whose audio is written under outputs.
func NewConversionHandler(converter *pipeline.Converter, q Enqueuer, results Results, inputs, outputs *storage.Dir) *ConversionHandler {
	return &ConversionHandler{converter: converter, queue: q, results: results, inputs: inputs, outputs: outputs}
}

type conversionBody struct {
	ImagePath   string `json:"image_path"`
	OutputPath  string `json:"output_path"`
	Voice       string `json:"voice,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// decodeConversion validates the body and rewrites both paths to their
// location inside the storage directories.
func (h *ConversionHandler) decodeConversion(w http.ResponseWriter, r *http.Request) (conversionBody, bool) {
	var body conversionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return body, false
	}
	if body.ImagePath == "" || body.OutputPath == "" {
		writeError(w, http.StatusBadRequest, "image_path and output_path required")
		return body, false
	}
	if body.WaitSeconds < 0 || body.WaitSeconds > MaxWaitSeconds {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("wait_seconds must be between 0 and %d", MaxWaitSeconds))
		return body, false
	}
	if body.CallbackURL != "" && !validCallback(body.CallbackURL) {
		writeError(w, http.StatusBadRequest, "callback_url must be an absolute http(s) URL")
		return body, false
	}

	imagePath, err := h.inputs.Resolve(body.ImagePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_path must be a relative path inside the input directory")
		return body, false
	}
	outputPath, err := h.outputs.Resolve(body.OutputPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "output_path must be a relative path inside the output directory")
		return body, false
	}
	body.ImagePath, body.OutputPath = imagePath, outputPath
	return body, true
}

func subject(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Sub
	}
	return ""
}

func validCallback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Convert runs a conversion inline and returns the result. The request stays
// open for the whole TTS poll window.
func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeConversion(w, r)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	slog.Info("sync conversion", "request_id", requestID, "subject", subject(r))
	res := h.converter.Convert(r.Context(), pipeline.ConversionRequest{
		ID:         requestID,
		ImagePath:  body.ImagePath,
		OutputPath: body.OutputPath,
		WaitTime:   time.Duration(body.WaitSeconds) * time.Second,
		Voice:      body.Voice,
		Prompt:     body.Prompt,
	})

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// Enqueue schedules a conversion on the worker and returns immediately.
func (h *ConversionHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeConversion(w, r)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	if h.results != nil {
		if err := h.results.MarkPending(r.Context(), requestID); err != nil {
			slog.Warn("failed to record pending conversion", "request_id", requestID, "error", err)
		}
	}

	taskID, err := h.queue.EnqueueConversion(r.Context(), queue.ConversionRunPayload{
		RequestID:   requestID,
		ImagePath:   body.ImagePath,
		OutputPath:  body.OutputPath,
		Voice:       body.Voice,
		Prompt:      body.Prompt,
		InitialWait: time.Duration(body.WaitSeconds) * time.Second,
		CallbackURL: body.CallbackURL,
	})
	if err != nil {
		slog.Error("enqueue conversion failed", "request_id", requestID, "error", err)
		h.abandon(r.Context(), requestID, err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue conversion")
		return
	}

	slog.Info("conversion enqueued", "request_id", requestID, "task_id", taskID, "subject", subject(r))
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "request_id": requestID})
}

// abandon replaces the pending record of a conversion that never reached the queue.
func (h *ConversionHandler) abandon(ctx context.Context, requestID string, cause error) {
	if h.results == nil {
		return
	}
	res := pipeline.ConversionResult{RequestID: requestID}
	res.Fail(pipeline.StageStart, fmt.Errorf("enqueue conversion: %w", cause))
	if err := h.results.Save(ctx, res); err != nil {
		slog.Warn("failed to record abandoned conversion", "request_id", requestID, "error", err)
	}
}

// Get reports an asynchronous conversion: 202 while pending, 200 once finished.
func (h *ConversionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusNotImplemented, "result store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.results.Load(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversion not found")
		return
	}
	if err != nil {
		slog.Error("load conversion failed", "request_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}

	status := http.StatusOK
	if rec.Status == cache.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, rec)
}
