package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
	"github.com/nikhilbhutani/visionspeech/internal/queue"
	"github.com/nikhilbhutani/visionspeech/internal/tts"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

// PollScheduler enqueues the next poll of a pending TTS job.
type PollScheduler interface {
	EnqueueAudioPoll(ctx context.Context, payload queue.AudioPollPayload, delay time.Duration) error
}

// ResultSaver records the terminal result of a conversion.
type ResultSaver interface {
	Save(ctx context.Context, res pipeline.ConversionResult) error
}

// Notifier delivers the terminal result to a client-supplied callback URL.
type Notifier interface {
	NotifyConversion(ctx context.Context, url string, res pipeline.ConversionResult) error
}

// ConversionWorker runs conversions as tasks. With an async TTS backend each
// poll is its own delayed task, so no worker goroutine sleeps while audio is
// generated. Synchronous backends run the whole pipeline in one task.
type ConversionWorker struct {
	converter *pipeline.Converter
	async     tts.AsyncProvider // nil for synchronous backends
	scheduler PollScheduler
	results   ResultSaver // optional
	notifier  Notifier    // optional
}

// NewConversionWorker builds a worker. results and notifier may be nil.
func NewConversionWorker(converter *pipeline.Converter, scheduler PollScheduler, results ResultSaver, notifier Notifier) *ConversionWorker {
	w := &ConversionWorker{
		converter: converter,
		scheduler: scheduler,
		results:   results,
		notifier:  notifier,
	}
	if ap, ok := converter.AsyncBackend(); ok {
		w.async = ap
	}
	return w
}

func (w *ConversionWorker) ProcessConversion(ctx context.Context, t *asynq.Task) error {
	var payload queue.ConversionRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	req := pipeline.ConversionRequest{
		ID:         payload.RequestID,
		ImagePath:  payload.ImagePath,
		OutputPath: payload.OutputPath,
		WaitTime:   payload.InitialWait,
		Voice:      payload.Voice,
		Prompt:     payload.Prompt,
	}

	if w.async == nil {
		return w.finish(ctx, t, payload.CallbackURL, w.converter.Convert(ctx, req))
	}

	res, job := w.converter.Submit(ctx, req)
	if job == nil {
		return w.finish(ctx, t, payload.CallbackURL, res)
	}

	next := queue.AudioPollPayload{
		RequestID:   res.RequestID,
		OutputPath:  payload.OutputPath,
		AudioURL:    job.AudioURL,
		Voice:       res.VoiceUsed,
		Attempt:     1,
		InitialWait: payload.InitialWait,
		TextResult:  res.TextResult,
		Category:    string(res.Category),
		Hazard:      res.Hazard,
		CallbackURL: payload.CallbackURL,
	}
	delay := w.policy(payload.InitialWait).WaitFor(1)
	if err := w.scheduler.EnqueueAudioPoll(ctx, next, delay); err != nil {
		res.Fail(pipeline.StageSynthesisSubmitted, err)
		return w.finish(ctx, t, payload.CallbackURL, res)
	}

	slog.Info("audio poll scheduled", "request_id", res.RequestID, "audio_url", job.AudioURL, "delay", delay.String())
	return nil
}

func (w *ConversionWorker) ProcessAudioPoll(ctx context.Context, t *asynq.Task) error {
	var payload queue.AudioPollPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if w.async == nil {
		return fmt.Errorf("tts backend does not support polling: %w", asynq.SkipRetry)
	}

	prior := pipeline.ConversionResult{
		RequestID:  payload.RequestID,
		VoiceUsed:  payload.Voice,
		TextResult: payload.TextResult,
		Category:   vision.Category(payload.Category),
		Hazard:     payload.Hazard,
		AudioURL:   payload.AudioURL,
	}

	job := &tts.SynthesisJob{
		AudioURL: payload.AudioURL,
		Voice:    payload.Voice,
		Status:   tts.JobPending,
		Attempts: payload.Attempt - 1,
	}

	res, done := w.converter.Collect(ctx, prior, job, payload.OutputPath)
	if done {
		return w.finish(ctx, t, payload.CallbackURL, res)
	}

	policy := w.policy(payload.InitialWait)
	if payload.Attempt >= policy.MaxAttempts {
		res.Fail(pipeline.StagePolling, &tts.StatusError{
			Err:        tts.ErrDownloadFailed,
			StatusCode: http.StatusNotFound,
			Attempts:   job.Attempts,
			URL:        job.AudioURL,
		})
		return w.finish(ctx, t, payload.CallbackURL, res)
	}

	next := payload
	next.Attempt++
	delay := policy.WaitFor(next.Attempt)
	if err := w.scheduler.EnqueueAudioPoll(ctx, next, delay); err != nil {
		res.Fail(pipeline.StagePolling, err)
		return w.finish(ctx, t, payload.CallbackURL, res)
	}
	slog.Info("audio not ready, poll rescheduled", "request_id", payload.RequestID, "attempt", next.Attempt, "delay", delay.String())
	return nil
}

func (w *ConversionWorker) policy(initialWait time.Duration) tts.PollPolicy {
	p := w.async.Policy()
	if initialWait > 0 {
		p.InitialWait = initialWait
	}
	return p
}

// finish records the terminal result on the task and in the result store,
// then notifies the callback URL. Failures are not retried: the caller must
// submit a new conversion.
func (w *ConversionWorker) finish(ctx context.Context, t *asynq.Task, callbackURL string, res pipeline.ConversionResult) error {
	if data, err := json.Marshal(res); err == nil {
		if rw := t.ResultWriter(); rw != nil {
			if _, err := rw.Write(data); err != nil {
				slog.Warn("failed to write task result", "request_id", res.RequestID, "error", err)
			}
		}
	}

	if w.results != nil {
		if err := w.results.Save(ctx, res); err != nil {
			slog.Warn("failed to store conversion result", "request_id", res.RequestID, "error", err)
		}
	}

	if w.notifier != nil && callbackURL != "" {
		if err := w.notifier.NotifyConversion(ctx, callbackURL, res); err != nil {
			slog.Warn("conversion callback failed", "request_id", res.RequestID, "callback_url", callbackURL, "error", err)
		}
	}

	if !res.Success {
		slog.Warn("conversion failed", "request_id", res.RequestID, "kind", res.ErrorKind, "error", res.Error)
		return fmt.Errorf("%s: %w", res.Error, asynq.SkipRetry)
	}
	slog.Info("conversion completed", "request_id", res.RequestID, "audio_path", res.AudioPath)
	return nil
}
