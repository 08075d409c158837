package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/visionspeech/internal/tts"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

// Analyzer turns image bytes into classified text.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType, prompt string) (*vision.AnalysisResult, error)
}

// Options configures a Converter. Empty fields take defaults.
type Options struct {
	Voice  string // default: "banmai"
	Prompt string // default: vision.DefaultPrompt
	Logger *slog.Logger
}

// Converter runs image → text → speech → file. It is immutable; WithVoice and
// WithPrompt return modified copies, so one value is safe to share.
type Converter struct {
	analyzer Analyzer
	synth    tts.Provider
	voice    string
	prompt   string
	logger   *slog.Logger
	mkdirAll func(string, os.FileMode) error
}

func NewConverter(analyzer Analyzer, synth tts.Provider, opts Options) *Converter {
	if opts.Voice == "" {
		opts.Voice = "banmai"
	}
	if opts.Prompt == "" {
		opts.Prompt = vision.DefaultPrompt
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Converter{
		analyzer: analyzer,
		synth:    synth,
		voice:    opts.Voice,
		prompt:   opts.Prompt,
		logger:   opts.Logger,
		mkdirAll: os.MkdirAll,
	}
}

// WithVoice returns a converter that submits text with voice. Any string is accepted.
func (c *Converter) WithVoice(voice string) *Converter {
	cp := *c
	cp.voice = voice
	return &cp
}

// WithPrompt returns a converter that analyzes images with prompt. Any string is accepted.
func (c *Converter) WithPrompt(prompt string) *Converter {
	cp := *c
	cp.prompt = prompt
	return &cp
}

func (c *Converter) Voice() string  { return c.voice }
func (c *Converter) Prompt() string { return c.prompt }

// run is one conversion in flight: the result built so far and the last
// stage reached.
type run struct {
	req    ConversionRequest
	voice  string
	prompt string
	res    ConversionResult
	stage  Stage
	logger *slog.Logger
}

func (c *Converter) start(req ConversionRequest) *run {
	r := &run{req: req, voice: req.Voice, prompt: req.Prompt, stage: StageStart}
	if r.voice == "" {
		r.voice = c.voice
	}
	if r.prompt == "" {
		r.prompt = c.prompt
	}
	r.res.RequestID = req.ID
	if r.res.RequestID == "" {
		r.res.RequestID = uuid.NewString()
	}
	r.res.VoiceUsed = r.voice
	r.logger = c.logger.With("request_id", r.res.RequestID)
	return r
}

func (r *run) fail(err error) {
	r.res.Fail(r.stage, err)
	r.logger.Warn("conversion failed", "stage", r.stage, "kind", r.res.ErrorKind, "error", err)
}

func (r *run) panicked(v any) {
	r.res.Fail(r.stage, fmt.Errorf("panic: %v", v))
	r.logger.Error("conversion panicked", "stage", r.stage, "panic", v)
}

// Convert runs the whole pipeline. It never returns an error: every failure,
// including a panic in a stage, is reported through the result.
func (c *Converter) Convert(ctx context.Context, req ConversionRequest) (res ConversionResult) {
	r := c.start(req)
	defer func() {
		if v := recover(); v != nil {
			r.panicked(v)
		}
		res = r.res
	}()

	analysis, ok := c.analyze(ctx, r)
	if !ok {
		return
	}

	r.stage = StageSynthesisSubmitted
	r.logger.Info("converting to speech", "voice", r.voice, "backend", c.synth.Name())
	synth, err := c.synth.Synthesize(ctx, tts.SynthesisRequest{
		Input:       analysis.Text,
		Voice:       r.voice,
		InitialWait: req.WaitTime,
	})
	if err != nil {
		var se *tts.StatusError
		if errors.As(err, &se) && (errors.Is(err, tts.ErrDownloadFailed) || errors.Is(err, tts.ErrNotReady)) {
			r.res.AudioURL = se.URL
			r.stage = StagePolling
		}
		r.fail(err)
		return
	}
	r.res.AudioURL = synth.AudioURL
	r.stage = StageAudioDownloaded
	r.logger.Info("audio downloaded", "audio_url", synth.AudioURL, "attempts", synth.Attempts, "bytes", len(synth.Audio))

	c.save(r, synth.Audio)
	return
}

// AsyncBackend returns the synthesizer's submit/poll halves when it has them.
func (c *Converter) AsyncBackend() (tts.AsyncProvider, bool) {
	ap, ok := c.synth.(tts.AsyncProvider)
	return ap, ok
}

// Submit runs a conversion up to handing the text to an async TTS backend and
// returns the pending job. A nil job means res holds the terminal failure.
func (c *Converter) Submit(ctx context.Context, req ConversionRequest) (res ConversionResult, job *tts.SynthesisJob) {
	r := c.start(req)
	defer func() {
		if v := recover(); v != nil {
			r.panicked(v)
			job = nil
		}
		res = r.res
	}()

	async, ok := c.AsyncBackend()
	if !ok {
		r.fail(fmt.Errorf("tts backend %s does not support polling", c.synth.Name()))
		return
	}

	analysis, ok := c.analyze(ctx, r)
	if !ok {
		return
	}

	r.stage = StageSynthesisSubmitted
	j, err := async.Submit(ctx, analysis.Text, r.voice)
	if err != nil {
		r.fail(err)
		return
	}
	r.res.AudioURL = j.AudioURL
	return r.res, j
}

// Collect polls a submitted job once and saves the audio to outputPath when
// it is ready. done is false only while the backend reports the audio as not
// ready yet; prior is then returned unchanged.
func (c *Converter) Collect(ctx context.Context, prior ConversionResult, job *tts.SynthesisJob, outputPath string) (res ConversionResult, done bool) {
	r := &run{
		req:    ConversionRequest{ID: prior.RequestID, OutputPath: outputPath},
		voice:  prior.VoiceUsed,
		res:    prior,
		stage:  StagePolling,
		logger: c.logger.With("request_id", prior.RequestID),
	}
	defer func() {
		if v := recover(); v != nil {
			r.panicked(v)
			done = true
		}
		res = r.res
	}()

	async, ok := c.AsyncBackend()
	if !ok {
		r.fail(fmt.Errorf("tts backend %s does not support polling", c.synth.Name()))
		return r.res, true
	}

	audio, err := async.PollOnce(ctx, job)
	if errors.Is(err, tts.ErrNotReady) {
		return r.res, false
	}
	if err != nil {
		r.fail(err)
		return r.res, true
	}
	r.stage = StageAudioDownloaded
	r.logger.Info("audio downloaded", "audio_url", job.AudioURL, "attempts", job.Attempts, "bytes", len(audio))

	c.save(r, audio)
	return r.res, true
}

// analyze loads the image and runs the vision model. It reports false once a
// failure has been recorded.
func (c *Converter) analyze(ctx context.Context, r *run) (*vision.AnalysisResult, bool) {
	if r.req.OutputPath == "" {
		r.fail(errors.New("output path is required"))
		return nil, false
	}

	r.logger.Info("analyzing image", "image_path", r.req.ImagePath)
	image, err := LoadImage(r.req.ImagePath)
	if err != nil {
		r.fail(err)
		return nil, false
	}
	r.stage = StageImageLoaded

	analysis, err := c.analyzer.Analyze(ctx, image, vision.ImageMimeType, r.prompt)
	if err != nil {
		r.fail(err)
		return nil, false
	}
	r.res.SetAnalysis(analysis)
	r.stage = StageAnalyzed
	r.logger.Info("image analyzed", "category", analysis.Category, "hazard", analysis.Hazard, "preview", preview(analysis.Text, 100))
	return analysis, true
}

func (c *Converter) save(r *run, audio []byte) {
	if err := writeAudio(c.mkdirAll, r.req.OutputPath, audio); err != nil {
		r.fail(err)
		return
	}
	r.stage = StageSaved
	r.res.Success = true
	r.res.AudioPath = r.req.OutputPath
	r.logger.Info("audio saved", "audio_path", r.req.OutputPath)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
