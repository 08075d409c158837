package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionspeech/internal/pipeline"
	"github.com/nikhilbhutani/visionspeech/internal/queue"
	"github.com/nikhilbhutani/visionspeech/internal/tts"
	"github.com/nikhilbhutani/visionspeech/internal/vision"
)

type stubAnalyzer struct {
	reply     string
	err       error
	panicWith any
	calls     int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ []byte, _ string, _ string) (*vision.AnalysisResult, error) {
	s.calls++
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.err != nil {
		return nil, s.err
	}
	res := vision.ParseAnalysis(s.reply)
	return &res, nil
}

// stubAsync answers polls from a scripted list of status codes.
type stubAsync struct {
	policy    tts.PollPolicy
	submitErr error
	statuses  []int
	audio     []byte
	pollPanic any
	voices    []string
	polls     int
}

func (s *stubAsync) Name() string { return "stub" }

func (s *stubAsync) Synthesize(context.Context, tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return nil, errors.New("not used")
}

func (s *stubAsync) Submit(_ context.Context, _ string, voice string) (*tts.SynthesisJob, error) {
	s.voices = append(s.voices, voice)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &tts.SynthesisJob{AudioURL: "https://tts.example/audio123", Voice: voice, Status: tts.JobPending}, nil
}

func (s *stubAsync) PollOnce(_ context.Context, job *tts.SynthesisJob) ([]byte, error) {
	if s.pollPanic != nil {
		panic(s.pollPanic)
	}
	job.Attempts++
	status := s.statuses[len(s.statuses)-1]
	if s.polls < len(s.statuses) {
		status = s.statuses[s.polls]
	}
	s.polls++
	job.LastStatusCode = status

	switch status {
	case http.StatusOK:
		job.Status = tts.JobReady
		return s.audio, nil
	case http.StatusNotFound:
		return nil, &tts.StatusError{Err: tts.ErrNotReady, StatusCode: status, Attempts: job.Attempts, URL: job.AudioURL}
	default:
		job.Status = tts.JobFailed
		return nil, &tts.StatusError{Err: tts.ErrDownloadFailed, StatusCode: status, Attempts: job.Attempts, URL: job.AudioURL}
	}
}

func (s *stubAsync) Policy() tts.PollPolicy { return s.policy }

type scheduled struct {
	payload queue.AudioPollPayload
	delay   time.Duration
}

type recordingScheduler struct {
	err   error
	tasks []scheduled
}

func (r *recordingScheduler) EnqueueAudioPoll(_ context.Context, payload queue.AudioPollPayload, delay time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, scheduled{payload: payload, delay: delay})
	return nil
}

func newTask(t *testing.T, taskType string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(taskType, data)
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o644))
	return path
}

type memResults struct {
	saved []pipeline.ConversionResult
}

func (m *memResults) Save(_ context.Context, res pipeline.ConversionResult) error {
	m.saved = append(m.saved, res)
	return nil
}

type notification struct {
	url string
	res pipeline.ConversionResult
}

type recordingNotifier struct {
	err  error
	sent []notification
}

func (r *recordingNotifier) NotifyConversion(_ context.Context, url string, res pipeline.ConversionResult) error {
	r.sent = append(r.sent, notification{url: url, res: res})
	return r.err
}

func newWorker(analyzer *stubAnalyzer, synth tts.Provider, sched PollScheduler) *ConversionWorker {
	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{Voice: "leminh"})
	return NewConversionWorker(conv, sched, nil, nil)
}

func TestProcessConversion_SchedulesFirstPoll(t *testing.T) {
	analyzer := &stubAnalyzer{reply: "Thể loại: Tài liệu\nHóa đơn tiền điện tháng 5"}
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}}
	sched := &recordingScheduler{}
	w := newWorker(analyzer, synth, sched)

	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:  "req-1",
		ImagePath:  writeImage(t),
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
	})
	require.NoError(t, w.ProcessConversion(context.Background(), task))

	require.Len(t, sched.tasks, 1)
	got := sched.tasks[0]
	assert.Equal(t, 15*time.Second, got.delay)
	assert.Equal(t, 1, got.payload.Attempt)
	assert.Equal(t, "req-1", got.payload.RequestID)
	assert.Equal(t, "https://tts.example/audio123", got.payload.AudioURL)
	assert.Equal(t, "leminh", got.payload.Voice)
	assert.Equal(t, string(vision.CategoryDocument), got.payload.Category)
	assert.Contains(t, got.payload.TextResult, "Hóa đơn")
	assert.Equal(t, []string{"leminh"}, synth.voices)
}

func TestProcessConversion_InitialWaitOverride(t *testing.T) {
	analyzer := &stubAnalyzer{reply: "Một con phố đông người"}
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}}
	sched := &recordingScheduler{}
	w := newWorker(analyzer, synth, sched)

	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:   "req-2",
		ImagePath:   writeImage(t),
		OutputPath:  filepath.Join(t.TempDir(), "out.wav"),
		Voice:       "banmai",
		InitialWait: 5 * time.Second,
	})
	require.NoError(t, w.ProcessConversion(context.Background(), task))

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, 5*time.Second, sched.tasks[0].delay)
	assert.Equal(t, 5*time.Second, sched.tasks[0].payload.InitialWait)
	assert.Equal(t, "banmai", sched.tasks[0].payload.Voice)
}

func TestProcessConversion_MissingImage(t *testing.T) {
	analyzer := &stubAnalyzer{reply: "x"}
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}}
	sched := &recordingScheduler{}
	w := newWorker(analyzer, synth, sched)

	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:  "req-3",
		ImagePath:  filepath.Join(t.TempDir(), "missing.jpg"),
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
	})
	err := w.ProcessConversion(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "Image file not found")
	assert.Zero(t, analyzer.calls)
	assert.Empty(t, synth.voices)
	assert.Empty(t, sched.tasks)
}

func TestProcessConversion_SubmitFailure(t *testing.T) {
	analyzer := &stubAnalyzer{reply: "Một căn phòng"}
	synth := &stubAsync{
		policy:    tts.DefaultPollPolicy(),
		submitErr: &tts.StatusError{Err: tts.ErrRequestFailed, StatusCode: http.StatusUnauthorized},
	}
	sched := &recordingScheduler{}
	w := newWorker(analyzer, synth, sched)

	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:  "req-4",
		ImagePath:  writeImage(t),
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
	})
	err := w.ProcessConversion(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "TTS API request failed: 401")
	assert.Empty(t, sched.tasks)
}

func TestProcessConversion_BadPayload(t *testing.T) {
	w := newWorker(&stubAnalyzer{}, &stubAsync{policy: tts.DefaultPollPolicy()}, &recordingScheduler{})

	err := w.ProcessConversion(context.Background(), asynq.NewTask(queue.TypeConversionRun, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessAudioPoll_NotReadyReschedules(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusNotFound}}
	sched := &recordingScheduler{}
	w := newWorker(&stubAnalyzer{}, synth, sched)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:  "req-5",
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:   "https://tts.example/audio123",
		Voice:      "banmai",
		Attempt:    1,
	})
	require.NoError(t, w.ProcessAudioPoll(context.Background(), task))

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, 2, sched.tasks[0].payload.Attempt)
	assert.Equal(t, 20*time.Second, sched.tasks[0].delay)
}

func TestProcessAudioPoll_Exhausted(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusNotFound}}
	sched := &recordingScheduler{}
	w := newWorker(&stubAnalyzer{}, synth, sched)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:  "req-6",
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:   "https://tts.example/audio123",
		Attempt:    3,
	})
	err := w.ProcessAudioPoll(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "Failed to download audio after 3 attempt(s): 404")
	assert.Empty(t, sched.tasks)
}

func TestProcessAudioPoll_ServerErrorStopsPolling(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusInternalServerError}}
	sched := &recordingScheduler{}
	w := newWorker(&stubAnalyzer{}, synth, sched)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:  "req-7",
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:   "https://tts.example/audio123",
		Attempt:    1,
	})
	err := w.ProcessAudioPoll(context.Background(), task)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to download audio after 1 attempt(s): 500")
	assert.Empty(t, sched.tasks)
}

func TestProcessAudioPoll_WritesAudio(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}, audio: []byte("RIFFdata")}
	w := newWorker(&stubAnalyzer{}, synth, &recordingScheduler{})

	out := filepath.Join(t.TempDir(), "nested", "dir", "out.wav")
	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:  "req-8",
		OutputPath: out,
		AudioURL:   "https://tts.example/audio123",
		Attempt:    2,
	})
	require.NoError(t, w.ProcessAudioPoll(context.Background(), task))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)
	assert.Equal(t, 1, synth.polls)
}

// syncSynth is a backend without submit/poll support.
type syncSynth struct{ audio []byte }

func (s *syncSynth) Name() string { return "sync" }

func (s *syncSynth) Synthesize(context.Context, tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return &tts.SynthesisResult{Audio: s.audio, ContentType: "audio/wav"}, nil
}

func TestProcessConversion_SynchronousBackend(t *testing.T) {
	analyzer := &stubAnalyzer{reply: "Một chiếc xe đạp"}
	sched := &recordingScheduler{}
	w := newWorker(analyzer, &syncSynth{audio: []byte("RIFF")}, sched)

	out := filepath.Join(t.TempDir(), "out.wav")
	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:  "req-9",
		ImagePath:  writeImage(t),
		OutputPath: out,
	})
	require.NoError(t, w.ProcessConversion(context.Background(), task))

	assert.FileExists(t, out)
	assert.Empty(t, sched.tasks)

	err := w.ProcessAudioPoll(context.Background(), newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{RequestID: "req-9"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestFinishStoresAndNotifies(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}, audio: []byte("RIFF")}
	analyzer := &stubAnalyzer{}
	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{})
	results := &memResults{}
	notifier := &recordingNotifier{}
	w := NewConversionWorker(conv, &recordingScheduler{}, results, notifier)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:   "req-10",
		OutputPath:  filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:    "https://tts.example/audio123",
		Attempt:     1,
		TextResult:  "Một tờ giấy",
		Category:    string(vision.CategoryDocument),
		CallbackURL: "https://client.example/hook",
	})
	require.NoError(t, w.ProcessAudioPoll(context.Background(), task))

	require.Len(t, results.saved, 1)
	assert.True(t, results.saved[0].Success)
	assert.Equal(t, vision.CategoryDocument, results.saved[0].Category)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "https://client.example/hook", notifier.sent[0].url)
	assert.Equal(t, "req-10", notifier.sent[0].res.RequestID)
}

func TestFinishCallbackFailureDoesNotFailTask(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}, audio: []byte("RIFF")}
	analyzer := &stubAnalyzer{}
	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{})
	notifier := &recordingNotifier{err: errors.New("connection refused")}
	w := NewConversionWorker(conv, &recordingScheduler{}, nil, notifier)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:   "req-11",
		OutputPath:  filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:    "https://tts.example/audio123",
		Attempt:     1,
		CallbackURL: "https://client.example/hook",
	})
	assert.NoError(t, w.ProcessAudioPoll(context.Background(), task))
	assert.Len(t, notifier.sent, 1)
}

func TestPendingPollDoesNotNotify(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusNotFound}}
	analyzer := &stubAnalyzer{}
	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{})
	results := &memResults{}
	notifier := &recordingNotifier{}
	sched := &recordingScheduler{}
	w := NewConversionWorker(conv, sched, results, notifier)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:   "req-12",
		OutputPath:  filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:    "https://tts.example/audio123",
		Attempt:     1,
		CallbackURL: "https://client.example/hook",
	})
	require.NoError(t, w.ProcessAudioPoll(context.Background(), task))

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, "https://client.example/hook", sched.tasks[0].payload.CallbackURL)
	assert.Empty(t, results.saved)
	assert.Empty(t, notifier.sent)
}

func TestProcessConversion_AnalyzerPanicIsRecorded(t *testing.T) {
	analyzer := &stubAnalyzer{panicWith: "assignment to entry in nil map"}
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), statuses: []int{http.StatusOK}}
	conv := pipeline.NewConverter(analyzer, synth, pipeline.Options{})
	results := &memResults{}
	notifier := &recordingNotifier{}
	sched := &recordingScheduler{}
	w := NewConversionWorker(conv, sched, results, notifier)

	task := newTask(t, queue.TypeConversionRun, queue.ConversionRunPayload{
		RequestID:   "req-13",
		ImagePath:   writeImage(t),
		OutputPath:  filepath.Join(t.TempDir(), "out.wav"),
		CallbackURL: "https://client.example/hook",
	})

	var err error
	require.NotPanics(t, func() { err = w.ProcessConversion(context.Background(), task) })
	assert.ErrorIs(t, err, asynq.SkipRetry)

	require.Len(t, results.saved, 1)
	saved := results.saved[0]
	assert.Equal(t, "req-13", saved.RequestID)
	assert.False(t, saved.Success)
	assert.Equal(t, pipeline.KindUnexpected, saved.ErrorKind)
	assert.Contains(t, saved.Error, "nil map")
	require.Len(t, notifier.sent, 1)
	assert.Empty(t, synth.voices)
	assert.Empty(t, sched.tasks)
}

func TestProcessAudioPoll_PollPanicIsRecorded(t *testing.T) {
	synth := &stubAsync{policy: tts.DefaultPollPolicy(), pollPanic: "index out of range"}
	conv := pipeline.NewConverter(&stubAnalyzer{}, synth, pipeline.Options{})
	results := &memResults{}
	sched := &recordingScheduler{}
	w := NewConversionWorker(conv, sched, results, nil)

	task := newTask(t, queue.TypeAudioPoll, queue.AudioPollPayload{
		RequestID:  "req-14",
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
		AudioURL:   "https://tts.example/audio123",
		TextResult: "Một con phố",
		Attempt:    1,
	})

	var err error
	require.NotPanics(t, func() { err = w.ProcessAudioPoll(context.Background(), task) })
	assert.ErrorIs(t, err, asynq.SkipRetry)

	require.Len(t, results.saved, 1)
	assert.Equal(t, pipeline.StagePolling, results.saved[0].FailedStage)
	assert.Equal(t, "Một con phố", results.saved[0].TextResult)
	assert.Empty(t, sched.tasks)
}
