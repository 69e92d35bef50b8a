package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirki-ai/kirki-backend/internal/analysis"
	"github.com/kirki-ai/kirki-backend/internal/transcription"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

type lifecycleRecorder struct {
	calls           []string
	analysisWarning string
	visualURL       string
	failCause       error
}

func (l *lifecycleRecorder) BeginProcessing(ctx context.Context, id int64) error {
	l.calls = append(l.calls, "begin")
	return nil
}

func (l *lifecycleRecorder) FailProcessing(ctx context.Context, id int64, cause error) error {
	l.calls = append(l.calls, "fail")
	l.failCause = cause
	return nil
}

func (l *lifecycleRecorder) FinishTranscription(ctx context.Context, id int64, transcript, speakerTranscript string, duration float64) error {
	l.calls = append(l.calls, "transcribed")
	return nil
}

func (l *lifecycleRecorder) FinishAnalysis(ctx context.Context, id int64, summary string, actionItems types.ActionItems, decisions types.Decisions, warning string) error {
	l.calls = append(l.calls, "analyzed")
	l.analysisWarning = warning
	return nil
}

func (l *lifecycleRecorder) CompleteWithAnalysisWarning(ctx context.Context, id int64, cause error) error {
	l.calls = append(l.calls, "completed-analysis-warning")
	return nil
}

func (l *lifecycleRecorder) CompleteWithVisual(ctx context.Context, id int64, visualURL string) error {
	l.calls = append(l.calls, "completed")
	l.visualURL = visualURL
	return nil
}

func (l *lifecycleRecorder) CompleteWithVisualWarning(ctx context.Context, id int64) error {
	l.calls = append(l.calls, "completed-visual-warning")
	return nil
}

type stubStore struct {
	content []byte
	err     error
}

func (s *stubStore) Download(ctx context.Context, objectKey string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.content, nil
}

type stubTranscriber struct {
	result *transcription.Result
	err    error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, filename string, content []byte) (*transcription.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubAnalyzer struct {
	insights *analysis.Insights
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, transcript, speakerTranscript string) (*analysis.Insights, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.insights, nil
}

type stubVisualizer struct {
	url string
	err error
}

func (s *stubVisualizer) Generate(ctx context.Context, recordingID int64, summary string, actionItems types.ActionItems, decisions types.Decisions, filename string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

func newRunnerForTests(lifecycle *lifecycleRecorder, store *stubStore, speech *stubTranscriber, insights *stubAnalyzer, visuals *stubVisualizer) *Runner {
	if store == nil {
		store = &stubStore{content: []byte("riff")}
	}
	summary := "Team agreed on the launch plan."
	if speech == nil {
		speech = &stubTranscriber{result: &transcription.Result{Text: "hello", SpeakerText: "[Speaker A]: hello", Duration: 12.5}}
	}
	if insights == nil {
		insights = &stubAnalyzer{insights: &analysis.Insights{Summary: &summary, ActionItems: types.ActionItems{}, Decisions: types.Decisions{}}}
	}
	if visuals == nil {
		visuals = &stubVisualizer{url: "https://storage.googleapis.com/bucket/visual_summary_7.png"}
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner, err := NewRunner(lifecycle, store, speech, insights, visuals, nil, logg)
	if err != nil {
		panic(err)
	}
	return runner
}

func testJob() queue.Job {
	return queue.Job{ID: "job-1", RecordingID: 7, StorageKey: "uploads/2026/01/02/abc.mp3", Filename: "standup.mp3"}
}

func TestRunHappyPath(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	runner := newRunnerForTests(lifecycle, nil, nil, nil, nil)

	if err := runner.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []string{"begin", "transcribed", "analyzed", "completed"}
	if len(lifecycle.calls) != len(want) {
		t.Fatalf("unexpected call sequence: %v", lifecycle.calls)
	}
	for i, call := range want {
		if lifecycle.calls[i] != call {
			t.Fatalf("call %d = %q, want %q (sequence %v)", i, lifecycle.calls[i], call, lifecycle.calls)
		}
	}
	if lifecycle.visualURL == "" {
		t.Fatal("expected visual URL to be stored")
	}
}

func TestRunTranscriptionFailureFailsRecording(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	speech := &stubTranscriber{err: errors.New("speech service unavailable")}
	runner := newRunnerForTests(lifecycle, nil, speech, nil, nil)

	if err := runner.Run(context.Background(), testJob()); err == nil {
		t.Fatal("expected error from failed transcription")
	}
	if len(lifecycle.calls) != 2 || lifecycle.calls[1] != "fail" {
		t.Fatalf("unexpected call sequence: %v", lifecycle.calls)
	}
}

func TestRunDownloadFailureFailsRecording(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	store := &stubStore{err: errors.New("object missing")}
	runner := newRunnerForTests(lifecycle, store, nil, nil, nil)

	if err := runner.Run(context.Background(), testJob()); err == nil {
		t.Fatal("expected error from failed download")
	}
	if lifecycle.failCause == nil {
		t.Fatal("expected failure cause to reach the recording")
	}
}

func TestRunAnalysisFailureCompletesWithWarning(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	insights := &stubAnalyzer{err: errors.New("model unreachable")}
	runner := newRunnerForTests(lifecycle, nil, nil, insights, nil)

	if err := runner.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("analysis failure must not fail the job: %v", err)
	}
	last := lifecycle.calls[len(lifecycle.calls)-1]
	if last != "completed-analysis-warning" {
		t.Fatalf("unexpected call sequence: %v", lifecycle.calls)
	}
}

func TestRunVisualFailureCompletesWithWarning(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	visuals := &stubVisualizer{err: errors.New("image generation failed")}
	runner := newRunnerForTests(lifecycle, nil, nil, nil, visuals)

	if err := runner.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("visual failure must not fail the job: %v", err)
	}
	last := lifecycle.calls[len(lifecycle.calls)-1]
	if last != "completed-visual-warning" {
		t.Fatalf("unexpected call sequence: %v", lifecycle.calls)
	}
}

func TestRunCarriesFallbackWarning(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	summary := "Degraded recap"
	insights := &stubAnalyzer{insights: &analysis.Insights{
		Summary:     &summary,
		ActionItems: types.ActionItems{},
		Decisions:   types.Decisions{},
		Warning:     "Used fallback analysis - action items and decisions extraction failed",
	}}
	runner := newRunnerForTests(lifecycle, nil, nil, insights, nil)

	if err := runner.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if lifecycle.analysisWarning == "" {
		t.Fatal("expected fallback warning to be persisted")
	}
}
