package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kirki-ai/kirki-backend/internal/analysis"
	"github.com/kirki-ai/kirki-backend/internal/transcription"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/metrics"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

const (
	stageTranscription = "transcription"
	stageAnalysis      = "analysis"
	stageVisuals       = "visuals"
)

type recordingLifecycle interface {
	BeginProcessing(ctx context.Context, id int64) error
	FailProcessing(ctx context.Context, id int64, cause error) error
	FinishTranscription(ctx context.Context, id int64, transcript, speakerTranscript string, duration float64) error
	FinishAnalysis(ctx context.Context, id int64, summary string, actionItems types.ActionItems, decisions types.Decisions, warning string) error
	CompleteWithAnalysisWarning(ctx context.Context, id int64, cause error) error
	CompleteWithVisual(ctx context.Context, id int64, visualURL string) error
	CompleteWithVisualWarning(ctx context.Context, id int64) error
}

type objectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

type transcriber interface {
	Transcribe(ctx context.Context, filename string, content []byte) (*transcription.Result, error)
}

type analyzer interface {
	Analyze(ctx context.Context, transcript, speakerTranscript string) (*analysis.Insights, error)
}

type visualizer interface {
	Generate(ctx context.Context, recordingID int64, summary string, actionItems types.ActionItems, decisions types.Decisions, filename string) (string, error)
}

// Runner walks one recording through the pipeline. Transcription problems
// fail the recording; analysis and visual problems finish it with a warning
// because the transcript, the primary deliverable, already exists.
type Runner struct {
	recordings recordingLifecycle
	store      objectStore
	speech     transcriber
	insights   analyzer
	visuals    visualizer
	metrics    *metrics.PipelineMetrics
	logg       *logger.Logger
}

// NewRunner builds a pipeline runner from the stage services.
func NewRunner(recordings recordingLifecycle, store objectStore, speech transcriber, insights analyzer, visuals visualizer, pm *metrics.PipelineMetrics, logg *logger.Logger) (*Runner, error) {
	if recordings == nil {
		return nil, fmt.Errorf("recording lifecycle required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if speech == nil {
		return nil, fmt.Errorf("transcriber required")
	}
	if insights == nil {
		return nil, fmt.Errorf("analyzer required")
	}
	if visuals == nil {
		return nil, fmt.Errorf("visualizer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Runner{
		recordings: recordings,
		store:      store,
		speech:     speech,
		insights:   insights,
		visuals:    visuals,
		metrics:    pm,
		logg:       logg,
	}, nil
}

// Run implements queue.Runner.
func (r *Runner) Run(ctx context.Context, job queue.Job) error {
	ctx = r.logg.WithRecordingID(ctx, job.RecordingID)
	ctx = r.logg.WithJobID(ctx, job.ID)

	if err := r.recordings.BeginProcessing(ctx, job.RecordingID); err != nil {
		return err
	}

	result, err := r.transcribe(ctx, job)
	if err != nil {
		if failErr := r.recordings.FailProcessing(ctx, job.RecordingID, err); failErr != nil {
			r.logg.Error(ctx, "recording could not be marked failed", failErr)
		}
		return err
	}
	if err := r.recordings.FinishTranscription(ctx, job.RecordingID, result.Text, result.SpeakerText, result.Duration); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithStage(ctx, stageTranscription), "transcription completed")

	insights, err := r.analyze(ctx, result)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "analysis failed, completing with transcript only")
		return r.recordings.CompleteWithAnalysisWarning(ctx, job.RecordingID, rootCause(err))
	}

	summary := ""
	if insights.Summary != nil {
		summary = *insights.Summary
	}
	if err := r.recordings.FinishAnalysis(ctx, job.RecordingID, summary, insights.ActionItems, insights.Decisions, insights.Warning); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithStage(ctx, stageAnalysis), "analysis completed")

	visualURL, err := r.generateVisual(ctx, job, summary, insights)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "visual generation failed, completing without visual")
		return r.recordings.CompleteWithVisualWarning(ctx, job.RecordingID)
	}
	if err := r.recordings.CompleteWithVisual(ctx, job.RecordingID, visualURL); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithStage(ctx, stageVisuals), "visual summary stored")
	return nil
}

func (r *Runner) transcribe(ctx context.Context, job queue.Job) (*transcription.Result, error) {
	started := time.Now()
	content, err := r.store.Download(ctx, job.StorageKey)
	if err != nil {
		r.metrics.IncFailure(stageTranscription)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download stored media")
	}
	result, err := r.speech.Transcribe(ctx, job.Filename, content)
	r.metrics.ObserveDuration(stageTranscription, time.Since(started))
	if err != nil {
		r.metrics.IncFailure(stageTranscription)
		return nil, err
	}
	r.metrics.IncSuccess(stageTranscription)
	return result, nil
}

func (r *Runner) analyze(ctx context.Context, result *transcription.Result) (*analysis.Insights, error) {
	started := time.Now()
	insights, err := r.insights.Analyze(ctx, result.Text, result.SpeakerText)
	r.metrics.ObserveDuration(stageAnalysis, time.Since(started))
	if err != nil {
		r.metrics.IncFailure(stageAnalysis)
		return nil, err
	}
	r.metrics.IncSuccess(stageAnalysis)
	return insights, nil
}

func (r *Runner) generateVisual(ctx context.Context, job queue.Job, summary string, insights *analysis.Insights) (string, error) {
	started := time.Now()
	visualURL, err := r.visuals.Generate(ctx, job.RecordingID, summary, insights.ActionItems, insights.Decisions, job.Filename)
	r.metrics.ObserveDuration(stageVisuals, time.Since(started))
	if err != nil {
		r.metrics.IncFailure(stageVisuals)
		return "", err
	}
	r.metrics.IncSuccess(stageVisuals)
	return visualURL, nil
}

// rootCause unwraps the application error so the stored warning reads as the
// upstream failure, not the wrapping chain.
func rootCause(err error) error {
	if appErr := pkgerrors.As(err); appErr != nil && appErr.Unwrap() != nil {
		return appErr.Unwrap()
	}
	return err
}
