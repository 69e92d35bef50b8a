package recordings

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirki-ai/kirki-backend/pkg/config"
	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"github.com/kirki-ai/kirki-backend/pkg/enums"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
	storagegcs "github.com/kirki-ai/kirki-backend/pkg/storage/gcs"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

type recordingsRepository interface {
	Create(ctx context.Context, recording *models.Recording) (*models.Recording, error)
	FindByID(ctx context.Context, id int64) (*models.Recording, error)
	List(ctx context.Context, limit, offset int) ([]models.Recording, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
}

type objectStore interface {
	Upload(ctx context.Context, objectKey string, content []byte, contentType string) (*storagegcs.Object, error)
	Delete(ctx context.Context, objectKey string) (bool, error)
}

type jobDispatcher interface {
	Enqueue(ctx context.Context, job queue.Job) (*queue.Handle, error)
}

// UploadInput carries one file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ListResult pairs one page of recordings with the overall total.
type ListResult struct {
	Recordings []models.Recording
	Total      int64
	Limit      int
	Offset     int
}

// Service owns the recording lifecycle: intake, retrieval, deletion, and the
// status transitions the pipeline drives a recording through.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*models.Recording, *queue.Handle, error)
	Get(ctx context.Context, id int64) (*models.Recording, error)
	List(ctx context.Context, limit, offset int) (*ListResult, error)
	Delete(ctx context.Context, id int64) error

	BeginProcessing(ctx context.Context, id int64) error
	FailProcessing(ctx context.Context, id int64, cause error) error
	FinishTranscription(ctx context.Context, id int64, transcript, speakerTranscript string, duration float64) error
	FinishAnalysis(ctx context.Context, id int64, summary string, actionItems types.ActionItems, decisions types.Decisions, warning string) error
	CompleteWithAnalysisWarning(ctx context.Context, id int64, cause error) error
	CompleteWithVisual(ctx context.Context, id int64, visualURL string) error
	CompleteWithVisualWarning(ctx context.Context, id int64) error
	ApplyLabels(ctx context.Context, id int64, labels types.AppliedLabels) error
}

type service struct {
	repo       recordingsRepository
	store      objectStore
	dispatcher jobDispatcher
	maxBytes   int64
	logg       *logger.Logger
}

// NewService builds a recording service backed by the provided repository,
// object store, and job dispatcher.
func NewService(repo recordingsRepository, store objectStore, dispatcher jobDispatcher, upload config.UploadConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("recordings repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("job dispatcher required")
	}
	if upload.MaxUploadBytes() <= 0 {
		return nil, fmt.Errorf("upload limit must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		store:      store,
		dispatcher: dispatcher,
		maxBytes:   upload.MaxUploadBytes(),
		logg:       logg,
	}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*models.Recording, *queue.Handle, error) {
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	if len(input.Content) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if !enums.IsAllowedUpload(input.ContentType) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported content type %q", input.ContentType))
	}
	if int64(len(input.Content)) > s.maxBytes {
		return nil, nil, pkgerrors.New(pkgerrors.CodeTooLarge, fmt.Sprintf("file exceeds the %d byte upload limit", s.maxBytes))
	}

	objectKey := storageKey(filename)
	object, err := s.store.Upload(ctx, objectKey, input.Content, input.ContentType)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store uploaded file")
	}

	size := int64(len(input.Content))
	contentType := input.ContentType
	recording := &models.Recording{
		OriginalFilename: filename,
		MediaURL:         object.PublicURL,
		StoragePath:      objectKey,
		FileSize:         &size,
		ContentType:      &contentType,
		ProcessingStatus: enums.ProcessingStatusPending,
	}
	recording, err = s.repo.Create(ctx, recording)
	if err != nil {
		if _, delErr := s.store.Delete(ctx, objectKey); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "orphaned upload cleanup failed")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create recording")
	}

	if !enums.IsTranscribable(input.ContentType) {
		return recording, nil, nil
	}

	handle, err := s.dispatcher.Enqueue(ctx, queue.Job{
		ID:          uuid.NewString(),
		RecordingID: recording.ID,
		StorageKey:  objectKey,
		ContentType: input.ContentType,
		Filename:    filename,
		EnqueuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue processing job")
	}
	return recording, handle, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Recording, error) {
	recording, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recording")
	}
	if recording == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recording not found")
	}
	return recording, nil
}

func (s *service) List(ctx context.Context, limit, offset int) (*ListResult, error) {
	rows, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recordings")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recordings")
	}
	return &ListResult{Recordings: rows, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	recording, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete recording")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "recording not found")
	}
	// Stored objects are removed best-effort; the row is already gone.
	if recording.StoragePath != "" {
		if _, delErr := s.store.Delete(ctx, recording.StoragePath); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "stored media cleanup failed")
		}
	}
	if recording.VisualSummaryURL != nil && *recording.VisualSummaryURL != "" {
		visualKey := fmt.Sprintf("visual_summary_%d.png", id)
		if _, delErr := s.store.Delete(ctx, visualKey); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "visual summary cleanup failed")
		}
	}
	return nil
}

func (s *service) BeginProcessing(ctx context.Context, id int64) error {
	return s.transition(ctx, id, enums.ProcessingStatusProcessing, map[string]any{
		"processing_error": nil,
	})
}

func (s *service) FailProcessing(ctx context.Context, id int64, cause error) error {
	message := "transcription failed"
	if cause != nil {
		message = cause.Error()
	}
	return s.transition(ctx, id, enums.ProcessingStatusFailed, map[string]any{
		"transcript":       "",
		"processing_error": message,
	})
}

func (s *service) FinishTranscription(ctx context.Context, id int64, transcript, speakerTranscript string, duration float64) error {
	return s.transition(ctx, id, enums.ProcessingStatusAnalyzing, map[string]any{
		"transcript":               transcript,
		"transcript_with_speakers": speakerTranscript,
		"duration":                 duration,
	})
}

func (s *service) FinishAnalysis(ctx context.Context, id int64, summary string, actionItems types.ActionItems, decisions types.Decisions, warning string) error {
	fields := map[string]any{
		"summary":      summary,
		"action_items": actionItems,
		"decisions":    decisions,
	}
	if warning != "" {
		fields["processing_error"] = warning
	}
	return s.transition(ctx, id, enums.ProcessingStatusGeneratingVisuals, fields)
}

func (s *service) CompleteWithAnalysisWarning(ctx context.Context, id int64, cause error) error {
	return s.transition(ctx, id, enums.ProcessingStatusCompleted, map[string]any{
		"processing_error": fmt.Sprintf("Analysis failed: %v", cause),
	})
}

func (s *service) CompleteWithVisual(ctx context.Context, id int64, visualURL string) error {
	return s.transition(ctx, id, enums.ProcessingStatusCompleted, map[string]any{
		"visual_summary_url": visualURL,
	})
}

func (s *service) CompleteWithVisualWarning(ctx context.Context, id int64) error {
	return s.transition(ctx, id, enums.ProcessingStatusCompleted, map[string]any{
		"processing_error": "Visual summary generation failed",
	})
}

func (s *service) ApplyLabels(ctx context.Context, id int64, labels types.AppliedLabels) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"labels": labels}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist labels")
	}
	return nil
}

// transition moves a recording to next after checking the state machine edge
// exists from its current status.
func (s *service) transition(ctx context.Context, id int64, next enums.ProcessingStatus, fields map[string]any) error {
	recording, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !recording.ProcessingStatus.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move recording from %s to %s", recording.ProcessingStatus, next))
	}
	fields["processing_status"] = next
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update recording status")
	}
	return nil
}

// storageKey builds a date-partitioned object key with a random filename so
// concurrent uploads of the same file never collide.
func storageKey(filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("uploads/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
