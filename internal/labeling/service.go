package labeling

import (
	"context"
	"fmt"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

type recordingsRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Recording, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
}

// Service applies labeling rules to stored recordings on demand.
type Service interface {
	ApplyToRecording(ctx context.Context, recordingID int64) (types.AppliedLabels, error)
}

type service struct {
	engine     Engine
	recordings recordingsRepository
}

// NewLabelingService builds the on-demand labeling service.
func NewLabelingService(engine Engine, recordings recordingsRepository) (Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("labeling engine required")
	}
	if recordings == nil {
		return nil, fmt.Errorf("recordings repository required")
	}
	return &service{engine: engine, recordings: recordings}, nil
}

func (s *service) ApplyToRecording(ctx context.Context, recordingID int64) (types.AppliedLabels, error) {
	recording, err := s.recordings.FindByID(ctx, recordingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recording")
	}
	if recording == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recording not found")
	}
	if recording.Summary == nil || *recording.Summary == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recording must be analyzed before labeling")
	}

	transcript := ""
	if recording.Transcript != nil {
		transcript = *recording.Transcript
	}
	labels, err := s.engine.Apply(ctx, *recording.Summary, recording.ActionItems, recording.Decisions, transcript)
	if err != nil {
		return nil, err
	}

	if err := s.recordings.UpdateFields(ctx, recordingID, map[string]any{"labels": labels}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist labels")
	}
	return labels, nil
}
