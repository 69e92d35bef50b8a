package labeling

import (
	"context"
	"testing"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

type stubEngine struct {
	labels types.AppliedLabels
	calls  int
}

func (s *stubEngine) Apply(ctx context.Context, summary string, actionItems types.ActionItems, decisions types.Decisions, transcript string) (types.AppliedLabels, error) {
	s.calls++
	return s.labels, nil
}

type stubRecordings struct {
	recording *models.Recording
	updates   map[string]any
}

func (s *stubRecordings) FindByID(ctx context.Context, id int64) (*models.Recording, error) {
	return s.recording, nil
}

func (s *stubRecordings) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	s.updates = fields
	return nil
}

func TestApplyToRecordingPersistsLabels(t *testing.T) {
	summary := "Quarterly planning recap"
	engine := &stubEngine{labels: types.AppliedLabels{{LabelName: "Planning", LabelColor: "#3B82F6", Confidence: 0.9}}}
	repo := &stubRecordings{recording: &models.Recording{ID: 7, Summary: &summary}}

	svc, err := NewLabelingService(engine, repo)
	if err != nil {
		t.Fatalf("NewLabelingService returned error: %v", err)
	}

	labels, err := svc.ApplyToRecording(context.Background(), 7)
	if err != nil {
		t.Fatalf("ApplyToRecording returned error: %v", err)
	}
	if len(labels) != 1 || labels[0].LabelName != "Planning" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
	if engine.calls != 1 {
		t.Fatalf("expected one engine call, got %d", engine.calls)
	}
	stored, ok := repo.updates["labels"].(types.AppliedLabels)
	if !ok || len(stored) != 1 {
		t.Fatalf("labels were not persisted: %v", repo.updates)
	}
}

func TestApplyToRecordingRequiresAnalysis(t *testing.T) {
	engine := &stubEngine{}
	repo := &stubRecordings{recording: &models.Recording{ID: 7}}

	svc, _ := NewLabelingService(engine, repo)
	_, err := svc.ApplyToRecording(context.Background(), 7)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatal("engine must not run on unanalyzed recordings")
	}
}

func TestApplyToRecordingUnknownID(t *testing.T) {
	svc, _ := NewLabelingService(&stubEngine{}, &stubRecordings{})

	_, err := svc.ApplyToRecording(context.Background(), 9)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
