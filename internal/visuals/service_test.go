package visuals

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirki-ai/kirki-backend/pkg/logger"
	storagegcs "github.com/kirki-ai/kirki-backend/pkg/storage/gcs"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

func strPtr(s string) *string { return &s }

func actionItemsOf(n int, description string) types.ActionItems {
	items := make(types.ActionItems, n)
	for i := range items {
		items[i] = types.ActionItem{Description: description}
	}
	return items
}

func decisionsOf(n int) types.Decisions {
	items := make(types.Decisions, n)
	for i := range items {
		items[i] = types.Decision{Description: "decide something"}
	}
	return items
}

func TestAnalyzeFlowComplexityBuckets(t *testing.T) {
	cases := []struct {
		name      string
		actions   int
		decisions int
		want      string
	}{
		{"three items is simple", 1, 2, ComplexitySimple},
		{"empty is simple", 0, 0, ComplexitySimple},
		{"four items is moderate", 2, 2, ComplexityModerate},
		{"seven items is moderate", 4, 3, ComplexityModerate},
		{"eight items is complex", 5, 3, ComplexityComplex},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := AnalyzeFlow(actionItemsOf(tc.actions, "do the thing"), decisionsOf(tc.decisions))
			if profile.Complexity != tc.want {
				t.Errorf("complexity = %q, want %q", profile.Complexity, tc.want)
			}
		})
	}
}

func TestAnalyzeFlowTimelineAndPriorityDetection(t *testing.T) {
	items := types.ActionItems{
		{Description: "Ship the report", DueDate: strPtr("2026-09-15")},
		{Description: "Finish the deck before Friday"},
	}
	profile := AnalyzeFlow(items, nil)
	if !profile.HasTimeline {
		t.Error("expected timeline detection from 'before' keyword")
	}

	withPriority := types.ActionItems{{Description: "Handle the urgent incident"}}
	profile = AnalyzeFlow(withPriority, nil)
	if !profile.HasPriorities {
		t.Error("expected priority detection from 'urgent' keyword")
	}

	plain := types.ActionItems{{Description: "Ship it"}}
	profile = AnalyzeFlow(plain, nil)
	if profile.HasTimeline || profile.HasPriorities {
		t.Errorf("unexpected flags for plain item: %+v", profile)
	}
}

func TestBuildPromptNeverEmbedsMeetingText(t *testing.T) {
	profile := AnalyzeFlow(types.ActionItems{{Description: "secret acquisition plan"}}, nil)
	prompt := BuildPrompt(profile, 1, 0)
	if strings.Contains(prompt, "secret") {
		t.Error("prompt must not contain meeting text")
	}
	if !strings.Contains(prompt, "No text or words in the diagram") {
		t.Error("prompt missing no-text constraint")
	}
}

type fakeImages struct {
	generateErr error
	fetchErr    error
	prompt      string
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return "https://images.example/temp.png", nil
}

func (f *fakeImages) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []byte("png-bytes"), nil
}

type fakeStore struct {
	uploadErr error
	objectKey string
}

func (f *fakeStore) Upload(ctx context.Context, objectKey string, content []byte, contentType string) (*storagegcs.Object, error) {
	f.objectKey = objectKey
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &storagegcs.Object{Path: objectKey, PublicURL: "https://storage.example/" + objectKey, Size: int64(len(content))}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestGenerateStoresUnderRecordingDerivedKey(t *testing.T) {
	images := &fakeImages{}
	store := &fakeStore{}
	svc, err := NewService(images, store, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	url, err := svc.Generate(context.Background(), 42, "summary", nil, decisionsOf(1), "standup.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.objectKey != "visual_summary_42.png" {
		t.Errorf("objectKey = %q, want visual_summary_42.png", store.objectKey)
	}
	if url == "" {
		t.Error("expected public URL")
	}
}

func TestGenerateSurfacesStepFailures(t *testing.T) {
	svcWith := func(images *fakeImages, store *fakeStore) Service {
		svc, err := NewService(images, store, testLogger())
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		return svc
	}

	if _, err := svcWith(&fakeImages{generateErr: errors.New("no capacity")}, &fakeStore{}).Generate(context.Background(), 1, "s", nil, nil, "f"); err == nil {
		t.Error("expected error from generation failure")
	}
	if _, err := svcWith(&fakeImages{fetchErr: errors.New("gone")}, &fakeStore{}).Generate(context.Background(), 1, "s", nil, nil, "f"); err == nil {
		t.Error("expected error from download failure")
	}
	if _, err := svcWith(&fakeImages{}, &fakeStore{uploadErr: errors.New("bucket down")}).Generate(context.Background(), 1, "s", nil, nil, "f"); err == nil {
		t.Error("expected error from upload failure")
	}
}
