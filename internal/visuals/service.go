package visuals

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	storagegcs "github.com/kirki-ai/kirki-backend/pkg/storage/gcs"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

// Complexity buckets for the flow profile.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

var (
	timelineKeywords = []string{"due", "deadline", "by", "until", "before", "after", "next", "first", "then", "finally"}
	priorityKeywords = []string{"priority", "urgent", "critical", "important", "high", "low", "medium"}
)

// FlowProfile describes the shape of a meeting's outcomes, derived by fixed
// heuristics. It drives the image prompt without leaking meeting text.
type FlowProfile struct {
	Complexity    string
	HasTimeline   bool
	HasPriorities bool
}

type imageClient interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

type objectStore interface {
	Upload(ctx context.Context, objectKey string, content []byte, contentType string) (*storagegcs.Object, error)
}

// Service turns structured insights into a generated diagram persisted in
// object storage. Failure at any step is reported to the caller, who treats
// it as non-fatal.
type Service interface {
	Generate(ctx context.Context, recordingID int64, summary string, actionItems types.ActionItems, decisions types.Decisions, filename string) (string, error)
}

type service struct {
	images imageClient
	store  objectStore
	logg   *logger.Logger
}

func NewService(images imageClient, store objectStore, logg *logger.Logger) (Service, error) {
	if images == nil {
		return nil, fmt.Errorf("image client required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{images: images, store: store, logg: logg}, nil
}

func (s *service) Generate(ctx context.Context, recordingID int64, summary string, actionItems types.ActionItems, decisions types.Decisions, filename string) (string, error) {
	prompt := BuildPrompt(AnalyzeFlow(actionItems, decisions), len(actionItems), len(decisions))

	imageURL, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "image generation failed")
	}

	content, err := s.images.FetchImage(ctx, imageURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "image download failed")
	}

	objectKey := fmt.Sprintf("visual_summary_%d.png", recordingID)
	object, err := s.store.Upload(ctx, objectKey, content, "image/png")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "visual upload failed")
	}

	s.logg.Info(s.logg.WithRecordingID(ctx, recordingID), "visual summary stored")
	return object.PublicURL, nil
}

// AnalyzeFlow derives the content-flow profile from item counts and fixed
// keyword scans over the stringified action items.
func AnalyzeFlow(actionItems types.ActionItems, decisions types.Decisions) FlowProfile {
	profile := FlowProfile{Complexity: ComplexitySimple}

	total := len(actionItems) + len(decisions)
	switch {
	case total <= 3:
		profile.Complexity = ComplexitySimple
	case total <= 7:
		profile.Complexity = ComplexityModerate
	default:
		profile.Complexity = ComplexityComplex
	}

	for _, item := range actionItems {
		text := stringifyItem(item)
		if !profile.HasTimeline && containsAny(text, timelineKeywords) {
			profile.HasTimeline = true
		}
		if !profile.HasPriorities && containsAny(text, priorityKeywords) {
			profile.HasPriorities = true
		}
	}

	return profile
}

// BuildPrompt produces the deterministic image prompt. Shapes, colors and
// counts only: no meeting text ever reaches the image service.
func BuildPrompt(profile FlowProfile, actionCount, decisionCount int) string {
	parts := []string{
		"Create a professional decision tree flowchart diagram with a modern, clean design.",
		"The flowchart should show logical decision paths and action flows in a business context.",
	}

	if decisionCount > 0 {
		parts = append(parts,
			fmt.Sprintf("Include %d main decision nodes represented as diamond shapes.", decisionCount),
			"Each decision node should branch into different paths showing outcomes.",
		)
	}
	if actionCount > 0 {
		parts = append(parts,
			fmt.Sprintf("Include %d action/process nodes shown as rectangular boxes.", actionCount),
			"Connect action nodes to decision nodes with directional arrows.",
		)
	}

	switch profile.Complexity {
	case ComplexitySimple:
		parts = append(parts, "Create a straightforward linear flow with 2-3 main branches.")
	case ComplexityModerate:
		parts = append(parts, "Create a moderate complexity tree with multiple decision points and 4-6 branches.")
	default:
		parts = append(parts, "Create a comprehensive decision tree with multiple levels and parallel processes.")
	}

	if profile.HasTimeline {
		parts = append(parts, "Include timeline indicators or sequential numbering to show order of execution.")
	}
	if profile.HasPriorities {
		parts = append(parts, "Use color coding to indicate priority levels (red for high, yellow for medium, green for low priority).")
	}

	parts = append(parts,
		"Use a professional business color scheme with blues, greens, and gray tones.",
		"Include standard flowchart symbols: diamonds for decisions, rectangles for processes, circles for start/end points.",
		"Add directional arrows to show the flow between elements.",
		"Keep the design clean and readable with proper spacing between elements.",
		"No text or words in the diagram - use shapes, colors, and flow indicators only.",
		"The style should be similar to professional business process diagrams and organizational charts.",
	)

	return strings.Join(parts, " ")
}

// stringifyItem flattens an action item's populated fields for keyword
// scanning. Field names stay out so the scan reflects content, not schema.
func stringifyItem(item types.ActionItem) string {
	parts := []string{item.Description}
	for _, field := range []*string{item.Assignee, item.DueDate, item.Priority} {
		if field != nil {
			parts = append(parts, *field)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
