package labeling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

// confidenceThreshold is strict: a candidate at exactly the threshold is
// dropped.
const confidenceThreshold = 0.6

const (
	maxEmbeddedItems       = 3
	transcriptPreviewChars = 500
)

type rulesRepository interface {
	ListActive(ctx context.Context) ([]models.LabelingRule, error)
}

type chatClient interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Engine matches active labeling rules against a recording's insights.
// Labeling is best-effort: any provider failure yields an empty label list,
// never an error to the caller.
type Engine interface {
	Apply(ctx context.Context, summary string, actionItems types.ActionItems, decisions types.Decisions, transcript string) (types.AppliedLabels, error)
}

type engine struct {
	rules rulesRepository
	chat  chatClient
	logg  *logger.Logger
}

func NewEngine(rules rulesRepository, chat chatClient, logg *logger.Logger) (Engine, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules repository required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &engine{rules: rules, chat: chat, logg: logg}, nil
}

func (e *engine) Apply(ctx context.Context, summary string, actionItems types.ActionItems, decisions types.Decisions, transcript string) (types.AppliedLabels, error) {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "loading labeling rules failed")
		return types.AppliedLabels{}, nil
	}
	if len(rules) == 0 {
		e.logg.Info(ctx, "no active labeling rules")
		return types.AppliedLabels{}, nil
	}

	prompt := buildPrompt(rules, summary, actionItems, decisions, transcript)

	raw, err := e.chat.ChatJSON(ctx, "", prompt)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "labeling request failed")
		return types.AppliedLabels{}, nil
	}

	var parsed struct {
		Labels []struct {
			LabelName  string  `json:"label_name"`
			Confidence float64 `json:"confidence"`
			Reasoning  string  `json:"reasoning"`
		} `json:"labels"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "labeling response unparseable")
		return types.AppliedLabels{}, nil
	}

	byName := make(map[string]models.LabelingRule, len(rules))
	for _, rule := range rules {
		byName[rule.LabelName] = rule
	}

	applied := types.AppliedLabels{}
	for _, candidate := range parsed.Labels {
		rule, ok := byName[candidate.LabelName]
		if !ok || candidate.Confidence <= confidenceThreshold {
			continue
		}
		applied = append(applied, types.AppliedLabel{
			LabelName:  rule.LabelName,
			LabelColor: rule.LabelColor,
			Confidence: candidate.Confidence,
		})
	}

	return applied, nil
}

func buildPrompt(rules []models.LabelingRule, summary string, actionItems types.ActionItems, decisions types.Decisions, transcript string) string {
	var b strings.Builder
	b.WriteString("Apply the following labeling rules to this meeting recording:\n\n")
	for _, rule := range rules {
		fmt.Fprintf(&b, "**%s**: %s\n", rule.LabelName, rule.RuleDescription)
	}

	b.WriteString("\nBased on the meeting content below, determine which labels should be applied.\n")
	b.WriteString(`Return a JSON object with a "labels" array of objects: {"label_name": "string", "confidence": 0.0-1.0, "reasoning": "string"}`)
	b.WriteString("\n\n")

	if summary == "" {
		summary = "No summary available"
	}
	fmt.Fprintf(&b, "Meeting Summary: %s\n\n", summary)

	fmt.Fprintf(&b, "Action Items: %d items found\n%s\n\n", len(actionItems), previewJSON(truncateActionItems(actionItems)))
	fmt.Fprintf(&b, "Decisions: %d decisions found\n%s\n\n", len(decisions), previewJSON(truncateDecisions(decisions)))
	fmt.Fprintf(&b, "Transcript Preview: %s...\n", transcriptPreview(transcript))

	return b.String()
}

func truncateActionItems(items types.ActionItems) types.ActionItems {
	if len(items) > maxEmbeddedItems {
		return items[:maxEmbeddedItems]
	}
	return items
}

func truncateDecisions(items types.Decisions) types.Decisions {
	if len(items) > maxEmbeddedItems {
		return items[:maxEmbeddedItems]
	}
	return items
}

func previewJSON(v any) string {
	switch val := v.(type) {
	case types.ActionItems:
		if len(val) == 0 {
			return "None"
		}
	case types.Decisions:
		if len(val) == 0 {
			return "None"
		}
	}
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "None"
	}
	return string(encoded)
}

// transcriptPreview truncates by rune so multibyte transcripts never embed
// a split code point into the prompt.
func transcriptPreview(transcript string) string {
	if transcript == "" {
		return "No transcript available"
	}
	runes := []rune(transcript)
	if len(runes) > transcriptPreviewChars {
		return string(runes[:transcriptPreviewChars])
	}
	return transcript
}
