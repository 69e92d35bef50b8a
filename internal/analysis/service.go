package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

const (
	minTranscriptChars = 50

	shortTranscriptSummary = "Transcript too short for analysis"
	fallbackWarning        = "Used fallback analysis - action items and decisions extraction failed"
)

const extractionSystemPrompt = `You are an AI assistant specialized in analyzing meeting transcripts and recordings. Your task is to:

1. Provide a clear, concise summary of the main topics discussed
2. Extract specific action items with details about who should do what
3. Identify key decisions made and who owns them

Please analyze the transcript and return a JSON response with the following structure:

{
  "summary": "A 2-3 paragraph summary of the main discussion points and outcomes",
  "action_items": [
    {
      "description": "Clear description of what needs to be done",
      "assignee": "Person responsible (if mentioned) or null",
      "due_date": "Due date if mentioned (YYYY-MM-DD format) or null",
      "priority": "high/medium/low if indicated, or null"
    }
  ],
  "decisions": [
    {
      "description": "What was decided",
      "owner": "Person responsible for the decision or null",
      "context": "Brief context about why this decision was made",
      "impact": "Expected impact or next steps"
    }
  ]
}

Guidelines:
- Be specific and actionable
- Extract only clear, explicit action items and decisions
- If assignees/owners aren't clearly mentioned, set to null
- Keep descriptions concise but informative
- Focus on business outcomes and next steps`

// Insights is the structured output of transcript analysis. Warning is set
// when the structured request failed and a degraded plain summarization was
// used instead, so callers can tell a degraded result from a clean one.
type Insights struct {
	Summary     *string
	ActionItems types.ActionItems
	Decisions   types.Decisions
	Warning     string
}

type chatClient interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service extracts summary, action items and decisions from a transcript.
type Service interface {
	Analyze(ctx context.Context, transcript, speakerTranscript string) (*Insights, error)
}

type service struct {
	chat chatClient
	logg *logger.Logger
}

func NewService(chat chatClient, logg *logger.Logger) (Service, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{chat: chat, logg: logg}, nil
}

func (s *service) Analyze(ctx context.Context, transcript, speakerTranscript string) (*Insights, error) {
	text := speakerTranscript
	if strings.TrimSpace(text) == "" {
		text = transcript
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < minTranscriptChars {
		s.logg.Warn(ctx, "transcript too short for meaningful analysis")
		summary := shortTranscriptSummary
		return &Insights{
			Summary:     &summary,
			ActionItems: types.ActionItems{},
			Decisions:   types.Decisions{},
		}, nil
	}

	userPrompt := fmt.Sprintf("Please analyze this transcript and extract the summary, action items, and decisions:\n\nTRANSCRIPT:\n%s\n\nReturn only valid JSON in the specified format.", text)

	raw, err := s.chat.ChatJSON(ctx, extractionSystemPrompt, userPrompt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "analysis request failed")
	}

	var parsed struct {
		Summary     *string           `json:"summary"`
		ActionItems types.ActionItems `json:"action_items"`
		Decisions   types.Decisions   `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "structured analysis unparseable, using fallback summarization")
		return s.fallback(ctx, text)
	}

	if parsed.ActionItems == nil {
		parsed.ActionItems = types.ActionItems{}
	}
	if parsed.Decisions == nil {
		parsed.Decisions = types.Decisions{}
	}

	return &Insights{
		Summary:     parsed.Summary,
		ActionItems: parsed.ActionItems,
		Decisions:   parsed.Decisions,
	}, nil
}

// fallback runs one plain summarization request when the structured response
// could not be parsed.
func (s *service) fallback(ctx context.Context, text string) (*Insights, error) {
	prompt := fmt.Sprintf("Please provide a concise 2-3 paragraph summary of this transcript:\n\n%s", text)

	summary, err := s.chat.Chat(ctx, "", prompt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fallback analysis failed")
	}

	return &Insights{
		Summary:     &summary,
		ActionItems: types.ActionItems{},
		Decisions:   types.Decisions{},
		Warning:     fallbackWarning,
	}, nil
}
