package labeling

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
)

type fakeRules struct {
	rules []models.LabelingRule
	err   error
}

func (f *fakeRules) ListActive(ctx context.Context) ([]models.LabelingRule, error) {
	return f.rules, f.err
}

type fakeChat struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeChat) ChatJSON(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastUser = user
	return f.response, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newEngine(t *testing.T, rules *fakeRules, chat *fakeChat) Engine {
	t.Helper()
	eng, err := NewEngine(rules, chat, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func activeRule(name, color string) models.LabelingRule {
	return models.LabelingRule{LabelName: name, LabelColor: color, RuleDescription: "matches " + name + " discussions", IsActive: true}
}

func TestApplyConfidenceBoundaryIsStrict(t *testing.T) {
	rules := &fakeRules{rules: []models.LabelingRule{
		activeRule("Budget", "#FF0000"),
		activeRule("Hiring", "#00FF00"),
	}}
	chat := &fakeChat{response: `{"labels":[
		{"label_name":"Budget","confidence":0.6,"reasoning":"mentions budget"},
		{"label_name":"Hiring","confidence":0.61,"reasoning":"mentions hiring"}
	]}`}

	eng := newEngine(t, rules, chat)
	got, err := eng.Apply(context.Background(), "summary", nil, nil, "transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("applied labels = %d, want 1", len(got))
	}
	if got[0].LabelName != "Hiring" || got[0].LabelColor != "#00FF00" {
		t.Errorf("got %+v, want Hiring with rule color", got[0])
	}
	if got[0].Confidence != 0.61 {
		t.Errorf("confidence = %v, want 0.61", got[0].Confidence)
	}
}

func TestApplyDropsUnknownRuleNames(t *testing.T) {
	rules := &fakeRules{rules: []models.LabelingRule{activeRule("Budget", "#FF0000")}}
	chat := &fakeChat{response: `{"labels":[{"label_name":"Unrelated","confidence":0.9,"reasoning":"x"}]}`}

	eng := newEngine(t, rules, chat)
	got, err := eng.Apply(context.Background(), "summary", nil, nil, "transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("applied labels = %d, want 0", len(got))
	}
}

func TestApplyNoActiveRulesSkipsRemoteCall(t *testing.T) {
	rules := &fakeRules{}
	chat := &fakeChat{}

	eng := newEngine(t, rules, chat)
	got, err := eng.Apply(context.Background(), "summary", nil, nil, "transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("applied labels = %d, want 0", len(got))
	}
	if chat.calls != 0 {
		t.Errorf("chat calls = %d, want 0", chat.calls)
	}
}

func TestApplyRequestFailureDegradesToEmpty(t *testing.T) {
	rules := &fakeRules{rules: []models.LabelingRule{activeRule("Budget", "#FF0000")}}
	chat := &fakeChat{err: errors.New("remote down")}

	eng := newEngine(t, rules, chat)
	got, err := eng.Apply(context.Background(), "summary", nil, nil, "transcript")
	if err != nil {
		t.Fatalf("labeling must never surface provider errors, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("applied labels = %d, want 0", len(got))
	}
}

func TestApplyPromptEmbedsRulesAndPreview(t *testing.T) {
	rules := &fakeRules{rules: []models.LabelingRule{activeRule("Budget", "#FF0000")}}
	chat := &fakeChat{response: `{"labels":[]}`}

	eng := newEngine(t, rules, chat)
	longTranscript := strings.Repeat("t", 600)
	if _, err := eng.Apply(context.Background(), "the summary", nil, nil, longTranscript); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(chat.lastUser, "**Budget**") {
		t.Error("prompt missing rule name")
	}
	if !strings.Contains(chat.lastUser, "the summary") {
		t.Error("prompt missing summary")
	}
	if strings.Contains(chat.lastUser, strings.Repeat("t", 501)) {
		t.Error("transcript preview not truncated to 500 characters")
	}
}

func TestTranscriptPreviewKeepsMultibyteRunesIntact(t *testing.T) {
	preview := transcriptPreview(strings.Repeat("日", 600))
	if !utf8.ValidString(preview) {
		t.Fatal("preview contains invalid UTF-8")
	}
	if got := utf8.RuneCountInString(preview); got != 500 {
		t.Fatalf("preview rune count = %d, want 500", got)
	}
}
