package search

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
)

type stubMatcher struct {
	rows     []models.Recording
	lastTerm string
}

func (s *stubMatcher) Match(ctx context.Context, term string, limit int) ([]models.Recording, error) {
	s.lastTerm = term
	return s.rows, nil
}

func ptr(s string) *string { return &s }

func TestSearchRejectsBlankQuery(t *testing.T) {
	svc, _ := NewService(&stubMatcher{})

	_, err := svc.Search(context.Background(), "   ", 10)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchBuildsExcerptAroundMatch(t *testing.T) {
	long := strings.Repeat("padding ", 30) + "the budget review starts Monday " + strings.Repeat("padding ", 30)
	matcher := &stubMatcher{rows: []models.Recording{{
		ID:               1,
		OriginalFilename: "standup.mp3",
		Transcript:       ptr(long),
		CreatedAt:        time.Now(),
	}}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget review", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	got := results[0]
	if !strings.Contains(got.Excerpt, "budget review") {
		t.Fatalf("excerpt does not contain the match: %q", got.Excerpt)
	}
	if !strings.HasPrefix(got.Excerpt, "...") || !strings.HasSuffix(got.Excerpt, "...") {
		t.Fatalf("expected truncation markers on both sides: %q", got.Excerpt)
	}
	if got.Similarity != similarityExact {
		t.Fatalf("expected exact-match similarity, got %v", got.Similarity)
	}
}

func TestSearchFallsBackToTranscriptHead(t *testing.T) {
	matcher := &stubMatcher{rows: []models.Recording{{
		ID:               2,
		OriginalFilename: "budget-sync.mp3",
		Transcript:       ptr("short transcript without the term"),
		CreatedAt:        time.Now(),
	}}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if results[0].Excerpt != "short transcript without the term" {
		t.Fatalf("expected transcript head fallback, got %q", results[0].Excerpt)
	}
	if results[0].Similarity != similarityPartial {
		t.Fatalf("expected partial similarity, got %v", results[0].Similarity)
	}
}

func TestSearchRanksFilenameMatchesFirst(t *testing.T) {
	now := time.Now()
	matcher := &stubMatcher{rows: []models.Recording{
		{ID: 1, OriginalFilename: "weekly-sync.mp3", Transcript: ptr("we covered the budget today"), CreatedAt: now},
		{ID: 2, OriginalFilename: "budget-review.mp3", Transcript: ptr("unrelated discussion"), CreatedAt: now.Add(-time.Hour)},
	}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if results[0].RecordingID != 2 {
		t.Fatalf("expected filename match ranked first, got recording %d", results[0].RecordingID)
	}
}

func TestSearchPrefersSpeakerTranscript(t *testing.T) {
	matcher := &stubMatcher{rows: []models.Recording{{
		ID:                     3,
		OriginalFilename:       "standup.mp3",
		Transcript:             ptr("plain text with budget"),
		TranscriptWithSpeakers: ptr("[Speaker A]: speaker text with budget"),
		CreatedAt:              time.Now(),
	}}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !strings.Contains(results[0].Excerpt, "[Speaker A]") {
		t.Fatalf("expected excerpt from the speaker transcript, got %q", results[0].Excerpt)
	}
}

func TestSearchExcerptKeepsMultibyteRunesIntact(t *testing.T) {
	long := strings.Repeat("会議", 100) + "budget" + strings.Repeat("会議", 100)
	matcher := &stubMatcher{rows: []models.Recording{{
		ID:               1,
		OriginalFilename: "standup.mp3",
		Transcript:       ptr(long),
		CreatedAt:        time.Now(),
	}}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	excerpt := results[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Fatalf("excerpt contains invalid UTF-8: %q", excerpt)
	}
	if !strings.Contains(excerpt, "budget") {
		t.Fatalf("excerpt does not contain the match: %q", excerpt)
	}
}

func TestSearchFallbackExcerptKeepsMultibyteRunesIntact(t *testing.T) {
	matcher := &stubMatcher{rows: []models.Recording{{
		ID:               1,
		OriginalFilename: "budget-sync.mp3",
		Transcript:       ptr(strings.Repeat("会議", 200)),
		CreatedAt:        time.Now(),
	}}}
	svc, _ := NewService(matcher)

	results, err := svc.Search(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	excerpt := results[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Fatalf("excerpt contains invalid UTF-8: %q", excerpt)
	}
	if got := utf8.RuneCountInString(strings.TrimSuffix(excerpt, "...")); got != excerptFallback {
		t.Fatalf("fallback excerpt rune count = %d, want %d", got, excerptFallback)
	}
}
