package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"github.com/kirki-ai/kirki-backend/pkg/enums"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"gorm.io/gorm"
)

const (
	excerptRadius   = 75
	excerptFallback = 150

	similarityExact   = 0.9
	similarityPartial = 0.8
)

// Result is one search hit with an excerpt around the first match.
type Result struct {
	RecordingID    int64    `json:"recording_id"`
	RecordingTitle string   `json:"recording_title"`
	Excerpt        string   `json:"excerpt"`
	Similarity     float64  `json:"similarity"`
	CreatedAt      string   `json:"created_at"`
	Duration       *float64 `json:"duration"`
}

// Repository runs the recording text-match query.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a search repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Match returns completed recordings whose transcript, speaker transcript,
// filename, or summary contains the term.
func (r *Repository) Match(ctx context.Context, term string, limit int) ([]models.Recording, error) {
	pattern := "%" + term + "%"
	var rows []models.Recording
	err := r.db.WithContext(ctx).
		Where("processing_status = ?", enums.ProcessingStatusCompleted).
		Where(
			r.db.Where("transcript ILIKE ?", pattern).
				Or("transcript_with_speakers ILIKE ?", pattern).
				Or("original_filename ILIKE ?", pattern).
				Or("summary ILIKE ?", pattern),
		).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type matcher interface {
	Match(ctx context.Context, term string, limit int) ([]models.Recording, error)
}

// Service turns matched recordings into ranked results with excerpts.
type Service interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type service struct {
	repo matcher
}

// NewService builds a search service backed by the provided repository.
func NewService(repo matcher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("search repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query cannot be empty")
	}

	rows, err := s.repo.Match(ctx, term, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search recordings")
	}

	results := make([]Result, 0, len(rows))
	for _, recording := range rows {
		transcript := ""
		if recording.TranscriptWithSpeakers != nil && *recording.TranscriptWithSpeakers != "" {
			transcript = *recording.TranscriptWithSpeakers
		} else if recording.Transcript != nil {
			transcript = *recording.Transcript
		}
		excerpt, similarity := buildExcerpt(transcript, term)
		results = append(results, Result{
			RecordingID:    recording.ID,
			RecordingTitle: recording.OriginalFilename,
			Excerpt:        excerpt,
			Similarity:     similarity,
			CreatedAt:      recording.CreatedAt.UTC().Format(time.RFC3339),
			Duration:       recording.Duration,
		})
	}

	// Filename matches outrank transcript matches, then stronger matches,
	// then newer recordings.
	lowered := strings.ToLower(term)
	sort.SliceStable(results, func(i, j int) bool {
		iTitle := strings.Contains(strings.ToLower(results[i].RecordingTitle), lowered)
		jTitle := strings.Contains(strings.ToLower(results[j].RecordingTitle), lowered)
		if iTitle != jTitle {
			return iTitle
		}
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})
	return results, nil
}

// buildExcerpt centers a window on the first occurrence of the term, falling
// back to the transcript head when the match came from another column. The
// window is measured in runes so a multibyte transcript is never cut mid
// code point.
func buildExcerpt(transcript, term string) (string, float64) {
	lowerTranscript := strings.ToLower(transcript)
	lowerTerm := strings.ToLower(term)

	runes := []rune(transcript)

	pos := strings.Index(lowerTranscript, lowerTerm)
	if pos < 0 {
		if len(runes) <= excerptFallback {
			return transcript, similarityPartial
		}
		return string(runes[:excerptFallback]) + "...", similarityPartial
	}

	matchStart := utf8.RuneCountInString(lowerTranscript[:pos])
	start := matchStart - excerptRadius
	if start < 0 {
		start = 0
	}
	end := matchStart + utf8.RuneCountInString(lowerTerm) + excerptRadius
	if end > len(runes) {
		end = len(runes)
	}
	excerpt := string(runes[start:end])
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(runes) {
		excerpt = excerpt + "..."
	}
	return excerpt, similarityExact
}
