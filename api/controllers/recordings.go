package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirki-ai/kirki-backend/api/responses"
	"github.com/kirki-ai/kirki-backend/api/validators"
	"github.com/kirki-ai/kirki-backend/internal/recordings"
	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"github.com/kirki-ai/kirki-backend/pkg/enums"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

type recordingResponse struct {
	ID                     int64                  `json:"id"`
	OriginalFilename       string                 `json:"original_filename"`
	MediaURL               string                 `json:"media_url"`
	FileSize               *int64                 `json:"file_size"`
	ContentType            *string                `json:"content_type"`
	Transcript             *string                `json:"transcript"`
	TranscriptWithSpeakers *string                `json:"transcript_with_speakers"`
	Duration               *float64               `json:"duration"`
	Summary                *string                `json:"summary"`
	ActionItems            types.ActionItems      `json:"action_items"`
	Decisions              types.Decisions        `json:"decisions"`
	VisualSummaryURL       *string                `json:"visual_summary_url"`
	Labels                 types.AppliedLabels    `json:"labels"`
	ProcessingStatus       enums.ProcessingStatus `json:"processing_status"`
	ProcessingError        *string                `json:"processing_error"`
	CreatedAt              string                 `json:"created_at"`
	UpdatedAt              string                 `json:"updated_at"`
}

func recordingResponseFromModel(recording *models.Recording) recordingResponse {
	return recordingResponse{
		ID:                     recording.ID,
		OriginalFilename:       recording.OriginalFilename,
		MediaURL:               recording.MediaURL,
		FileSize:               recording.FileSize,
		ContentType:            recording.ContentType,
		Transcript:             recording.Transcript,
		TranscriptWithSpeakers: recording.TranscriptWithSpeakers,
		Duration:               recording.Duration,
		Summary:                recording.Summary,
		ActionItems:            recording.ActionItems,
		Decisions:              recording.Decisions,
		VisualSummaryURL:       recording.VisualSummaryURL,
		Labels:                 recording.Labels,
		ProcessingStatus:       recording.ProcessingStatus,
		ProcessingError:        recording.ProcessingError,
		CreatedAt:              recording.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:              recording.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// RecordingList handles paginated listing of recordings.
func RecordingList(svc recordings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recording service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows := make([]recordingResponse, 0, len(result.Recordings))
		for i := range result.Recordings {
			rows = append(rows, recordingResponseFromModel(&result.Recordings[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"recordings": rows,
			"total":      result.Total,
			"limit":      result.Limit,
			"offset":     result.Offset,
		})
	}
}

// RecordingGet handles fetching one recording by id.
func RecordingGet(svc recordings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recording service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "recordingID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recording, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, recordingResponseFromModel(recording))
	}
}

// RecordingDelete handles deleting a recording and its stored media.
func RecordingDelete(svc recordings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recording service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "recordingID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "recording deleted"})
	}
}
