package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirki-ai/kirki-backend/api/responses"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
)

// JobStatus handles polling the status of a queued processing job.
func JobStatus(dispatcher *queue.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job dispatcher unavailable"))
			return
		}

		jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
		if jobID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "job id is required"))
			return
		}

		status, err := dispatcher.Lookup(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
