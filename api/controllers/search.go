package controllers

import (
	"net/http"

	"github.com/kirki-ai/kirki-backend/api/responses"
	"github.com/kirki-ai/kirki-backend/api/validators"
	"github.com/kirki-ai/kirki-backend/internal/search"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
)

// Search handles keyword search over completed recordings.
func Search(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search service unavailable"))
			return
		}

		query := r.URL.Query().Get("query")
		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, 50)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.Search(r.Context(), query, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Results reflect live pipeline state; intermediaries must not cache them.
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		responses.WriteSuccess(w, map[string]any{
			"query":         query,
			"results":       results,
			"total_results": len(results),
		})
	}
}
