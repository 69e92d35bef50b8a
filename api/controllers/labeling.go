package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirki-ai/kirki-backend/api/responses"
	"github.com/kirki-ai/kirki-backend/api/validators"
	"github.com/kirki-ai/kirki-backend/internal/labeling"
	"github.com/kirki-ai/kirki-backend/internal/rules"
	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
)

type ruleCreateRequest struct {
	LabelName       string `json:"label_name" validate:"required,max=100"`
	LabelColor      string `json:"label_color" validate:"omitempty,hexcolor"`
	RuleDescription string `json:"rule_description" validate:"required,min=10"`
	IsActive        *bool  `json:"is_active"`
}

type ruleUpdateRequest struct {
	LabelName       *string `json:"label_name" validate:"omitempty,min=1,max=100"`
	LabelColor      *string `json:"label_color" validate:"omitempty,hexcolor"`
	RuleDescription *string `json:"rule_description" validate:"omitempty,min=10"`
	IsActive        *bool   `json:"is_active"`
}

type ruleResponse struct {
	ID              int64  `json:"id"`
	LabelName       string `json:"label_name"`
	LabelColor      string `json:"label_color"`
	RuleDescription string `json:"rule_description"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func ruleResponseFromModel(rule *models.LabelingRule) ruleResponse {
	return ruleResponse{
		ID:              rule.ID,
		LabelName:       rule.LabelName,
		LabelColor:      rule.LabelColor,
		RuleDescription: rule.RuleDescription,
		IsActive:        rule.IsActive,
		CreatedAt:       rule.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       rule.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// RuleCreate handles creating a labeling rule.
func RuleCreate(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}

		var payload ruleCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateRule(r.Context(), rules.CreateRuleInput{
			LabelName:       payload.LabelName,
			LabelColor:      payload.LabelColor,
			RuleDescription: payload.RuleDescription,
			IsActive:        payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ruleResponseFromModel(created))
	}
}

// RuleList handles listing labeling rules, optionally active-only.
func RuleList(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}

		activeOnly := strings.EqualFold(r.URL.Query().Get("active_only"), "true")
		rows, err := svc.ListRules(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]ruleResponse, 0, len(rows))
		for i := range rows {
			out = append(out, ruleResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// RuleGet handles fetching one labeling rule.
func RuleGet(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "ruleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.GetRule(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ruleResponseFromModel(rule))
	}
}

// RuleUpdate handles patching a labeling rule.
func RuleUpdate(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "ruleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ruleUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateRule(r.Context(), id, rules.UpdateRuleInput{
			LabelName:       payload.LabelName,
			LabelColor:      payload.LabelColor,
			RuleDescription: payload.RuleDescription,
			IsActive:        payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ruleResponseFromModel(updated))
	}
}

// RuleDelete handles deleting a labeling rule.
func RuleDelete(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "ruleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRule(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "labeling rule deleted"})
	}
}

// LabelsApply handles on-demand labeling of one recording.
func LabelsApply(svc labeling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "labeling service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(chi.URLParam(r, "recordingID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		labels, err := svc.ApplyToRecording(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, labels)
	}
}
