package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
)

const (
	defaultLabelColor  = "#3B82F6"
	maxLabelNameLength = 100
	minDescriptionLen  = 10
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type rulesRepository interface {
	Create(ctx context.Context, rule *models.LabelingRule) (*models.LabelingRule, error)
	List(ctx context.Context, activeOnly bool) ([]models.LabelingRule, error)
	FindByID(ctx context.Context, id int64) (*models.LabelingRule, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// CreateRuleInput holds the fields accepted when creating a rule.
type CreateRuleInput struct {
	LabelName       string
	LabelColor      string
	RuleDescription string
	IsActive        *bool
}

// UpdateRuleInput patches a rule. Nil fields are left untouched.
type UpdateRuleInput struct {
	LabelName       *string
	LabelColor      *string
	RuleDescription *string
	IsActive        *bool
}

// Service owns labeling-rule configuration.
type Service interface {
	CreateRule(ctx context.Context, input CreateRuleInput) (*models.LabelingRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]models.LabelingRule, error)
	GetRule(ctx context.Context, id int64) (*models.LabelingRule, error)
	UpdateRule(ctx context.Context, id int64, input UpdateRuleInput) (*models.LabelingRule, error)
	DeleteRule(ctx context.Context, id int64) error
}

type service struct {
	repo rulesRepository
}

// NewService builds a labeling-rule service backed by the provided repository.
func NewService(repo rulesRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rules repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateRule(ctx context.Context, input CreateRuleInput) (*models.LabelingRule, error) {
	name := strings.TrimSpace(input.LabelName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label_name is required")
	}
	if len(name) > maxLabelNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("label_name must be at most %d characters", maxLabelNameLength))
	}
	color := strings.TrimSpace(input.LabelColor)
	if color == "" {
		color = defaultLabelColor
	}
	if !hexColorPattern.MatchString(color) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label_color must be a hex color like #3B82F6")
	}
	description := strings.TrimSpace(input.RuleDescription)
	if len(description) < minDescriptionLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rule_description must be at least %d characters", minDescriptionLen))
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	rule := &models.LabelingRule{
		LabelName:       name,
		LabelColor:      color,
		RuleDescription: description,
		IsActive:        active,
	}
	rule, err := s.repo.Create(ctx, rule)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create labeling rule")
	}
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, activeOnly bool) ([]models.LabelingRule, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list labeling rules")
	}
	return rows, nil
}

func (s *service) GetRule(ctx context.Context, id int64) (*models.LabelingRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load labeling rule")
	}
	if rule == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "labeling rule not found")
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, id int64, input UpdateRuleInput) (*models.LabelingRule, error) {
	if _, err := s.GetRule(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.LabelName != nil {
		name := strings.TrimSpace(*input.LabelName)
		if name == "" || len(name) > maxLabelNameLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("label_name must be 1-%d characters", maxLabelNameLength))
		}
		fields["label_name"] = name
	}
	if input.LabelColor != nil {
		color := strings.TrimSpace(*input.LabelColor)
		if !hexColorPattern.MatchString(color) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "label_color must be a hex color like #3B82F6")
		}
		fields["label_color"] = color
	}
	if input.RuleDescription != nil {
		description := strings.TrimSpace(*input.RuleDescription)
		if len(description) < minDescriptionLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rule_description must be at least %d characters", minDescriptionLen))
		}
		fields["rule_description"] = description
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}
	if len(fields) == 0 {
		return s.GetRule(ctx, id)
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update labeling rule")
	}
	return s.GetRule(ctx, id)
}

func (s *service) DeleteRule(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete labeling rule")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "labeling rule not found")
	}
	return nil
}
