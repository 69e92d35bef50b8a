package rules

import (
	"context"
	"errors"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes labeling-rule persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a labeling-rule repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new rule row.
func (r *Repository) Create(ctx context.Context, rule *models.LabelingRule) (*models.LabelingRule, error) {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// List returns rules oldest-first, optionally restricted to active ones.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.LabelingRule, error) {
	query := r.db.WithContext(ctx).Model(&models.LabelingRule{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.LabelingRule
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive returns the rules the labeling engine may apply.
func (r *Repository) ListActive(ctx context.Context) ([]models.LabelingRule, error) {
	return r.List(ctx, true)
}

// FindByID loads one rule, or nil when no row exists.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.LabelingRule, error) {
	var rule models.LabelingRule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateFields patches the given columns on one rule.
func (r *Repository) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.LabelingRule{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a rule row. It reports whether a row was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.LabelingRule{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
