package recordings

import (
	"context"
	"errors"

	"github.com/kirki-ai/kirki-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes recording persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a recording repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new recording row.
func (r *Repository) Create(ctx context.Context, recording *models.Recording) (*models.Recording, error) {
	if err := r.db.WithContext(ctx).Create(recording).Error; err != nil {
		return nil, err
	}
	return recording, nil
}

// FindByID loads one recording, or nil when no row exists.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Recording, error) {
	var recording models.Recording
	err := r.db.WithContext(ctx).First(&recording, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &recording, nil
}

// List returns recordings newest-first using offset pagination.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Recording, error) {
	var rows []models.Recording
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the total number of recordings.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Recording{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Delete removes a recording row. It reports whether a row was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Recording{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateFields patches the given columns on one recording.
func (r *Repository) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Recording{}).
		Where("id = ?", id).
		Updates(fields).Error
}
