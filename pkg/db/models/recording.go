package models

import (
	"time"

	"github.com/kirki-ai/kirki-backend/pkg/enums"
	"github.com/kirki-ai/kirki-backend/pkg/types"
)

// Recording is the unit of pipeline work: one uploaded media object plus the
// state the pipeline has derived from it so far.
type Recording struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement"`
	OriginalFilename string  `gorm:"column:original_filename;not null"`
	MediaURL         string  `gorm:"column:media_url;not null"`
	StoragePath      string  `gorm:"column:storage_path;not null"`
	FileSize         *int64  `gorm:"column:file_size"`
	ContentType      *string `gorm:"column:content_type"`

	Transcript             *string  `gorm:"column:transcript"`
	TranscriptWithSpeakers *string  `gorm:"column:transcript_with_speakers"`
	Duration               *float64 `gorm:"column:duration"`

	Summary          *string            `gorm:"column:summary"`
	ActionItems      types.ActionItems  `gorm:"column:action_items;type:jsonb"`
	Decisions        types.Decisions    `gorm:"column:decisions;type:jsonb"`
	VisualSummaryURL *string            `gorm:"column:visual_summary_url"`
	Labels           types.AppliedLabels `gorm:"column:labels;type:jsonb"`

	ProcessingStatus enums.ProcessingStatus `gorm:"column:processing_status;not null;default:pending"`
	ProcessingError  *string                `gorm:"column:processing_error"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Recording) TableName() string {
	return "recordings"
}
