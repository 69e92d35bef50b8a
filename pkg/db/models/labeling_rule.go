package models

import "time"

// LabelingRule is operator-defined configuration consumed read-only by the
// labeling engine. The rule description is free text interpreted by the
// language model, not a query language.
type LabelingRule struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	LabelName       string    `gorm:"column:label_name;size:100;not null"`
	LabelColor      string    `gorm:"column:label_color;size:7;not null;default:#3B82F6"`
	RuleDescription string    `gorm:"column:rule_description;not null"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LabelingRule) TableName() string {
	return "labeling_rules"
}
