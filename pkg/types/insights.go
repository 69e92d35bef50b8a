package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ActionItem is one follow-up extracted from a transcript. Every field except
// the description is optional; the model returns null for anything the
// conversation did not make explicit.
type ActionItem struct {
	Description string  `json:"description"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"due_date"`
	Priority    *string `json:"priority"`
}

// Decision is one decision extracted from a transcript.
type Decision struct {
	Description string  `json:"description"`
	Owner       *string `json:"owner"`
	Context     *string `json:"context"`
	Impact      *string `json:"impact"`
}

// AppliedLabel is a labeling-rule match above the confidence threshold.
type AppliedLabel struct {
	LabelName  string  `json:"label_name"`
	LabelColor string  `json:"label_color"`
	Confidence float64 `json:"confidence"`
}

// ActionItems is a jsonb-backed slice.
type ActionItems []ActionItem

// Decisions is a jsonb-backed slice.
type Decisions []Decision

// AppliedLabels is a jsonb-backed slice.
type AppliedLabels []AppliedLabel

func (a ActionItems) Value() (driver.Value, error)   { return jsonbValue(a) }
func (a *ActionItems) Scan(src any) error            { return jsonbScan(src, a) }
func (d Decisions) Value() (driver.Value, error)     { return jsonbValue(d) }
func (d *Decisions) Scan(src any) error              { return jsonbScan(src, d) }
func (l AppliedLabels) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *AppliedLabels) Scan(src any) error          { return jsonbScan(src, l) }

func jsonbValue(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonb column: %w", err)
	}
	return string(data), nil
}

func jsonbScan(src, dest any) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch typed := src.(type) {
	case []byte:
		data = typed
	case string:
		data = []byte(typed)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
