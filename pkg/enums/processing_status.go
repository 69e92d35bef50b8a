package enums

import "fmt"

// ProcessingStatus describes how far a recording has moved through the pipeline.
type ProcessingStatus string

const (
	ProcessingStatusPending           ProcessingStatus = "pending"
	ProcessingStatusProcessing        ProcessingStatus = "processing"
	ProcessingStatusAnalyzing         ProcessingStatus = "analyzing"
	ProcessingStatusGeneratingVisuals ProcessingStatus = "generating_visuals"
	ProcessingStatusCompleted         ProcessingStatus = "completed"
	ProcessingStatusFailed            ProcessingStatus = "failed"
)

var validProcessingStatuses = []ProcessingStatus{
	ProcessingStatusPending,
	ProcessingStatusProcessing,
	ProcessingStatusAnalyzing,
	ProcessingStatusGeneratingVisuals,
	ProcessingStatusCompleted,
	ProcessingStatusFailed,
}

// allowedTransitions encodes the pipeline edges. "failed" is reachable only
// while the primary deliverable (the transcript) is still at risk; analysis
// and visual-generation problems route to "completed" with a warning instead.
var allowedTransitions = map[ProcessingStatus][]ProcessingStatus{
	ProcessingStatusPending:           {ProcessingStatusProcessing},
	ProcessingStatusProcessing:        {ProcessingStatusAnalyzing, ProcessingStatusFailed},
	ProcessingStatusAnalyzing:         {ProcessingStatusGeneratingVisuals, ProcessingStatusCompleted},
	ProcessingStatusGeneratingVisuals: {ProcessingStatusCompleted},
	ProcessingStatusCompleted:         {},
	ProcessingStatusFailed:            {},
}

// String returns the literal string for the status.
func (p ProcessingStatus) String() string {
	return string(p)
}

// IsValid reports whether the status is known.
func (p ProcessingStatus) IsValid() bool {
	for _, candidate := range validProcessingStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a pipeline run can leave this status.
func (p ProcessingStatus) IsTerminal() bool {
	return len(allowedTransitions[p]) == 0 && p.IsValid()
}

// CanTransitionTo reports whether the edge from p to next exists in the
// pipeline state machine.
func (p ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	for _, candidate := range allowedTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseProcessingStatus converts raw input into a ProcessingStatus.
func ParseProcessingStatus(value string) (ProcessingStatus, error) {
	for _, candidate := range validProcessingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid processing status %q", value)
}
