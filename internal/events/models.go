// Package events emits typed, structured stage events so tests and
// downstream consumers can observe pipeline progress without parsing log
// lines. Emission is best-effort and never fails a stage.
package events

import (
	"errors"
	"time"
)

// ErrBufferFull reports a dropped event on an overflowing async sink.
var ErrBufferFull = errors.New("event buffer full, event dropped")

// Category classifies events by their primary purpose. Compliance events
// capture identifier lifecycle facts with regulatory significance; operations
// events cover routine progress and can be sampled.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

// Type enumerates the events the pipeline emits.
type Type string

const (
	TypeRunStarted     Type = "run_started"
	TypeStageStarted   Type = "stage_started"
	TypeStageCompleted Type = "stage_completed"
	TypeStageFailed    Type = "stage_failed"
	TypeRunCompleted   Type = "run_completed"
)

// categories maps each event type to its category. Identifier lifecycle
// boundaries are compliance; per-stage progress is operations.
var categories = map[Type]Category{
	TypeRunStarted:     CategoryOperations,
	TypeStageStarted:   CategoryOperations,
	TypeStageCompleted: CategoryOperations,
	TypeStageFailed:    CategoryOperations,
	TypeRunCompleted:   CategoryCompliance,
}

// CategoryOf returns the category for an event type.
func CategoryOf(t Type) Category {
	if c, ok := categories[t]; ok {
		return c
	}
	return CategoryOperations
}

// Event is one pipeline observation. Keep it transport-agnostic so sinks can
// fan out.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Category   Category  `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"runId"`
	InvestorID string    `json:"investorId"`
	Stage      string    `json:"stage,omitempty"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
}
