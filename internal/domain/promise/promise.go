// Package promise defines domain types for tracked political promises and
// the validation runs recorded against them.
package promise

import (
	"fmt"
	"time"

	"github.com/VoteVerify/voteguard/internal/domain"
)

// Status represents the assessed fulfillment state of a promise.
type Status string

const (
	StatusKept       Status = "kept"
	StatusBroken     Status = "broken"
	StatusPartial    Status = "partial"
	StatusInProgress Status = "in_progress"
	StatusUnverified Status = "unverified"
)

// validStatuses is the closed set accepted from external input.
var validStatuses = map[Status]bool{
	StatusKept:       true,
	StatusBroken:     true,
	StatusPartial:    true,
	StatusInProgress: true,
	StatusUnverified: true,
}

// Promise is a single tracked campaign promise.
type Promise struct {
	ID         string    `json:"id"`
	Politician string    `json:"politician"`
	Party      string    `json:"party,omitempty"`
	Text       string    `json:"text"`
	Category   string    `json:"category,omitempty"`
	Industry   string    `json:"industry,omitempty"`
	Status     Status    `json:"status"`
	DateMade   string    `json:"date_made,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateRequest holds the fields for registering a new promise.
type CreateRequest struct {
	Politician string   `json:"politician"`
	Party      string   `json:"party,omitempty"`
	Text       string   `json:"text"`
	Category   string   `json:"category,omitempty"`
	Industry   string   `json:"industry,omitempty"`
	Status     Status   `json:"status,omitempty"`
	DateMade   string   `json:"date_made,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// UpdateRequest holds the mutable fields of a promise.
type UpdateRequest struct {
	Status   *Status   `json:"status,omitempty"`
	Category *string   `json:"category,omitempty"`
	Industry *string   `json:"industry,omitempty"`
	Sources  *[]string `json:"sources,omitempty"`
}

// Validate checks the create request for correctness. An empty status
// defaults to unverified. Returns domain.ErrValidation-wrapped errors.
func (r *CreateRequest) Validate() error {
	if r.Politician == "" {
		return fmt.Errorf("%w: politician is required", domain.ErrValidation)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: promise text is required", domain.ErrValidation)
	}
	if r.Status == "" {
		r.Status = StatusUnverified
	}
	if !validStatuses[r.Status] {
		return fmt.Errorf("%w: invalid promise status %q", domain.ErrValidation, r.Status)
	}
	return nil
}

// Validate checks the update request for correctness.
func (r *UpdateRequest) Validate() error {
	if r.Status != nil && !validStatuses[*r.Status] {
		return fmt.Errorf("%w: invalid promise status %q", domain.ErrValidation, *r.Status)
	}
	return nil
}

// ValidationRun is the audit record persisted after one reloop invocation
// against a promise. Outcome holds the serialized ReloopOutcome.
type ValidationRun struct {
	ID                 string    `json:"id"`
	PromiseID          string    `json:"promise_id"`
	Success            bool      `json:"success"`
	Action             string    `json:"action"`
	Attempts           int       `json:"attempts"`
	BiasScore          float64   `json:"bias_score"`
	HallucinationScore float64   `json:"hallucination_score"`
	SatisfactionScore  float64   `json:"satisfaction_score"`
	BestAttempt        bool      `json:"best_attempt"`
	Warning            string    `json:"warning,omitempty"`
	Error              string    `json:"error,omitempty"`
	Outcome            []byte    `json:"outcome,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
