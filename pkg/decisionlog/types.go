package decisionlog

import (
	"errors"
	"time"
)

// Common errors for decision log operations.
var (
	ErrEmptyAgentID   = errors.New("decision agentId cannot be empty")
	ErrEmptyTask      = errors.New("decision task cannot be empty")
	ErrInvalidOutcome = errors.New("outcome must be one of approved, rejected, modified, pending")
	ErrEmptyID        = errors.New("decision id cannot be empty")
)

// Outcome is the terminal state of a decision.
type Outcome string

const (
	// OutcomeApproved indicates the decision was executed as proposed.
	OutcomeApproved Outcome = "approved"

	// OutcomeRejected indicates the decision was blocked.
	OutcomeRejected Outcome = "rejected"

	// OutcomeModified indicates the decision was executed with changes.
	OutcomeModified Outcome = "modified"

	// OutcomePending indicates the decision awaits review.
	OutcomePending Outcome = "pending"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeApproved, OutcomeRejected, OutcomeModified, OutcomePending:
		return true
	}
	return false
}

// EvaluatorResult records one evaluator's verdict on a decision.
type EvaluatorResult struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Score      float64  `json:"score"`
	Issues     []string `json:"issues,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Metadata carries the business context a decision was made in.
type Metadata struct {
	BrandID    string `json:"brandId,omitempty"`
	UserID     string `json:"userId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	PlaybookID string `json:"playbookId,omitempty"`
	RetryCount int    `json:"retryCount,omitempty"`
}

// DecisionTrace is an immutable record of one automated decision.
//
// ID and Timestamp are assigned by the store at creation and never change.
// LinkedDecisions is an append-only set of forward links to later traces.
// Embedding, when present, is a cached vector representation maintained by
// the semantic engine; it is not part of the audit content.
type DecisionTrace struct {
	ID              string            `json:"id,omitempty"`
	Timestamp       time.Time         `json:"-"`
	AgentID         string            `json:"agentId"`
	Task            string            `json:"task"`
	OriginalPrompt  string            `json:"originalPrompt,omitempty"`
	Inputs          map[string]any    `json:"inputs,omitempty"`
	Reasoning       string            `json:"reasoning"`
	Outcome         Outcome           `json:"outcome"`
	Evaluators      []EvaluatorResult `json:"evaluators,omitempty"`
	LinkedDecisions []string          `json:"linkedDecisions,omitempty"`
	Output          any               `json:"output,omitempty"`
	Metadata        Metadata          `json:"metadata"`
	Embedding       []float32         `json:"embedding,omitempty"`
}

// Validate checks a trace before it reaches the store. An empty outcome is
// normalized to pending by LogDecision, so only non-empty invalid values
// fail here.
func (t *DecisionTrace) Validate() error {
	if t.AgentID == "" {
		return ErrEmptyAgentID
	}
	if t.Task == "" {
		return ErrEmptyTask
	}
	if t.Outcome != "" && !t.Outcome.Valid() {
		return ErrInvalidOutcome
	}
	return nil
}

// Filter selects decisions in QueryDecisions. All fields are optional and
// conjunctive. StartDate/EndDate bound the timestamp inclusively; zero
// values mean unbounded. Limit <= 0 uses DefaultQueryLimit.
type Filter struct {
	AgentID   string
	BrandID   string
	UserID    string
	Outcome   Outcome
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// Validate checks the filter before any store call.
func (f Filter) Validate() error {
	if f.Outcome != "" && !f.Outcome.Valid() {
		return ErrInvalidOutcome
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return errors.New("endDate cannot precede startDate")
	}
	return nil
}
