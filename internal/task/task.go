package task

import (
	"context"
	"fmt"
	"time"
)

// Type identifies which service performed a unit of work.
type Type string

const (
	TypeOrchestrator Type = "orchestrator"
	TypeDirectory    Type = "directory"
	TypeAvailability Type = "availability"
	TypeCost         Type = "cost"
	TypeRecords      Type = "records"
	TypeSummarizer   Type = "summarizer"
	TypeLoop         Type = "loop"
)

// Status represents the state of an agent task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status ends the task lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions defines allowed task state transitions. A task
// transitions exactly once to a terminal state and never leaves it.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCompleted, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// Transition validates and returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// Task is an append-only audit record of one asynchronous unit of work.
// Inputs are set at creation, outputs only on completion, the error
// message only on failure. CompletedAt is present iff the status is
// terminal. The orchestration logic writes tasks but never reads them
// back as a control input.
type Task struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	ReferralID  string     `json:"referral_id"`
	Status      Status     `json:"status"`
	Inputs      any        `json:"inputs,omitempty"`
	Outputs     any        `json:"outputs,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Ledger records the lifecycle of agent tasks. Begin appends a new
// running task and returns its id; Complete and Fail move it to a
// terminal state exactly once.
type Ledger interface {
	Begin(ctx context.Context, typ Type, referralID string, inputs any) (string, error)
	Complete(ctx context.Context, id string, outputs any) error
	Fail(ctx context.Context, id string, msg string) error
}
