package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger used in tests and when the
// process runs without a database. It enforces the same single
// terminal transition rule as the persistent ledger.
type MemoryLedger struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tasks: make(map[string]*Task)}
}

// Begin appends a new running task.
func (l *MemoryLedger) Begin(ctx context.Context, typ Type, referralID string, inputs any) (string, error) {
	if typ == "" || referralID == "" {
		return "", fmt.Errorf("task type and referral id are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &Task{
		ID:         uuid.New().String(),
		Type:       typ,
		ReferralID: referralID,
		Status:     StatusRunning,
		Inputs:     inputs,
		CreatedAt:  time.Now(),
	}
	l.tasks[t.ID] = t
	l.order = append(l.order, t.ID)
	return t.ID, nil
}

// Complete moves a task to completed and attaches its outputs.
func (l *MemoryLedger) Complete(ctx context.Context, id string, outputs any) error {
	return l.finish(id, StatusCompleted, outputs, "")
}

// Fail moves a task to failed and attaches the error message.
func (l *MemoryLedger) Fail(ctx context.Context, id string, msg string) error {
	return l.finish(id, StatusFailed, nil, msg)
}

func (l *MemoryLedger) finish(id string, status Status, outputs any, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if err := Transition(t.Status, status); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	now := time.Now()
	t.Status = status
	t.Outputs = outputs
	t.Error = msg
	t.CompletedAt = &now
	return nil
}

// Get returns a snapshot of one task.
func (l *MemoryLedger) Get(id string) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns snapshots of all tasks in creation order.
func (l *MemoryLedger) List() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Task, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.tasks[id])
	}
	return out
}
