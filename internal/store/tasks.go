package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/careline/careline/internal/task"
)

// The agent task ledger is append-only: Begin inserts a running task,
// Complete and Fail move it to a terminal state exactly once. The
// status guard lives in the UPDATE's WHERE clause so concurrent
// finishers cannot both win.

// Begin appends a new running task and returns its id.
func (s *Store) Begin(ctx context.Context, typ task.Type, referralID string, inputs any) (string, error) {
	if typ == "" || referralID == "" {
		return "", fmt.Errorf("task type and referral id are required")
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal task inputs: %w", err)
	}

	var id string
	err = s.db.QueryRow(ctx,
		`INSERT INTO agent_tasks (type, referral_id, status, inputs)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		string(typ), referralID, string(task.StatusRunning), data,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create agent task: %w", err)
	}
	return id, nil
}

// Complete moves a task to completed and attaches its outputs.
func (s *Store) Complete(ctx context.Context, id string, outputs any) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal task outputs: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_tasks SET status = $1, outputs = $2, completed_at = NOW()
		 WHERE id = $3 AND status IN ('pending','running')`,
		string(task.StatusCompleted), data, id)
	if err != nil {
		return fmt.Errorf("complete agent task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent task %s is not open", id)
	}
	return nil
}

// Fail moves a task to failed and attaches the error message.
func (s *Store) Fail(ctx context.Context, id string, msg string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_tasks SET status = $1, error = $2, completed_at = NOW()
		 WHERE id = $3 AND status IN ('pending','running')`,
		string(task.StatusFailed), msg, id)
	if err != nil {
		return fmt.Errorf("fail agent task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent task %s is not open", id)
	}
	return nil
}

// ListTasksByReferral returns a referral's audit trail, oldest first.
func (s *Store) ListTasksByReferral(ctx context.Context, referralID string) ([]*task.Task, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, referral_id, status, inputs, outputs, COALESCE(error,''), created_at, completed_at
		 FROM agent_tasks WHERE referral_id = $1 ORDER BY created_at`, referralID)
	if err != nil {
		return nil, fmt.Errorf("list agent tasks for %s: %w", referralID, err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var t task.Task
		var inputs, outputs []byte
		if err := rows.Scan(&t.ID, &t.Type, &t.ReferralID, &t.Status, &inputs, &outputs, &t.Error,
			&t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan agent task: %w", err)
		}
		if len(inputs) > 0 {
			var v any
			_ = json.Unmarshal(inputs, &v)
			t.Inputs = v
		}
		if len(outputs) > 0 {
			var v any
			_ = json.Unmarshal(outputs, &v)
			t.Outputs = v
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
