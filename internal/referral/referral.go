package referral

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Urgency controls how quickly a referral must be seen. It is fixed at
// creation and only conditions derived values such as availability windows.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyStat    Urgency = "stat"
)

// Status represents the state of a referral.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Referral is a request to route a patient to a specialist.
type Referral struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	FromDoctorID  string     `json:"from_doctor_id"`
	ToDoctorID    string     `json:"to_doctor_id,omitempty"`
	Specialty     string     `json:"specialty"`
	Reason        string     `json:"reason"`
	Urgency       Urgency    `json:"urgency"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// validTransitions defines allowed referral state transitions.
// A referral can be cancelled at any point before completion.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusScheduled, StatusCancelled},
	StatusSent:      {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
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

// Active reports whether a referral should still react to record changes.
func (r *Referral) Active() bool {
	return r.Status == StatusPending || r.Status == StatusSent
}

// CreatedEvent signals that a new referral needs a decision card.
type CreatedEvent struct {
	ReferralID string    `json:"referral_id"`
	PatientID  string    `json:"patient_id"`
	Specialty  string    `json:"specialty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecordsUpdatedEvent signals that a patient's chart changed and any
// derived summaries may be stale.
type RecordsUpdatedEvent struct {
	PatientID  string    `json:"patient_id"`
	ReferralID string    `json:"referral_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
