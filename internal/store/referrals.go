package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careline/careline/internal/referral"
	"github.com/jackc/pgx/v5"
)

// CreateReferral inserts a new referral in pending status.
func (s *Store) CreateReferral(ctx context.Context, r *referral.Referral) error {
	if r.Status == "" {
		r.Status = referral.StatusPending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO referrals (patient_id, from_doctor_id, specialty, reason, urgency, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		r.PatientID, r.FromDoctorID, r.Specialty, r.Reason, string(r.Urgency), string(r.Status), r.Notes,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// GetReferral retrieves a referral by ID.
func (s *Store) GetReferral(ctx context.Context, id string) (*referral.Referral, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, patient_id, from_doctor_id, COALESCE(to_doctor_id,''), specialty, reason,
		        urgency, status, COALESCE(notes,''), scheduled_date, created_at, updated_at
		 FROM referrals WHERE id = $1`, id)

	var r referral.Referral
	err := row.Scan(&r.ID, &r.PatientID, &r.FromDoctorID, &r.ToDoctorID, &r.Specialty, &r.Reason,
		&r.Urgency, &r.Status, &r.Notes, &r.ScheduledDate, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("referral %s: %w", id, referral.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get referral %s: %w", id, err)
	}
	return &r, nil
}

// ListReferralsByPatient returns all of a patient's referrals, newest first.
func (s *Store) ListReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error) {
	return s.listReferrals(ctx,
		`SELECT id, patient_id, from_doctor_id, COALESCE(to_doctor_id,''), specialty, reason,
		        urgency, status, COALESCE(notes,''), scheduled_date, created_at, updated_at
		 FROM referrals WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
}

// ListActiveReferralsByPatient returns a patient's pending and sent
// referrals, newest first.
func (s *Store) ListActiveReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error) {
	return s.listReferrals(ctx,
		`SELECT id, patient_id, from_doctor_id, COALESCE(to_doctor_id,''), specialty, reason,
		        urgency, status, COALESCE(notes,''), scheduled_date, created_at, updated_at
		 FROM referrals WHERE patient_id = $1 AND status IN ('pending','sent')
		 ORDER BY created_at DESC`, patientID)
}

func (s *Store) listReferrals(ctx context.Context, query string, args ...any) ([]*referral.Referral, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []*referral.Referral
	for rows.Next() {
		var r referral.Referral
		if err := rows.Scan(&r.ID, &r.PatientID, &r.FromDoctorID, &r.ToDoctorID, &r.Specialty, &r.Reason,
			&r.Urgency, &r.Status, &r.Notes, &r.ScheduledDate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpdateReferralStatus advances a referral's status after checking the
// transition is legal.
func (s *Store) UpdateReferralStatus(ctx context.Context, id string, status referral.Status) error {
	current, err := s.GetReferral(ctx, id)
	if err != nil {
		return err
	}
	if err := referral.Transition(current.Status, status); err != nil {
		return fmt.Errorf("referral %s: %w", id, err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE referrals SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("update referral %s: %w", id, err)
	}
	return nil
}

// ScheduleReferral advances a referral to scheduled and records the
// chosen provider and slot. ToDoctorID and the scheduled date are only
// ever set here, once the status moves past pending.
func (s *Store) ScheduleReferral(ctx context.Context, id, toDoctorID string, slot time.Time) error {
	current, err := s.GetReferral(ctx, id)
	if err != nil {
		return err
	}
	if err := referral.Transition(current.Status, referral.StatusScheduled); err != nil {
		return fmt.Errorf("referral %s: %w", id, err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE referrals SET status = 'scheduled', to_doctor_id = $1, scheduled_date = $2, updated_at = NOW()
		 WHERE id = $3`, toDoctorID, slot, id)
	if err != nil {
		return fmt.Errorf("schedule referral %s: %w", id, err)
	}
	return nil
}
