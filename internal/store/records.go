package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careline/careline/internal/referral"
	"github.com/jackc/pgx/v5"
)

// CreateMedicalRecord inserts a record and returns the full written
// row, so callers never need a confirming read after the write.
func (s *Store) CreateMedicalRecord(ctx context.Context, rec *referral.MedicalRecord) (*referral.MedicalRecord, error) {
	conditions, _ := json.Marshal(rec.Conditions)
	medications, _ := json.Marshal(rec.Medications)
	allergies, _ := json.Marshal(rec.Allergies)
	labs, _ := json.Marshal(rec.LabResults)

	saved := *rec
	err := s.db.QueryRow(ctx,
		`INSERT INTO medical_records (patient_id, conditions, medications, allergies, lab_results)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		rec.PatientID, conditions, medications, allergies, labs,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create medical record: %w", err)
	}
	return &saved, nil
}

// GetLatestMedicalRecord returns the patient's most recent record.
func (s *Store) GetLatestMedicalRecord(ctx context.Context, patientID string) (*referral.MedicalRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, patient_id, conditions, medications, allergies, lab_results, created_at, updated_at
		 FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC LIMIT 1`, patientID)

	var rec referral.MedicalRecord
	var conditions, medications, allergies, labs []byte
	err := row.Scan(&rec.ID, &rec.PatientID, &conditions, &medications, &allergies, &labs,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("medical record for %s: %w", patientID, referral.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get medical record for %s: %w", patientID, err)
	}
	_ = json.Unmarshal(conditions, &rec.Conditions)
	_ = json.Unmarshal(medications, &rec.Medications)
	_ = json.Unmarshal(allergies, &rec.Allergies)
	_ = json.Unmarshal(labs, &rec.LabResults)
	return &rec, nil
}
