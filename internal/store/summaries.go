package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careline/careline/internal/referral"
	"github.com/jackc/pgx/v5"
)

// CreateClinicianBrief inserts a new brief version for a referral.
func (s *Store) CreateClinicianBrief(ctx context.Context, b *referral.ClinicianBrief) error {
	problems, _ := json.Marshal(b.ProblemList)
	medications, _ := json.Marshal(b.CurrentMedications)
	allergies, _ := json.Marshal(b.Allergies)
	labs, _ := json.Marshal(b.KeyLabs)
	flags, _ := json.Marshal(b.RedFlags)
	recs, _ := json.Marshal(b.Recommendations)

	err := s.db.QueryRow(ctx,
		`INSERT INTO clinician_briefs
		   (referral_id, patient_id, problem_list, current_medications, allergies, key_labs, red_flags, clinical_summary, recommendations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, generated_at`,
		b.ReferralID, b.PatientID, problems, medications, allergies, labs, flags, b.ClinicalSummary, recs,
	).Scan(&b.ID, &b.GeneratedAt)
	if err != nil {
		return fmt.Errorf("create clinician brief: %w", err)
	}
	return nil
}

// GetLatestClinicianBrief returns the newest brief for a referral.
func (s *Store) GetLatestClinicianBrief(ctx context.Context, referralID string) (*referral.ClinicianBrief, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, referral_id, patient_id, problem_list, current_medications, allergies, key_labs,
		        red_flags, clinical_summary, recommendations, generated_at
		 FROM clinician_briefs WHERE referral_id = $1 ORDER BY generated_at DESC LIMIT 1`, referralID)

	var b referral.ClinicianBrief
	var problems, medications, allergies, labs, flags, recs []byte
	err := row.Scan(&b.ID, &b.ReferralID, &b.PatientID, &problems, &medications, &allergies, &labs,
		&flags, &b.ClinicalSummary, &recs, &b.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("clinician brief for %s: %w", referralID, referral.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get clinician brief for %s: %w", referralID, err)
	}
	_ = json.Unmarshal(problems, &b.ProblemList)
	_ = json.Unmarshal(medications, &b.CurrentMedications)
	_ = json.Unmarshal(allergies, &b.Allergies)
	_ = json.Unmarshal(labs, &b.KeyLabs)
	_ = json.Unmarshal(flags, &b.RedFlags)
	_ = json.Unmarshal(recs, &b.Recommendations)
	return &b, nil
}

// CreatePatientExplainer inserts a new explainer version for a referral.
func (s *Store) CreatePatientExplainer(ctx context.Context, e *referral.PatientExplainer) error {
	bring, _ := json.Marshal(e.WhatToBring)
	questions, _ := json.Marshal(e.Questions)

	err := s.db.QueryRow(ctx,
		`INSERT INTO patient_explainers (referral_id, patient_id, summary, what_to_expect, what_to_bring, questions)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, generated_at`,
		e.ReferralID, e.PatientID, e.Summary, e.WhatToExpect, bring, questions,
	).Scan(&e.ID, &e.GeneratedAt)
	if err != nil {
		return fmt.Errorf("create patient explainer: %w", err)
	}
	return nil
}

// GetLatestPatientExplainer returns the newest explainer for a referral.
func (s *Store) GetLatestPatientExplainer(ctx context.Context, referralID string) (*referral.PatientExplainer, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, referral_id, patient_id, summary, what_to_expect, what_to_bring, questions, generated_at
		 FROM patient_explainers WHERE referral_id = $1 ORDER BY generated_at DESC LIMIT 1`, referralID)

	var e referral.PatientExplainer
	var bring, questions []byte
	err := row.Scan(&e.ID, &e.ReferralID, &e.PatientID, &e.Summary, &e.WhatToExpect, &bring, &questions, &e.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient explainer for %s: %w", referralID, referral.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient explainer for %s: %w", referralID, err)
	}
	_ = json.Unmarshal(bring, &e.WhatToBring)
	_ = json.Unmarshal(questions, &e.Questions)
	return &e, nil
}
