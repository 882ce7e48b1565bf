// Package summarizer is the synthesis service: it turns a referral plus
// a medical record into a clinician-facing structured brief and a
// patient-facing plain-language explainer via a hosted text-generation
// model. Each run persists fresh artifacts; nothing is mutated in place.
package summarizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// TextGenerator is the hosted model boundary the service depends on.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecordSource fetches a patient's most recent medical record.
type RecordSource interface {
	GetLatestMedicalRecord(ctx context.Context, patientID string) (*referral.MedicalRecord, error)
}

// SummaryStore persists generated summaries. Create calls fill the id
// and generation timestamp on the given value.
type SummaryStore interface {
	CreateClinicianBrief(ctx context.Context, brief *referral.ClinicianBrief) error
	CreatePatientExplainer(ctx context.Context, explainer *referral.PatientExplainer) error
}

// Input identifies the referral to summarize. MedicalRecord is optional;
// when nil the patient's latest persisted record is used.
type Input struct {
	ReferralID    string                  `json:"referral_id"`
	PatientID     string                  `json:"patient_id"`
	Referral      *referral.Referral      `json:"referral"`
	MedicalRecord *referral.MedicalRecord `json:"medical_record,omitempty"`
}

// Output carries both persisted artifacts.
type Output struct {
	ClinicianBrief   *referral.ClinicianBrief   `json:"clinician_brief"`
	PatientExplainer *referral.PatientExplainer `json:"patient_explainer"`
}

// Service generates and persists referral summaries.
type Service struct {
	model  TextGenerator
	store  SummaryStore
	record RecordSource
	ledger task.Ledger
	logger *zap.Logger
}

// NewService creates a summarizer service.
func NewService(model TextGenerator, store SummaryStore, record RecordSource, ledger task.Ledger, logger *zap.Logger) *Service {
	return &Service{model: model, store: store, record: record, ledger: ledger, logger: logger}
}

// GenerateSummaries produces, persists, and returns both summaries.
// There is no fallback summary: a missing record or a model failure
// fails the whole operation.
func (s *Service) GenerateSummaries(ctx context.Context, in Input) (*Output, error) {
	taskID, err := s.ledger.Begin(ctx, task.TypeSummarizer, in.ReferralID, in)
	if err != nil {
		return nil, err
	}

	rec := in.MedicalRecord
	if rec == nil {
		rec, err = s.record.GetLatestMedicalRecord(ctx, in.PatientID)
		if err != nil {
			err = fmt.Errorf("no medical record found for patient %s: %w", in.PatientID, err)
			s.fail(ctx, taskID, err)
			return nil, err
		}
	}

	var (
		wg           sync.WaitGroup
		brief        *referral.ClinicianBrief
		briefErr     error
		explainer    *referral.PatientExplainer
		explainerErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		brief, briefErr = s.generateClinicianBrief(ctx, in.Referral, rec)
	}()
	go func() {
		defer wg.Done()
		explainer, explainerErr = s.generatePatientExplainer(ctx, in.Referral, rec)
	}()
	wg.Wait()

	if briefErr != nil {
		s.fail(ctx, taskID, briefErr)
		return nil, briefErr
	}
	if explainerErr != nil {
		s.fail(ctx, taskID, explainerErr)
		return nil, explainerErr
	}

	if err := s.store.CreateClinicianBrief(ctx, brief); err != nil {
		err = fmt.Errorf("save clinician brief: %w", err)
		s.fail(ctx, taskID, err)
		return nil, err
	}
	if err := s.store.CreatePatientExplainer(ctx, explainer); err != nil {
		err = fmt.Errorf("save patient explainer: %w", err)
		s.fail(ctx, taskID, err)
		return nil, err
	}

	s.logger.Info("summaries generated",
		zap.String("referral", in.ReferralID),
		zap.String("brief", brief.ID),
		zap.String("explainer", explainer.ID))

	out := &Output{ClinicianBrief: brief, PatientExplainer: explainer}
	if err := s.ledger.Complete(ctx, taskID, out); err != nil {
		s.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return out, nil
}

func (s *Service) generateClinicianBrief(ctx context.Context, ref *referral.Referral, rec *referral.MedicalRecord) (*referral.ClinicianBrief, error) {
	text, err := s.model.Generate(ctx, buildClinicianPrompt(ref, rec))
	if err != nil {
		return nil, fmt.Errorf("generate clinician brief: %w", err)
	}

	sections := parseResponse(text, clinicianGrammar)
	return &referral.ClinicianBrief{
		ReferralID:         ref.ID,
		PatientID:          ref.PatientID,
		ProblemList:        sections["PROBLEM_LIST"].items,
		CurrentMedications: sections["CURRENT_MEDICATIONS"].items,
		Allergies:          sections["ALLERGIES"].items,
		KeyLabs:            sections["KEY_LABS"].items,
		RedFlags:           sections["RED_FLAGS"].items,
		ClinicalSummary:    sections["CLINICAL_SUMMARY"].text,
		Recommendations:    sections["RECOMMENDATIONS"].items,
		GeneratedAt:        time.Now(),
	}, nil
}

func (s *Service) generatePatientExplainer(ctx context.Context, ref *referral.Referral, rec *referral.MedicalRecord) (*referral.PatientExplainer, error) {
	text, err := s.model.Generate(ctx, buildPatientPrompt(ref, rec))
	if err != nil {
		return nil, fmt.Errorf("generate patient explainer: %w", err)
	}

	sections := parseResponse(text, patientGrammar)
	return &referral.PatientExplainer{
		ReferralID:   ref.ID,
		PatientID:    ref.PatientID,
		Summary:      sections["SUMMARY"].text,
		WhatToExpect: sections["WHAT_TO_EXPECT"].text,
		WhatToBring:  sections["WHAT_TO_BRING"].items,
		Questions:    sections["QUESTIONS"].items,
		GeneratedAt:  time.Now(),
	}, nil
}

func (s *Service) fail(ctx context.Context, taskID string, cause error) {
	s.logger.Error("summarizer failed", zap.String("task", taskID), zap.Error(cause))
	if err := s.ledger.Fail(ctx, taskID, cause.Error()); err != nil {
		s.logger.Warn("ledger fail failed", zap.String("task", taskID), zap.Error(err))
	}
}
