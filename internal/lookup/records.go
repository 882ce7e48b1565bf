package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/careline/careline/internal/refdata"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// RecordsInput identifies the referral and the patient whose chart to pull.
type RecordsInput struct {
	ReferralID string `json:"referral_id"`
	PatientID  string `json:"patient_id"`
}

// RecordsOutput is the persisted medical record plus a processing count.
type RecordsOutput struct {
	MedicalRecord    *referral.MedicalRecord `json:"medical_record"`
	RecordsProcessed int                     `json:"records_processed"`
}

// IntegrityReport flags chart-level concerns before a record is handed
// to downstream services.
type IntegrityReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RecordStore persists medical records. Create returns the full written
// row so callers never need a confirming read-after-write.
type RecordStore interface {
	CreateMedicalRecord(ctx context.Context, rec *referral.MedicalRecord) (*referral.MedicalRecord, error)
}

// Records assembles a patient's medical record from the chart reference
// table and persists it. In production the chart source would be an
// EHR/FHIR integration behind the same contract.
type Records struct {
	charts map[string]refdata.Chart
	store  RecordStore
	ledger task.Ledger
	logger *zap.Logger
}

// NewRecords creates a records service.
func NewRecords(data *refdata.Set, store RecordStore, ledger task.Ledger, logger *zap.Logger) *Records {
	return &Records{charts: data.Charts, store: store, ledger: ledger, logger: logger}
}

// ParseRecords builds and persists the medical record for a patient.
// Fails with a descriptive error when the patient has no chart.
func (r *Records) ParseRecords(ctx context.Context, in RecordsInput) (*RecordsOutput, error) {
	taskID, err := r.ledger.Begin(ctx, task.TypeRecords, in.ReferralID, in)
	if err != nil {
		return nil, err
	}

	chart, ok := r.charts[in.PatientID]
	if !ok {
		err := fmt.Errorf("no medical records found for patient %s", in.PatientID)
		r.fail(ctx, taskID, err)
		return nil, err
	}

	rec := &referral.MedicalRecord{
		PatientID:   in.PatientID,
		Conditions:  chart.Conditions,
		Medications: chart.Medications,
		Allergies:   chart.Allergies,
		LabResults:  chart.LabResults,
	}

	saved, err := r.store.CreateMedicalRecord(ctx, rec)
	if err != nil {
		err = fmt.Errorf("save medical record for %s: %w", in.PatientID, err)
		r.fail(ctx, taskID, err)
		return nil, err
	}

	processed := len(chart.Conditions) + len(chart.Medications) + len(chart.LabResults)
	r.logger.Info("records processed",
		zap.String("referral", in.ReferralID),
		zap.String("patient", in.PatientID),
		zap.Int("entries", processed))

	out := &RecordsOutput{MedicalRecord: saved, RecordsProcessed: processed}
	if err := r.ledger.Complete(ctx, taskID, out); err != nil {
		r.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return out, nil
}

func (r *Records) fail(ctx context.Context, taskID string, cause error) {
	r.logger.Error("records lookup failed", zap.String("task", taskID), zap.Error(cause))
	if err := r.ledger.Fail(ctx, taskID, cause.Error()); err != nil {
		r.logger.Warn("ledger fail failed", zap.String("task", taskID), zap.Error(err))
	}
}

// ValidateIntegrity checks a record for missing identifiers and
// clinically notable patterns: polypharmacy, severe allergies, and
// abnormal or critical labs.
func (r *Records) ValidateIntegrity(rec *referral.MedicalRecord) IntegrityReport {
	var report IntegrityReport

	if rec.PatientID == "" {
		report.Errors = append(report.Errors, "patient id is required")
	}

	active := 0
	for _, m := range rec.Medications {
		if m.Status == referral.MedicationActive {
			active++
		}
	}
	if active > 10 {
		report.Warnings = append(report.Warnings, "patient is on a high number of medications; check for polypharmacy")
	}

	var severe []string
	for _, a := range rec.Allergies {
		if a.Severity == referral.SeveritySevere {
			severe = append(severe, a.Allergen)
		}
	}
	if len(severe) > 0 {
		report.Warnings = append(report.Warnings, "patient has severe allergies: "+strings.Join(severe, ", "))
	}

	var abnormal []string
	for _, l := range rec.LabResults {
		if l.Status == referral.LabAbnormal || l.Status == referral.LabCritical {
			abnormal = append(abnormal, l.TestName)
		}
	}
	if len(abnormal) > 0 {
		report.Warnings = append(report.Warnings, "abnormal lab values found: "+strings.Join(abnormal, ", "))
	}

	report.Valid = len(report.Errors) == 0
	return report
}
