package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/summarizer"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// ReferralLister loads referrals for the change-reaction loop.
type ReferralLister interface {
	GetReferral(ctx context.Context, id string) (*referral.Referral, error)
	ListActiveReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error)
}

// BriefSource fetches the latest clinician brief for a referral,
// returning referral.ErrNotFound when none has been generated yet.
type BriefSource interface {
	GetLatestClinicianBrief(ctx context.Context, referralID string) (*referral.ClinicianBrief, error)
}

// highRiskMedications trigger an alert when they appear in a
// medication change set.
var highRiskMedications = []string{"warfarin", "digoxin"}

// ReferralUpdate is one referral's outcome within a loop run.
type ReferralUpdate struct {
	ReferralID  string `json:"referral_id"`
	Updated     bool   `json:"updated"`
	Significant bool   `json:"significant,omitempty"`
	Error       string `json:"error,omitempty"`
}

// LoopSummary is recorded on the loop task when a run completes.
type LoopSummary struct {
	ReferralsProcessed int              `json:"referrals_processed"`
	SuccessfulUpdates  int              `json:"successful_updates"`
	SignificantChanges int              `json:"significant_changes"`
	Results            []ReferralUpdate `json:"results,omitempty"`
	Message            string           `json:"message,omitempty"`
}

// Loop reacts to record changes by regenerating summaries for every
// active referral of the affected patient and notifying physicians when
// the regenerated brief differs in a significant way.
type Loop struct {
	referrals  ReferralLister
	briefs     BriefSource
	summarizer SummaryService
	notifier   Notifier
	ledger     task.Ledger
	logger     *zap.Logger
}

// NewLoop creates a change-reaction loop.
func NewLoop(referrals ReferralLister, briefs BriefSource, summaries SummaryService, notifier Notifier, ledger task.Ledger, logger *zap.Logger) *Loop {
	return &Loop{
		referrals:  referrals,
		briefs:     briefs,
		summarizer: summaries,
		notifier:   notifier,
		ledger:     ledger,
		logger:     logger,
	}
}

// ProcessRecordsUpdated regenerates summaries for the patient's active
// referrals. Failures are isolated per referral: one referral's error
// is recorded in its result entry and does not stop the others.
func (l *Loop) ProcessRecordsUpdated(ctx context.Context, event referral.RecordsUpdatedEvent) (*LoopSummary, error) {
	ledgerRef := event.ReferralID
	if ledgerRef == "" {
		ledgerRef = "patient:" + event.PatientID
	}
	taskID, err := l.ledger.Begin(ctx, task.TypeLoop, ledgerRef, event)
	if err != nil {
		return nil, err
	}

	active, err := l.referrals.ListActiveReferralsByPatient(ctx, event.PatientID)
	if err != nil {
		err = fmt.Errorf("list active referrals for %s: %w", event.PatientID, err)
		l.fail(ctx, taskID, err)
		return nil, err
	}

	if len(active) == 0 {
		l.logger.Info("no active referrals to update", zap.String("patient", event.PatientID))
		summary := &LoopSummary{Message: "No active referrals to update"}
		if err := l.ledger.Complete(ctx, taskID, summary); err != nil {
			l.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
		}
		return summary, nil
	}

	results := make([]ReferralUpdate, len(active))
	var wg sync.WaitGroup
	for i, ref := range active {
		wg.Add(1)
		go func(i int, ref *referral.Referral) {
			defer wg.Done()
			results[i] = l.refreshReferral(ctx, event.PatientID, ref)
		}(i, ref)
	}
	wg.Wait()

	summary := &LoopSummary{ReferralsProcessed: len(active), Results: results}
	for _, r := range results {
		if !r.Updated {
			continue
		}
		summary.SuccessfulUpdates++
		if r.Significant {
			summary.SignificantChanges++
			if err := l.notifier.NotifySummaryUpdated(ctx, r.ReferralID, event.PatientID); err != nil {
				l.logger.Warn("notification failed",
					zap.String("referral", r.ReferralID), zap.Error(err))
			}
		}
	}

	l.logger.Info("loop run complete",
		zap.String("patient", event.PatientID),
		zap.Int("processed", summary.ReferralsProcessed),
		zap.Int("updated", summary.SuccessfulUpdates),
		zap.Int("significant", summary.SignificantChanges))

	if err := l.ledger.Complete(ctx, taskID, summary); err != nil {
		l.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return summary, nil
}

func (l *Loop) refreshReferral(ctx context.Context, patientID string, ref *referral.Referral) ReferralUpdate {
	oldBrief, err := l.briefs.GetLatestClinicianBrief(ctx, ref.ID)
	if err != nil && !errors.Is(err, referral.ErrNotFound) {
		return ReferralUpdate{ReferralID: ref.ID, Error: err.Error()}
	}

	out, err := l.summarizer.GenerateSummaries(ctx, summarizer.Input{
		ReferralID: ref.ID,
		PatientID:  patientID,
		Referral:   ref,
	})
	if err != nil {
		l.logger.Error("summary refresh failed", zap.String("referral", ref.ID), zap.Error(err))
		return ReferralUpdate{ReferralID: ref.ID, Error: err.Error()}
	}

	return ReferralUpdate{
		ReferralID:  ref.ID,
		Updated:     true,
		Significant: significantChange(oldBrief, out.ClinicianBrief),
	}
}

// significantChange decides whether a regenerated brief warrants a
// physician notification: any new red flag, any new problem, or any
// new key-lab entry mentioning "abnormal" or "elevated". A referral
// with no prior brief always counts as significant.
func significantChange(oldBrief, newBrief *referral.ClinicianBrief) bool {
	if oldBrief == nil {
		return true
	}

	if hasNewEntry(oldBrief.RedFlags, newBrief.RedFlags) {
		return true
	}
	if hasNewEntry(oldBrief.ProblemList, newBrief.ProblemList) {
		return true
	}
	old := toSet(oldBrief.KeyLabs)
	for _, lab := range newBrief.KeyLabs {
		if old[lab] {
			continue
		}
		lower := strings.ToLower(lab)
		if strings.Contains(lower, "abnormal") || strings.Contains(lower, "elevated") {
			return true
		}
	}
	return false
}

func hasNewEntry(old, fresh []string) bool {
	seen := toSet(old)
	for _, s := range fresh {
		if !seen[s] {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// ProcessLabResultsAdded alerts on critical values, then delegates to
// the records-updated flow.
func (l *Loop) ProcessLabResultsAdded(ctx context.Context, patientID string, labs []referral.LabResult) (*LoopSummary, error) {
	for _, lab := range labs {
		if lab.Status != referral.LabCritical {
			continue
		}
		msg := fmt.Sprintf("critical lab result: %s = %s", lab.TestName, lab.Value)
		l.logger.Warn("critical lab alert",
			zap.String("patient", patientID),
			zap.String("test", lab.TestName),
			zap.String("value", lab.Value))
		if err := l.notifier.Alert(ctx, patientID, msg); err != nil {
			l.logger.Warn("alert delivery failed", zap.String("patient", patientID), zap.Error(err))
		}
	}
	return l.ProcessRecordsUpdated(ctx, referral.RecordsUpdatedEvent{
		PatientID: patientID,
		Timestamp: time.Now(),
	})
}

// ProcessMedicationChanges alerts on high-risk medications, then
// delegates to the records-updated flow.
func (l *Loop) ProcessMedicationChanges(ctx context.Context, patientID string, changes []referral.Medication) (*LoopSummary, error) {
	for _, med := range changes {
		name := strings.ToLower(med.Name)
		for _, risky := range highRiskMedications {
			if strings.Contains(name, risky) {
				msg := fmt.Sprintf("high-risk medication change: %s %s", med.Name, med.Dosage)
				l.logger.Warn("medication interaction alert",
					zap.String("patient", patientID),
					zap.String("medication", med.Name))
				if err := l.notifier.Alert(ctx, patientID, msg); err != nil {
					l.logger.Warn("alert delivery failed", zap.String("patient", patientID), zap.Error(err))
				}
				break
			}
		}
	}
	return l.ProcessRecordsUpdated(ctx, referral.RecordsUpdatedEvent{
		PatientID: patientID,
		Timestamp: time.Now(),
	})
}

// ProcessManualRefresh re-runs the loop for the patient behind a single
// referral, typically when a physician asks for a fresh summary.
func (l *Loop) ProcessManualRefresh(ctx context.Context, referralID string) (*LoopSummary, error) {
	ref, err := l.referrals.GetReferral(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("referral %s not found: %w", referralID, err)
	}
	return l.ProcessRecordsUpdated(ctx, referral.RecordsUpdatedEvent{
		PatientID:  ref.PatientID,
		ReferralID: referralID,
		Timestamp:  time.Now(),
	})
}

func (l *Loop) fail(ctx context.Context, taskID string, cause error) {
	l.logger.Error("loop run failed", zap.String("task", taskID), zap.Error(cause))
	if err := l.ledger.Fail(ctx, taskID, cause.Error()); err != nil {
		l.logger.Warn("ledger fail failed", zap.String("task", taskID), zap.Error(err))
	}
}
