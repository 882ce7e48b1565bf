package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/summarizer"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

type stubLister struct {
	active []*referral.Referral
	err    error
}

func (s *stubLister) GetReferral(ctx context.Context, id string) (*referral.Referral, error) {
	for _, r := range s.active {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, referral.ErrNotFound
}

func (s *stubLister) ListActiveReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error) {
	return s.active, s.err
}

type stubBriefs struct {
	briefs map[string]*referral.ClinicianBrief
}

func (s *stubBriefs) GetLatestClinicianBrief(ctx context.Context, referralID string) (*referral.ClinicianBrief, error) {
	b, ok := s.briefs[referralID]
	if !ok {
		return nil, referral.ErrNotFound
	}
	return b, nil
}

// stubSummaries returns a configured brief per referral, or an error.
type stubSummaries struct {
	briefs map[string]*referral.ClinicianBrief
	errs   map[string]error
}

func (s *stubSummaries) GenerateSummaries(ctx context.Context, in summarizer.Input) (*summarizer.Output, error) {
	if err := s.errs[in.ReferralID]; err != nil {
		return nil, err
	}
	return &summarizer.Output{ClinicianBrief: s.briefs[in.ReferralID]}, nil
}

type recordingNotifier struct {
	summaryUpdates []string
	alerts         []string
}

func (n *recordingNotifier) NotifySummaryUpdated(ctx context.Context, referralID, patientID string) error {
	n.summaryUpdates = append(n.summaryUpdates, referralID)
	return nil
}

func (n *recordingNotifier) Alert(ctx context.Context, patientID, message string) error {
	n.alerts = append(n.alerts, message)
	return nil
}

func activeReferral(id string) *referral.Referral {
	return &referral.Referral{
		ID: id, PatientID: "patient-001",
		Specialty: "Cardiology", Urgency: referral.UrgencyRoutine,
		Status: referral.StatusPending,
	}
}

func TestSignificantChange(t *testing.T) {
	base := &referral.ClinicianBrief{
		ProblemList: []string{"Hypertension"},
		RedFlags:    []string{"A"},
		KeyLabs:     []string{"BNP 450 (abnormal)"},
	}

	if !significantChange(nil, base) {
		t.Error("missing old brief should be significant")
	}

	same := *base
	if significantChange(base, &same) {
		t.Error("identical brief should not be significant")
	}

	flagged := *base
	flagged.RedFlags = []string{"A", "B"}
	if !significantChange(base, &flagged) {
		t.Error("new red flag should be significant")
	}

	problem := *base
	problem.ProblemList = []string{"Hypertension", "Atrial fibrillation"}
	if !significantChange(base, &problem) {
		t.Error("new problem should be significant")
	}

	lab := *base
	lab.KeyLabs = []string{"BNP 450 (abnormal)", "Troponin elevated"}
	if !significantChange(base, &lab) {
		t.Error("new elevated lab should be significant")
	}

	benign := *base
	benign.KeyLabs = []string{"BNP 450 (abnormal)", "Sodium 140 (normal)"}
	if significantChange(base, &benign) {
		t.Error("new normal lab should not be significant")
	}
}

func newTestLoop(lister *stubLister, briefs *stubBriefs, summaries *stubSummaries) (*Loop, *recordingNotifier, *task.MemoryLedger) {
	notifier := &recordingNotifier{}
	ledger := task.NewMemoryLedger()
	loop := NewLoop(lister, briefs, summaries, notifier, ledger, zap.NewNop())
	return loop, notifier, ledger
}

func TestProcessRecordsUpdatedNoActiveReferrals(t *testing.T) {
	loop, notifier, ledger := newTestLoop(&stubLister{}, &stubBriefs{}, &stubSummaries{})

	summary, err := loop.ProcessRecordsUpdated(context.Background(), referral.RecordsUpdatedEvent{PatientID: "patient-001"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.ReferralsProcessed != 0 || summary.Message != "No active referrals to update" {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(notifier.summaryUpdates) != 0 {
		t.Error("no notifications expected")
	}

	tasks := ledger.List()
	if len(tasks) != 1 || tasks[0].Status != task.StatusCompleted {
		t.Fatalf("expected one completed task, got %+v", tasks)
	}
}

func TestProcessRecordsUpdatedNotifiesOnSignificantChange(t *testing.T) {
	old := &referral.ClinicianBrief{RedFlags: []string{"A"}}
	fresh := &referral.ClinicianBrief{RedFlags: []string{"A", "B"}}

	lister := &stubLister{active: []*referral.Referral{activeReferral("ref-1")}}
	briefs := &stubBriefs{briefs: map[string]*referral.ClinicianBrief{"ref-1": old}}
	summaries := &stubSummaries{briefs: map[string]*referral.ClinicianBrief{"ref-1": fresh}}
	loop, notifier, _ := newTestLoop(lister, briefs, summaries)

	summary, err := loop.ProcessRecordsUpdated(context.Background(), referral.RecordsUpdatedEvent{PatientID: "patient-001"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.SuccessfulUpdates != 1 || summary.SignificantChanges != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(notifier.summaryUpdates) != 1 || notifier.summaryUpdates[0] != "ref-1" {
		t.Errorf("notifications = %v", notifier.summaryUpdates)
	}
}

func TestProcessRecordsUpdatedSkipsInsignificantChange(t *testing.T) {
	same := &referral.ClinicianBrief{RedFlags: []string{"A"}}

	lister := &stubLister{active: []*referral.Referral{activeReferral("ref-1")}}
	briefs := &stubBriefs{briefs: map[string]*referral.ClinicianBrief{"ref-1": same}}
	summaries := &stubSummaries{briefs: map[string]*referral.ClinicianBrief{"ref-1": same}}
	loop, notifier, _ := newTestLoop(lister, briefs, summaries)

	summary, err := loop.ProcessRecordsUpdated(context.Background(), referral.RecordsUpdatedEvent{PatientID: "patient-001"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.SuccessfulUpdates != 1 || summary.SignificantChanges != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(notifier.summaryUpdates) != 0 {
		t.Errorf("no notification expected, got %v", notifier.summaryUpdates)
	}
}

func TestProcessRecordsUpdatedIsolatesFailures(t *testing.T) {
	fresh := &referral.ClinicianBrief{ProblemList: []string{"New problem"}}

	lister := &stubLister{active: []*referral.Referral{activeReferral("ref-1"), activeReferral("ref-2")}}
	briefs := &stubBriefs{}
	summaries := &stubSummaries{
		briefs: map[string]*referral.ClinicianBrief{"ref-2": fresh},
		errs:   map[string]error{"ref-1": errors.New("model unavailable")},
	}
	loop, _, _ := newTestLoop(lister, briefs, summaries)

	summary, err := loop.ProcessRecordsUpdated(context.Background(), referral.RecordsUpdatedEvent{PatientID: "patient-001"})
	if err != nil {
		t.Fatalf("one referral's failure must not fail the run: %v", err)
	}
	if summary.ReferralsProcessed != 2 || summary.SuccessfulUpdates != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	var failed *ReferralUpdate
	for i := range summary.Results {
		if summary.Results[i].ReferralID == "ref-1" {
			failed = &summary.Results[i]
		}
	}
	if failed == nil || failed.Updated || failed.Error == "" {
		t.Errorf("ref-1 result should record the error, got %+v", failed)
	}
}

func TestProcessLabResultsAddedAlertsOnCritical(t *testing.T) {
	loop, notifier, _ := newTestLoop(&stubLister{}, &stubBriefs{}, &stubSummaries{})

	_, err := loop.ProcessLabResultsAdded(context.Background(), "patient-001", []referral.LabResult{
		{TestName: "Potassium", Value: "6.8", Status: referral.LabCritical},
		{TestName: "Sodium", Value: "140", Status: referral.LabNormal},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(notifier.alerts) != 1 || !strings.Contains(notifier.alerts[0], "Potassium") {
		t.Errorf("alerts = %v", notifier.alerts)
	}
}

func TestProcessMedicationChangesAlertsOnHighRisk(t *testing.T) {
	loop, notifier, _ := newTestLoop(&stubLister{}, &stubBriefs{}, &stubSummaries{})

	_, err := loop.ProcessMedicationChanges(context.Background(), "patient-001", []referral.Medication{
		{Name: "Warfarin", Dosage: "5mg"},
		{Name: "Lisinopril", Dosage: "10mg"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(notifier.alerts) != 1 || !strings.Contains(notifier.alerts[0], "Warfarin") {
		t.Errorf("alerts = %v", notifier.alerts)
	}
}

func TestProcessManualRefresh(t *testing.T) {
	fresh := &referral.ClinicianBrief{ProblemList: []string{"New problem"}}
	lister := &stubLister{active: []*referral.Referral{activeReferral("ref-1")}}
	briefs := &stubBriefs{}
	summaries := &stubSummaries{briefs: map[string]*referral.ClinicianBrief{"ref-1": fresh}}
	loop, notifier, _ := newTestLoop(lister, briefs, summaries)

	summary, err := loop.ProcessManualRefresh(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.SuccessfulUpdates != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	// No prior brief, so the change counts as significant.
	if len(notifier.summaryUpdates) != 1 {
		t.Errorf("notifications = %v", notifier.summaryUpdates)
	}

	if _, err := loop.ProcessManualRefresh(context.Background(), "ref-404"); err == nil {
		t.Error("expected error for unknown referral")
	}
}
