// Package orchestrator drives the referral fan-out: a two-phase
// dependency graph over the lookup services and the summarizer, joined
// with all-settled semantics, whose output is one decision card per
// successful run. It also hosts the change-reaction loop that keeps
// summaries fresh when a patient's records change.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careline/careline/internal/lookup"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/summarizer"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// DirectoryService finds candidate specialists.
type DirectoryService interface {
	FindProviders(ctx context.Context, in lookup.DirectoryInput) (*lookup.DirectoryOutput, error)
}

// RecordsService assembles and persists the patient's medical record.
type RecordsService interface {
	ParseRecords(ctx context.Context, in lookup.RecordsInput) (*lookup.RecordsOutput, error)
}

// AvailabilityService lists open slots for providers.
type AvailabilityService interface {
	GetAvailability(ctx context.Context, in lookup.AvailabilityInput) (*lookup.AvailabilityOutput, error)
}

// CostService prices providers against the patient's plan.
type CostService interface {
	EstimateCosts(ctx context.Context, in lookup.CostInput) (*lookup.CostOutput, error)
}

// SummaryService generates the clinician brief and patient explainer.
type SummaryService interface {
	GenerateSummaries(ctx context.Context, in summarizer.Input) (*summarizer.Output, error)
}

// ReferralSource loads referrals.
type ReferralSource interface {
	GetReferral(ctx context.Context, id string) (*referral.Referral, error)
}

// CardStore persists decision cards; Create fills the id and timestamp.
type CardStore interface {
	CreateDecisionCard(ctx context.Context, card *referral.DecisionCard) error
}

// Summary is recorded on the orchestrator task when a run completes.
type Summary struct {
	DecisionCardID     string `json:"decision_card_id"`
	ProviderCount      int    `json:"provider_count"`
	AvailabilitySlots  int    `json:"availability_slots"`
	CostEstimates      int    `json:"cost_estimates"`
	SummariesGenerated bool   `json:"summaries_generated"`
}

// defaultPhaseTimeout bounds each parallel phase; every branch inside a
// phase shares the deadline so a hung upstream cannot stall a referral
// forever.
const defaultPhaseTimeout = 2 * time.Minute

// Orchestrator coordinates the referral fan-out.
type Orchestrator struct {
	referrals    ReferralSource
	directory    DirectoryService
	records      RecordsService
	availability AvailabilityService
	cost         CostService
	summarizer   SummaryService
	cards        CardStore
	ledger       task.Ledger
	logger       *zap.Logger
	phaseTimeout time.Duration
}

// New creates an orchestrator.
func New(
	referrals ReferralSource,
	directory DirectoryService,
	records RecordsService,
	availability AvailabilityService,
	cost CostService,
	summaries SummaryService,
	cards CardStore,
	ledger task.Ledger,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		referrals:    referrals,
		directory:    directory,
		records:      records,
		availability: availability,
		cost:         cost,
		summarizer:   summaries,
		cards:        cards,
		ledger:       ledger,
		logger:       logger,
		phaseTimeout: defaultPhaseTimeout,
	}
}

// SetPhaseTimeout overrides the per-phase deadline.
func (o *Orchestrator) SetPhaseTimeout(d time.Duration) {
	if d > 0 {
		o.phaseTimeout = d
	}
}

// ProcessReferralCreated runs the full fan-out for a new referral and
// returns the persisted decision card's id.
//
// Phase 1 runs directory and records in parallel; either failure aborts
// the run. Phase 2 runs availability, cost, and the summarizer in
// parallel over phase 1's provider list; availability and cost failures
// abort, a summarizer failure only drops the patient explainer from the
// card.
func (o *Orchestrator) ProcessReferralCreated(ctx context.Context, event referral.CreatedEvent) (string, error) {
	taskID, err := o.ledger.Begin(ctx, task.TypeOrchestrator, event.ReferralID, event)
	if err != nil {
		return "", err
	}

	ref, err := o.referrals.GetReferral(ctx, event.ReferralID)
	if err != nil {
		err = fmt.Errorf("referral %s not found: %w", event.ReferralID, err)
		o.fail(ctx, taskID, err)
		return "", err
	}

	// Phase 1: directory and records.
	phase1, cancel1 := context.WithTimeout(ctx, o.phaseTimeout)
	var (
		wg1     sync.WaitGroup
		dirOut  *lookup.DirectoryOutput
		dirErr  error
		recOut  *lookup.RecordsOutput
		recErr  error
	)
	wg1.Add(2)
	go func() {
		defer wg1.Done()
		dirOut, dirErr = o.directory.FindProviders(phase1, lookup.DirectoryInput{
			ReferralID: event.ReferralID,
			Specialty:  event.Specialty,
			PatientID:  event.PatientID,
		})
	}()
	go func() {
		defer wg1.Done()
		recOut, recErr = o.records.ParseRecords(phase1, lookup.RecordsInput{
			ReferralID: event.ReferralID,
			PatientID:  event.PatientID,
		})
	}()
	wg1.Wait()
	cancel1()

	if dirErr != nil {
		err = fmt.Errorf("directory lookup failed: %w", dirErr)
		o.fail(ctx, taskID, err)
		return "", err
	}
	if recErr != nil {
		err = fmt.Errorf("records lookup failed: %w", recErr)
		o.fail(ctx, taskID, err)
		return "", err
	}

	providers := dirOut.Providers
	providerIDs := make([]string, len(providers))
	for i, p := range providers {
		providerIDs[i] = p.ID
	}

	// Phase 2: availability, cost, and synthesis over the shortlist.
	phase2, cancel2 := context.WithTimeout(ctx, o.phaseTimeout)
	var (
		wg2      sync.WaitGroup
		availOut *lookup.AvailabilityOutput
		availErr error
		costOut  *lookup.CostOutput
		costErr  error
		sumOut   *summarizer.Output
		sumErr   error
	)
	wg2.Add(3)
	go func() {
		defer wg2.Done()
		availOut, availErr = o.availability.GetAvailability(phase2, lookup.AvailabilityInput{
			ReferralID:  event.ReferralID,
			ProviderIDs: providerIDs,
			Urgency:     ref.Urgency,
		})
	}()
	go func() {
		defer wg2.Done()
		costOut, costErr = o.cost.EstimateCosts(phase2, lookup.CostInput{
			ReferralID: event.ReferralID,
			Providers:  providers,
		})
	}()
	go func() {
		defer wg2.Done()
		sumOut, sumErr = o.summarizer.GenerateSummaries(phase2, summarizer.Input{
			ReferralID:    event.ReferralID,
			PatientID:     event.PatientID,
			Referral:      ref,
			MedicalRecord: recOut.MedicalRecord,
		})
	}()
	wg2.Wait()
	cancel2()

	if availErr != nil {
		err = fmt.Errorf("availability lookup failed: %w", availErr)
		o.fail(ctx, taskID, err)
		return "", err
	}
	if costErr != nil {
		err = fmt.Errorf("cost estimation failed: %w", costErr)
		o.fail(ctx, taskID, err)
		return "", err
	}
	if sumErr != nil {
		// Degrade gracefully: the card is still useful without the explainer.
		o.logger.Warn("summarizer failed, decision card will omit patient explainer",
			zap.String("referral", event.ReferralID), zap.Error(sumErr))
	}

	card := &referral.DecisionCard{
		ReferralID:    event.ReferralID,
		Providers:     providers,
		Availability:  availOut.Availability,
		CostEstimates: costOut.Estimates,
	}
	if sumErr == nil {
		card.PatientExplainer = sumOut.PatientExplainer
	}

	if err := o.cards.CreateDecisionCard(ctx, card); err != nil {
		err = fmt.Errorf("save decision card: %w", err)
		o.fail(ctx, taskID, err)
		return "", err
	}

	summary := Summary{
		DecisionCardID:     card.ID,
		ProviderCount:      len(providers),
		AvailabilitySlots:  len(availOut.Availability),
		CostEstimates:      len(costOut.Estimates),
		SummariesGenerated: sumErr == nil,
	}
	if err := o.ledger.Complete(ctx, taskID, summary); err != nil {
		o.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}

	o.logger.Info("referral orchestrated",
		zap.String("referral", event.ReferralID),
		zap.String("card", card.ID),
		zap.Int("providers", summary.ProviderCount))
	return card.ID, nil
}

func (o *Orchestrator) fail(ctx context.Context, taskID string, cause error) {
	o.logger.Error("orchestration failed", zap.String("task", taskID), zap.Error(cause))
	if err := o.ledger.Fail(ctx, taskID, cause.Error()); err != nil {
		o.logger.Warn("ledger fail failed", zap.String("task", taskID), zap.Error(err))
	}
}
