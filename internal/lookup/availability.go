package lookup

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityInput identifies the referral and the providers to query.
type AvailabilityInput struct {
	ReferralID  string           `json:"referral_id"`
	ProviderIDs []string         `json:"provider_ids"`
	Urgency     referral.Urgency `json:"urgency,omitempty"`
}

// AvailabilityOutput is the flattened, date-sorted slot list.
type AvailabilityOutput struct {
	Availability []referral.AvailabilitySlot `json:"availability"`
}

// BookingInput requests one slot for a referral.
type BookingInput struct {
	ReferralID string    `json:"referral_id"`
	ProviderID string    `json:"provider_id"`
	PatientID  string    `json:"patient_id"`
	Slot       time.Time `json:"slot"`
}

// BookingResult confirms a reservation.
type BookingResult struct {
	BookingID string `json:"booking_id"`
	Confirmed bool   `json:"confirmed"`
}

// ReferralScheduler advances a referral to scheduled once a slot is booked.
type ReferralScheduler interface {
	ScheduleReferral(ctx context.Context, referralID, toDoctorID string, slot time.Time) error
}

// urgencyWindow maps urgency to the search window and slot count.
type urgencyWindow struct {
	startDays int
	endDays   int
	slotCount int
}

var urgencyWindows = map[referral.Urgency]urgencyWindow{
	referral.UrgencyStat:    {startDays: 0, endDays: 3, slotCount: 2},
	referral.UrgencyUrgent:  {startDays: 1, endDays: 7, slotCount: 3},
	referral.UrgencyRoutine: {startDays: 7, endDays: 60, slotCount: 5},
}

// Availability produces open appointment slots per provider. Slots are
// generated by a schedule stand-in: real provider calendars would plug
// in behind the same contract.
type Availability struct {
	scheduler ReferralScheduler
	ledger    task.Ledger
	logger    *zap.Logger
	now       func() time.Time

	// rngMu guards rng: *rand.Rand is not safe for concurrent use and
	// requests run in parallel goroutines.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewAvailability creates an availability service. scheduler may be nil
// when booking is not wired (the orchestration path never books).
func NewAvailability(scheduler ReferralScheduler, ledger task.Ledger, logger *zap.Logger) *Availability {
	return &Availability{
		scheduler: scheduler,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// GetAvailability returns slots for every requested provider, flattened
// and sorted by date. Per provider: stat gets 2 slots within 0–3 days,
// urgent 3 within 1–7, routine 5 within 7–60; times are on the half
// hour between 08:00 and 17:00.
func (a *Availability) GetAvailability(ctx context.Context, in AvailabilityInput) (*AvailabilityOutput, error) {
	taskID, err := a.ledger.Begin(ctx, task.TypeAvailability, in.ReferralID, in)
	if err != nil {
		return nil, err
	}

	urgency := in.Urgency
	if urgency == "" {
		urgency = referral.UrgencyRoutine
	}

	var slots []referral.AvailabilitySlot
	for _, providerID := range in.ProviderIDs {
		slots = append(slots, a.generateSlots(providerID, urgency)...)
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Slot.Before(slots[j].Slot)
	})

	a.logger.Info("availability generated slots",
		zap.String("referral", in.ReferralID),
		zap.Int("providers", len(in.ProviderIDs)),
		zap.Int("slots", len(slots)))

	out := &AvailabilityOutput{Availability: slots}
	if err := a.ledger.Complete(ctx, taskID, out); err != nil {
		a.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return out, nil
}

func (a *Availability) generateSlots(providerID string, urgency referral.Urgency) []referral.AvailabilitySlot {
	w, ok := urgencyWindows[urgency]
	if !ok {
		w = urgencyWindows[referral.UrgencyRoutine]
	}

	now := a.now()
	slots := make([]referral.AvailabilitySlot, 0, w.slotCount)
	for i := 0; i < w.slotCount; i++ {
		days := w.startDays
		if w.endDays > w.startDays {
			days += a.intN(w.endDays - w.startDays)
		}
		hour := 8 + a.intN(9)
		minute := 0
		if a.intN(2) == 1 {
			minute = 30
		}
		day := now.AddDate(0, 0, days)
		slot := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())

		slots = append(slots, referral.AvailabilitySlot{
			ProviderID:      providerID,
			Slot:            slot,
			DurationMinutes: appointmentDuration(providerID),
			AppointmentType: appointmentType(urgency),
		})
	}
	return slots
}

func (a *Availability) intN(n int) int {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.IntN(n)
}

// appointmentDuration derives the visit length from the specialty
// keyword in the provider id.
func appointmentDuration(providerID string) int {
	switch {
	case strings.Contains(providerID, "cardio"):
		return 60
	case strings.Contains(providerID, "derm"):
		return 30
	case strings.Contains(providerID, "ortho"):
		return 45
	default:
		return 45
	}
}

func appointmentType(urgency referral.Urgency) string {
	switch urgency {
	case referral.UrgencyStat:
		return "emergency_consultation"
	case referral.UrgencyUrgent:
		return "urgent_consultation"
	case referral.UrgencyRoutine:
		return "new_patient_consultation"
	default:
		return "consultation"
	}
}

// BookAppointment reserves a slot and advances the referral to
// scheduled with the chosen provider and date.
func (a *Availability) BookAppointment(ctx context.Context, in BookingInput) (*BookingResult, error) {
	if a.scheduler == nil {
		return nil, fmt.Errorf("booking is not configured")
	}
	if err := a.scheduler.ScheduleReferral(ctx, in.ReferralID, in.ProviderID, in.Slot); err != nil {
		return nil, fmt.Errorf("schedule referral %s: %w", in.ReferralID, err)
	}
	res := &BookingResult{BookingID: "booking-" + uuid.New().String(), Confirmed: true}
	a.logger.Info("appointment booked",
		zap.String("referral", in.ReferralID),
		zap.String("provider", in.ProviderID),
		zap.Time("slot", in.Slot),
		zap.String("booking", res.BookingID))
	return res, nil
}
