package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/careline/careline/internal/lookup"
	"github.com/careline/careline/internal/orchestrator"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReferralStore reads and writes referrals.
type ReferralStore interface {
	CreateReferral(ctx context.Context, r *referral.Referral) error
	GetReferral(ctx context.Context, id string) (*referral.Referral, error)
	ListReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error)
}

// CardSource reads decision cards.
type CardSource interface {
	GetLatestDecisionCard(ctx context.Context, referralID string) (*referral.DecisionCard, error)
	ListDecisionCards(ctx context.Context, referralID string) ([]*referral.DecisionCard, error)
}

// TaskSource reads a referral's task audit trail.
type TaskSource interface {
	ListTasksByReferral(ctx context.Context, referralID string) ([]*task.Task, error)
}

// FanOut runs the full referral fan-out and returns the decision card id.
type FanOut interface {
	ProcessReferralCreated(ctx context.Context, event referral.CreatedEvent) (string, error)
}

// ChangeLoop reacts to chart changes by refreshing summaries.
type ChangeLoop interface {
	ProcessRecordsUpdated(ctx context.Context, event referral.RecordsUpdatedEvent) (*orchestrator.LoopSummary, error)
	ProcessManualRefresh(ctx context.Context, referralID string) (*orchestrator.LoopSummary, error)
}

// Booker reserves appointment slots.
type Booker interface {
	BookAppointment(ctx context.Context, in lookup.BookingInput) (*lookup.BookingResult, error)
}

// ProviderDirectory answers ad-hoc provider searches outside the
// orchestrated fan-out.
type ProviderDirectory interface {
	ProvidersByNPI(npiNumbers []string) []referral.Provider
	SearchByName(name, specialty string) []referral.Provider
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	referrals ReferralStore
	cards     CardSource
	tasks     TaskSource
	fanout    FanOut
	loop      ChangeLoop
	booker    Booker
	directory ProviderDirectory
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	referrals ReferralStore,
	cards CardSource,
	tasks TaskSource,
	fanout FanOut,
	loop ChangeLoop,
	booker Booker,
	directory ProviderDirectory,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		referrals: referrals,
		cards:     cards,
		tasks:     tasks,
		fanout:    fanout,
		loop:      loop,
		booker:    booker,
		directory: directory,
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/referrals", h.createReferral)
		r.Get("/referrals/{id}", h.getReferral)
		r.Get("/referrals/{id}/card", h.getDecisionCard)
		r.Get("/referrals/{id}/cards", h.listDecisionCards)
		r.Get("/referrals/{id}/tasks", h.listTasks)
		r.Post("/referrals/{id}/refresh", h.refreshReferral)
		r.Post("/referrals/{id}/book", h.bookAppointment)

		r.Get("/patients/{patientID}/referrals", h.listPatientReferrals)

		r.Get("/providers", h.searchProviders)

		// Event ingestion: the same triggers the stream consumer fires on,
		// exposed over HTTP for synchronous callers.
		r.Post("/events/referral-created", h.referralCreated)
		r.Post("/events/records-updated", h.recordsUpdated)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "careline"})
}

type createReferralRequest struct {
	PatientID    string `json:"patient_id"`
	FromDoctorID string `json:"from_doctor_id"`
	Specialty    string `json:"specialty"`
	Reason       string `json:"reason"`
	Urgency      string `json:"urgency,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Orchestrate  bool   `json:"orchestrate,omitempty"`
}

type createReferralResponse struct {
	Referral       *referral.Referral `json:"referral"`
	DecisionCardID string             `json:"decision_card_id,omitempty"`
}

func (h *Handler) createReferral(w http.ResponseWriter, r *http.Request) {
	var req createReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.PatientID == "" || req.Specialty == "" || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id, specialty and reason are required"})
		return
	}
	if req.Urgency == "" {
		req.Urgency = string(referral.UrgencyRoutine)
	}
	switch referral.Urgency(req.Urgency) {
	case referral.UrgencyRoutine, referral.UrgencyUrgent, referral.UrgencyStat:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "urgency must be routine, urgent or stat"})
		return
	}

	ref := &referral.Referral{
		PatientID:    req.PatientID,
		FromDoctorID: req.FromDoctorID,
		Specialty:    req.Specialty,
		Reason:       req.Reason,
		Urgency:      referral.Urgency(req.Urgency),
		Notes:        req.Notes,
	}
	if err := h.referrals.CreateReferral(r.Context(), ref); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := createReferralResponse{Referral: ref}
	if req.Orchestrate {
		cardID, err := h.fanout.ProcessReferralCreated(r.Context(), referral.CreatedEvent{
			ReferralID: ref.ID,
			PatientID:  ref.PatientID,
			Specialty:  ref.Specialty,
			Timestamp:  time.Now(),
		})
		if err != nil {
			h.logger.Error("orchestration on create failed", zap.String("referral", ref.ID), zap.Error(err))
			writeJSON(w, http.StatusCreated, resp)
			return
		}
		resp.DecisionCardID = cardID
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getReferral(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, err := h.referrals.GetReferral(r.Context(), id)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) listPatientReferrals(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	refs, err := h.referrals.ListReferralsByPatient(r.Context(), patientID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if refs == nil {
		refs = []*referral.Referral{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (h *Handler) getDecisionCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, err := h.cards.GetLatestDecisionCard(r.Context(), id)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) listDecisionCards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cards, err := h.cards.ListDecisionCards(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if cards == nil {
		cards = []*referral.DecisionCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tasks, err := h.tasks.ListTasksByReferral(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) refreshReferral(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := h.loop.ProcessManualRefresh(r.Context(), id)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type bookRequest struct {
	ProviderID string    `json:"provider_id"`
	PatientID  string    `json:"patient_id"`
	Slot       time.Time `json:"slot"`
}

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.ProviderID == "" || req.Slot.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provider_id and slot are required"})
		return
	}
	res, err := h.booker.BookAppointment(r.Context(), lookup.BookingInput{
		ReferralID: id,
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		Slot:       req.Slot,
	})
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// searchProviders looks providers up by NPI number (?npi=a,b,c) or by
// name (?name=, optionally narrowed with ?specialty=).
func (h *Handler) searchProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var providers []referral.Provider
	switch {
	case q.Get("npi") != "":
		providers = h.directory.ProvidersByNPI(strings.Split(q.Get("npi"), ","))
	case q.Get("name") != "":
		providers = h.directory.SearchByName(q.Get("name"), q.Get("specialty"))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "npi or name query parameter is required"})
		return
	}
	if providers == nil {
		providers = []referral.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

func (h *Handler) referralCreated(w http.ResponseWriter, r *http.Request) {
	var event referral.CreatedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if event.ReferralID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "referral_id is required"})
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	cardID, err := h.fanout.ProcessReferralCreated(r.Context(), event)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"referral_id":      event.ReferralID,
		"decision_card_id": cardID,
	})
}

func (h *Handler) recordsUpdated(w http.ResponseWriter, r *http.Request) {
	var event referral.RecordsUpdatedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if event.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id is required"})
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	summary, err := h.loop.ProcessRecordsUpdated(r.Context(), event)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func statusFor(err error) int {
	if errors.Is(err, referral.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
