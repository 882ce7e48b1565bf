package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/careline/careline/internal/lookup"
	"github.com/careline/careline/internal/orchestrator"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// fakeBackend implements every handler dependency with in-memory state.
type fakeBackend struct {
	referrals map[string]*referral.Referral
	cards     map[string][]*referral.DecisionCard
	tasks     map[string][]*task.Task

	orchestrated []referral.CreatedEvent
	orchestERR   error
	refreshed    []string
	loopEvents   []referral.RecordsUpdatedEvent
	bookings     []lookup.BookingInput
	providers    []referral.Provider
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		referrals: make(map[string]*referral.Referral),
		cards:     make(map[string][]*referral.DecisionCard),
		tasks:     make(map[string][]*task.Task),
	}
}

func (f *fakeBackend) CreateReferral(ctx context.Context, r *referral.Referral) error {
	r.ID = "ref-1"
	r.Status = referral.StatusPending
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.referrals[r.ID] = r
	return nil
}

func (f *fakeBackend) GetReferral(ctx context.Context, id string) (*referral.Referral, error) {
	r, ok := f.referrals[id]
	if !ok {
		return nil, referral.ErrNotFound
	}
	return r, nil
}

func (f *fakeBackend) ListReferralsByPatient(ctx context.Context, patientID string) ([]*referral.Referral, error) {
	var out []*referral.Referral
	for _, r := range f.referrals {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetLatestDecisionCard(ctx context.Context, referralID string) (*referral.DecisionCard, error) {
	cards := f.cards[referralID]
	if len(cards) == 0 {
		return nil, referral.ErrNotFound
	}
	return cards[0], nil
}

func (f *fakeBackend) ListDecisionCards(ctx context.Context, referralID string) ([]*referral.DecisionCard, error) {
	return f.cards[referralID], nil
}

func (f *fakeBackend) ListTasksByReferral(ctx context.Context, referralID string) ([]*task.Task, error) {
	return f.tasks[referralID], nil
}

func (f *fakeBackend) ProcessReferralCreated(ctx context.Context, event referral.CreatedEvent) (string, error) {
	if f.orchestERR != nil {
		return "", f.orchestERR
	}
	f.orchestrated = append(f.orchestrated, event)
	return "card-1", nil
}

func (f *fakeBackend) ProcessRecordsUpdated(ctx context.Context, event referral.RecordsUpdatedEvent) (*orchestrator.LoopSummary, error) {
	f.loopEvents = append(f.loopEvents, event)
	return &orchestrator.LoopSummary{ReferralsProcessed: 1, SuccessfulUpdates: 1}, nil
}

func (f *fakeBackend) ProcessManualRefresh(ctx context.Context, referralID string) (*orchestrator.LoopSummary, error) {
	if _, ok := f.referrals[referralID]; !ok {
		return nil, referral.ErrNotFound
	}
	f.refreshed = append(f.refreshed, referralID)
	return &orchestrator.LoopSummary{ReferralsProcessed: 1, SuccessfulUpdates: 1}, nil
}

func (f *fakeBackend) BookAppointment(ctx context.Context, in lookup.BookingInput) (*lookup.BookingResult, error) {
	if _, ok := f.referrals[in.ReferralID]; !ok {
		return nil, referral.ErrNotFound
	}
	f.bookings = append(f.bookings, in)
	return &lookup.BookingResult{BookingID: "booking-1", Confirmed: true}, nil
}

func (f *fakeBackend) ProvidersByNPI(npiNumbers []string) []referral.Provider {
	want := make(map[string]bool, len(npiNumbers))
	for _, n := range npiNumbers {
		want[n] = true
	}
	var out []referral.Provider
	for _, p := range f.providers {
		if want[p.NPINumber] {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeBackend) SearchByName(name, specialty string) []referral.Provider {
	var out []referral.Provider
	for _, p := range f.providers {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			continue
		}
		if specialty != "" && !strings.EqualFold(p.Specialty, specialty) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func newTestServer(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := newFakeBackend()
	h := NewHandler(b, b, b, b, b, b, b, zap.NewNop())
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return b, ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["service"] != "careline" {
		t.Errorf("expected service careline, got %q", body["service"])
	}
}

func TestCreateAndGetReferral(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/referrals", map[string]interface{}{
		"patient_id":     "patient-001",
		"from_doctor_id": "dr-pcp-001",
		"specialty":      "Cardiology",
		"reason":         "Worsening dyspnea",
		"urgency":        "urgent",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created createReferralResponse
	decodeJSON(t, resp, &created)
	if created.Referral.ID == "" || created.Referral.Status != referral.StatusPending {
		t.Fatalf("unexpected referral %+v", created.Referral)
	}

	resp = getJSON(t, ts, "/api/referrals/"+created.Referral.ID)
	if resp.StatusCode != 200 {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var got referral.Referral
	decodeJSON(t, resp, &got)
	if got.Specialty != "Cardiology" || got.Urgency != referral.UrgencyUrgent {
		t.Errorf("unexpected referral %+v", got)
	}
}

func TestCreateReferralValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/referrals", map[string]interface{}{
		"patient_id": "patient-001",
	})
	if resp.StatusCode != 400 {
		t.Errorf("missing fields: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/referrals", map[string]interface{}{
		"patient_id": "patient-001",
		"specialty":  "Cardiology",
		"reason":     "Chest pain",
		"urgency":    "tomorrow",
	})
	if resp.StatusCode != 400 {
		t.Errorf("bad urgency: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateReferralWithOrchestration(t *testing.T) {
	b, ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/referrals", map[string]interface{}{
		"patient_id":  "patient-001",
		"specialty":   "Cardiology",
		"reason":      "Chest pain",
		"orchestrate": true,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created createReferralResponse
	decodeJSON(t, resp, &created)
	if created.DecisionCardID != "card-1" {
		t.Errorf("decision card id = %q", created.DecisionCardID)
	}
	if len(b.orchestrated) != 1 || b.orchestrated[0].ReferralID != created.Referral.ID {
		t.Errorf("orchestrated events = %+v", b.orchestrated)
	}
}

func TestGetReferralNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/referrals/ref-404")
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReferralCreatedEvent(t *testing.T) {
	b, ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/events/referral-created", map[string]interface{}{
		"referral_id": "ref-1",
		"patient_id":  "patient-001",
		"specialty":   "Cardiology",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["decision_card_id"] != "card-1" {
		t.Errorf("decision card id = %q", body["decision_card_id"])
	}
	if len(b.orchestrated) != 1 {
		t.Errorf("orchestrated %d events, want 1", len(b.orchestrated))
	}
}

func TestReferralCreatedEventFailure(t *testing.T) {
	b, ts := newTestServer(t)
	b.orchestERR = errors.New("directory lookup failed: registry timeout")

	resp := postJSON(t, ts, "/api/events/referral-created", map[string]interface{}{
		"referral_id": "ref-1",
		"patient_id":  "patient-001",
	})
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRecordsUpdatedEvent(t *testing.T) {
	b, ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/events/records-updated", map[string]interface{}{
		"patient_id": "patient-001",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summary orchestrator.LoopSummary
	decodeJSON(t, resp, &summary)
	if summary.SuccessfulUpdates != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(b.loopEvents) != 1 || b.loopEvents[0].PatientID != "patient-001" {
		t.Errorf("loop events = %+v", b.loopEvents)
	}

	// Missing patient id is rejected before the loop runs.
	resp = postJSON(t, ts, "/api/events/records-updated", map[string]interface{}{})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRefreshReferral(t *testing.T) {
	b, ts := newTestServer(t)
	b.referrals["ref-1"] = &referral.Referral{ID: "ref-1", PatientID: "patient-001", Status: referral.StatusPending}

	resp := postJSON(t, ts, "/api/referrals/ref-1/refresh", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(b.refreshed) != 1 || b.refreshed[0] != "ref-1" {
		t.Errorf("refreshed = %v", b.refreshed)
	}

	resp = postJSON(t, ts, "/api/referrals/ref-404/refresh", nil)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDecisionCardRoutes(t *testing.T) {
	b, ts := newTestServer(t)
	b.cards["ref-1"] = []*referral.DecisionCard{
		{ID: "card-2", ReferralID: "ref-1"},
		{ID: "card-1", ReferralID: "ref-1"},
	}

	resp := getJSON(t, ts, "/api/referrals/ref-1/card")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var card referral.DecisionCard
	decodeJSON(t, resp, &card)
	if card.ID != "card-2" {
		t.Errorf("latest card = %s, want card-2", card.ID)
	}

	resp = getJSON(t, ts, "/api/referrals/ref-1/cards")
	var cards []*referral.DecisionCard
	decodeJSON(t, resp, &cards)
	if len(cards) != 2 {
		t.Errorf("got %d cards, want 2", len(cards))
	}

	resp = getJSON(t, ts, "/api/referrals/ref-404/card")
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBookAppointment(t *testing.T) {
	b, ts := newTestServer(t)
	b.referrals["ref-1"] = &referral.Referral{ID: "ref-1", PatientID: "patient-001", Status: referral.StatusPending}

	resp := postJSON(t, ts, "/api/referrals/ref-1/book", map[string]interface{}{
		"provider_id": "provider-cardio-001",
		"patient_id":  "patient-001",
		"slot":        time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res lookup.BookingResult
	decodeJSON(t, resp, &res)
	if !res.Confirmed || res.BookingID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(b.bookings) != 1 || b.bookings[0].ProviderID != "provider-cardio-001" {
		t.Errorf("bookings = %+v", b.bookings)
	}

	// Missing slot is rejected.
	resp = postJSON(t, ts, "/api/referrals/ref-1/book", map[string]interface{}{
		"provider_id": "provider-cardio-001",
	})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSearchProviders(t *testing.T) {
	b, ts := newTestServer(t)
	b.providers = []referral.Provider{
		{ID: "provider-cardio-001", Name: "Dr. Sarah Chen", Specialty: "Cardiology", NPINumber: "1234567890"},
		{ID: "provider-cardio-002", Name: "Dr. Michael Torres", Specialty: "Cardiology", NPINumber: "1234567891"},
		{ID: "provider-derm-001", Name: "Dr. Sarah Kim", Specialty: "Dermatology", NPINumber: "1234567893"},
	}

	resp := getJSON(t, ts, "/api/providers?npi=1234567890,1234567893")
	if resp.StatusCode != 200 {
		t.Fatalf("npi lookup: expected 200, got %d", resp.StatusCode)
	}
	var byNPI []referral.Provider
	decodeJSON(t, resp, &byNPI)
	if len(byNPI) != 2 {
		t.Errorf("npi lookup returned %d providers, want 2", len(byNPI))
	}

	resp = getJSON(t, ts, "/api/providers?name=sarah&specialty=Cardiology")
	if resp.StatusCode != 200 {
		t.Fatalf("name search: expected 200, got %d", resp.StatusCode)
	}
	var byName []referral.Provider
	decodeJSON(t, resp, &byName)
	if len(byName) != 1 || byName[0].ID != "provider-cardio-001" {
		t.Errorf("name search = %+v", byName)
	}

	// Unknown NPIs return an empty list, not null.
	resp = getJSON(t, ts, "/api/providers?npi=0000000000")
	var empty []referral.Provider
	decodeJSON(t, resp, &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown npi = %+v", empty)
	}

	// No criteria at all is a bad request.
	resp = getJSON(t, ts, "/api/providers")
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListPatientReferrals(t *testing.T) {
	b, ts := newTestServer(t)
	b.referrals["ref-1"] = &referral.Referral{ID: "ref-1", PatientID: "patient-001"}
	b.referrals["ref-2"] = &referral.Referral{ID: "ref-2", PatientID: "patient-002"}

	resp := getJSON(t, ts, "/api/patients/patient-001/referrals")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var refs []*referral.Referral
	decodeJSON(t, resp, &refs)
	if len(refs) != 1 || refs[0].ID != "ref-1" {
		t.Errorf("refs = %+v", refs)
	}
}
