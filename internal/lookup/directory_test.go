package lookup

import (
	"context"
	"testing"

	"github.com/careline/careline/internal/refdata"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

func TestFindProvidersFiltersAndSorts(t *testing.T) {
	data := refdata.Default()
	ledger := task.NewMemoryLedger()
	dir := NewDirectory(data, ledger, zap.NewNop())

	out, err := dir.FindProviders(context.Background(), DirectoryInput{
		ReferralID: "ref-1",
		Specialty:  "Cardiology",
		PatientID:  "patient-001",
	})
	if err != nil {
		t.Fatalf("find providers: %v", err)
	}
	if len(out.Providers) != 3 {
		t.Fatalf("got %d providers, want 3", len(out.Providers))
	}
	for _, p := range out.Providers {
		if p.Specialty != "Cardiology" {
			t.Errorf("provider %s has specialty %s", p.ID, p.Specialty)
		}
	}
	// 2.5km, then 3.8km, then 4.2km: gaps exceed the tie-break threshold.
	want := []string{"provider-cardio-001", "provider-cardio-003", "provider-cardio-002"}
	for i, id := range want {
		if out.Providers[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, out.Providers[i].ID, id)
		}
	}

	tasks := ledger.List()
	if len(tasks) != 1 || tasks[0].Status != task.StatusCompleted {
		t.Fatalf("expected one completed task, got %+v", tasks)
	}
}

func TestFindProvidersRatingTieBreak(t *testing.T) {
	data := &refdata.Set{Providers: []referral.Provider{
		{ID: "near-low", Specialty: "Cardiology", DistanceKm: 2.0, Rating: 4.1, InNetwork: true, AcceptingNewPatients: true},
		{ID: "near-high", Specialty: "Cardiology", DistanceKm: 2.6, Rating: 4.9, InNetwork: true, AcceptingNewPatients: true},
	}}
	dir := NewDirectory(data, task.NewMemoryLedger(), zap.NewNop())

	out, err := dir.FindProviders(context.Background(), DirectoryInput{ReferralID: "ref-1", Specialty: "Cardiology"})
	if err != nil {
		t.Fatalf("find providers: %v", err)
	}
	// Distances differ by less than a kilometre, so rating wins.
	if out.Providers[0].ID != "near-high" {
		t.Errorf("first provider = %s, want near-high", out.Providers[0].ID)
	}
}

func TestFindProvidersExcludesUnavailable(t *testing.T) {
	data := &refdata.Set{Providers: []referral.Provider{
		{ID: "full", Specialty: "Cardiology", DistanceKm: 1, Rating: 5, InNetwork: true, AcceptingNewPatients: false},
		{ID: "out", Specialty: "Cardiology", DistanceKm: 1, Rating: 5, InNetwork: false, AcceptingNewPatients: true},
		{ID: "open", Specialty: "Cardiology", DistanceKm: 9, Rating: 3, InNetwork: true, AcceptingNewPatients: true},
	}}
	dir := NewDirectory(data, task.NewMemoryLedger(), zap.NewNop())

	out, err := dir.FindProviders(context.Background(), DirectoryInput{ReferralID: "ref-1", Specialty: "Cardiology"})
	if err != nil {
		t.Fatalf("find providers: %v", err)
	}
	if len(out.Providers) != 1 || out.Providers[0].ID != "open" {
		t.Fatalf("got %+v, want only open", out.Providers)
	}
}

func TestFindProvidersCapsShortlist(t *testing.T) {
	var providers []referral.Provider
	for i := 0; i < 8; i++ {
		providers = append(providers, referral.Provider{
			ID: string(rune('a' + i)), Specialty: "Cardiology",
			DistanceKm: float64(i * 2), Rating: 4, InNetwork: true, AcceptingNewPatients: true,
		})
	}
	dir := NewDirectory(&refdata.Set{Providers: providers}, task.NewMemoryLedger(), zap.NewNop())

	out, err := dir.FindProviders(context.Background(), DirectoryInput{ReferralID: "ref-1", Specialty: "Cardiology"})
	if err != nil {
		t.Fatalf("find providers: %v", err)
	}
	if len(out.Providers) != maxDirectoryResults {
		t.Errorf("got %d providers, want %d", len(out.Providers), maxDirectoryResults)
	}
}

func TestFindProvidersUnknownSpecialty(t *testing.T) {
	dir := NewDirectory(refdata.Default(), task.NewMemoryLedger(), zap.NewNop())
	out, err := dir.FindProviders(context.Background(), DirectoryInput{ReferralID: "ref-1", Specialty: "Neurology"})
	if err != nil {
		t.Fatalf("find providers: %v", err)
	}
	if len(out.Providers) != 0 {
		t.Errorf("got %d providers for unknown specialty, want 0", len(out.Providers))
	}
}

func TestProvidersByNPI(t *testing.T) {
	dir := NewDirectory(refdata.Default(), task.NewMemoryLedger(), zap.NewNop())

	got := dir.ProvidersByNPI([]string{"1234567890", "1234567893"})
	if len(got) != 2 {
		t.Fatalf("got %d providers, want 2: %+v", len(got), got)
	}
	if got[0].ID != "provider-cardio-001" || got[1].ID != "provider-derm-001" {
		t.Errorf("unexpected providers %+v", got)
	}

	if got := dir.ProvidersByNPI([]string{"0000000000"}); len(got) != 0 {
		t.Errorf("unknown npi matched %+v", got)
	}
}

func TestSearchByName(t *testing.T) {
	dir := NewDirectory(refdata.Default(), task.NewMemoryLedger(), zap.NewNop())

	out := dir.SearchByName("chen", "")
	if len(out) != 1 || out[0].ID != "provider-cardio-001" {
		t.Fatalf("search chen: got %+v", out)
	}
	if got := dir.SearchByName("dr.", "Dermatology"); len(got) != 1 {
		t.Errorf("search dr. in dermatology: got %d, want 1", len(got))
	}
}

func TestProvidersWithinRadius(t *testing.T) {
	dir := NewDirectory(refdata.Default(), task.NewMemoryLedger(), zap.NewNop())
	got := dir.ProvidersWithinRadius(2.5)
	// 2.5, 1.2, and 2.1km qualify.
	if len(got) != 3 {
		t.Errorf("got %d providers within 2.5km, want 3", len(got))
	}
}
