// Package refdata holds the immutable reference tables the lookup
// services are seeded with: the specialist directory, insurance
// networks, procedure prices, and per-patient chart fixtures. The
// data is injected into each service at construction so tests can
// substitute fixtures without cross-test interference. In production
// these tables would be backed by an NPI registry, payer APIs, and an
// EHR integration with the same shapes.
package refdata

import "github.com/careline/careline/internal/referral"

// ConsultationProcedure is the procedure key every new referral is
// priced against.
const ConsultationProcedure = "new_patient_consultation"

// DefaultSpecialty is the pricing fallback for specialties without a
// cost table.
const DefaultSpecialty = "Cardiology"

// Procedure is a base price with its expected billing range.
type Procedure struct {
	Base float64
	Low  float64
	High float64
}

// Network is one insurance plan's negotiated terms and member providers.
type Network struct {
	InNetworkProviders []string
	Copay              float64
	Deductible         float64
	Coinsurance        float64
}

// Includes reports whether a provider participates in the network.
func (n Network) Includes(providerID string) bool {
	for _, id := range n.InNetworkProviders {
		if id == providerID {
			return true
		}
	}
	return false
}

// Chart is the source material for one patient's medical record.
type Chart struct {
	Conditions  []referral.Condition
	Medications []referral.Medication
	Allergies   []referral.Allergy
	LabResults  []referral.LabResult
}

// Set bundles all reference tables.
type Set struct {
	Providers []referral.Provider
	// Networks is keyed by insurer name, then plan type.
	Networks map[string]map[string]Network
	// Costs is keyed by specialty, then procedure.
	Costs map[string]map[string]Procedure
	// Charts is keyed by patient id.
	Charts map[string]Chart
}

// Network resolves an insurance plan, or false if unknown.
func (s *Set) Network(ins referral.Insurance) (Network, bool) {
	plans, ok := s.Networks[ins.Provider]
	if !ok {
		return Network{}, false
	}
	n, ok := plans[ins.PlanType]
	return n, ok
}

// Procedure resolves a specialty's procedure price, falling back to the
// default specialty when the specialty has no cost table.
func (s *Set) Procedure(specialty, procedure string) (Procedure, bool) {
	table, ok := s.Costs[specialty]
	if !ok {
		table, ok = s.Costs[DefaultSpecialty]
		if !ok {
			return Procedure{}, false
		}
	}
	p, ok := table[procedure]
	return p, ok
}
