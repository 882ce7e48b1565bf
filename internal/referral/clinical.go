package referral

import "time"

// Address locates a provider's practice.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// Provider is a specialist directory entry. Read-only reference data as
// far as the orchestration core is concerned.
type Provider struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	NPINumber            string  `json:"npi_number"`
	Specialty            string  `json:"specialty"`
	Practice             string  `json:"practice"`
	Address              Address `json:"address"`
	Phone                string  `json:"phone"`
	Email                string  `json:"email,omitempty"`
	DistanceKm           float64 `json:"distance_km"`
	InNetwork            bool    `json:"in_network"`
	Rating               float64 `json:"rating"`
	AcceptingNewPatients bool    `json:"accepting_new_patients"`
}

// AvailabilitySlot is one open appointment at a provider. Slots are
// generated fresh per request and carry no double-booking protection.
type AvailabilitySlot struct {
	ProviderID      string    `json:"provider_id"`
	Slot            time.Time `json:"slot"`
	DurationMinutes int       `json:"duration_minutes"`
	AppointmentType string    `json:"appointment_type"`
}

// CostEstimate is a derived price range for one provider.
type CostEstimate struct {
	ProviderID   string  `json:"provider_id"`
	EstimateLow  float64 `json:"estimate_low"`
	EstimateHigh float64 `json:"estimate_high"`
	Copay        float64 `json:"copay,omitempty"`
	Deductible   float64 `json:"deductible,omitempty"`
	Coinsurance  float64 `json:"coinsurance,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// Insurance identifies a patient's plan for network matching.
type Insurance struct {
	Provider string `json:"provider"`
	PlanType string `json:"plan_type"`
	MemberID string `json:"member_id"`
}

// ConditionStatus marks whether a condition is still being treated.
type ConditionStatus string

const (
	ConditionActive   ConditionStatus = "active"
	ConditionResolved ConditionStatus = "resolved"
	ConditionInactive ConditionStatus = "inactive"
)

// Severity grades conditions and allergies.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// LabStatus classifies a lab result against its reference range.
type LabStatus string

const (
	LabNormal   LabStatus = "normal"
	LabAbnormal LabStatus = "abnormal"
	LabCritical LabStatus = "critical"
)

// MedicationStatus marks whether a prescription is current.
type MedicationStatus string

const (
	MedicationActive       MedicationStatus = "active"
	MedicationDiscontinued MedicationStatus = "discontinued"
)

// Condition is a diagnosed problem on a patient's chart.
type Condition struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Display   string          `json:"display"`
	OnsetDate string          `json:"onset_date"`
	Status    ConditionStatus `json:"status"`
	Severity  Severity        `json:"severity"`
}

// Medication is one prescription on a patient's chart.
type Medication struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Dosage         string           `json:"dosage"`
	Frequency      string           `json:"frequency"`
	PrescribedDate string           `json:"prescribed_date"`
	Status         MedicationStatus `json:"status"`
}

// Allergy is one known allergen with its reaction.
type Allergy struct {
	ID       string   `json:"id"`
	Allergen string   `json:"allergen"`
	Reaction string   `json:"reaction"`
	Severity Severity `json:"severity"`
}

// LabResult is one lab value with its interpretation.
type LabResult struct {
	ID             string    `json:"id"`
	TestName       string    `json:"test_name"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Status         LabStatus `json:"status"`
	Date           string    `json:"date"`
}

// MedicalRecord aggregates a patient's chart.
type MedicalRecord struct {
	ID          string       `json:"id"`
	PatientID   string       `json:"patient_id"`
	Conditions  []Condition  `json:"conditions"`
	Medications []Medication `json:"medications"`
	Allergies   []Allergy    `json:"allergies"`
	LabResults  []LabResult  `json:"lab_results"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ClinicianBrief is the specialist-facing structured summary of a
// patient's record in the context of one referral. Each synthesis run
// creates a new version; the newest is compared against the previous
// newest by the change-reaction loop.
type ClinicianBrief struct {
	ID                 string    `json:"id"`
	ReferralID         string    `json:"referral_id"`
	PatientID          string    `json:"patient_id"`
	ProblemList        []string  `json:"problem_list"`
	CurrentMedications []string  `json:"current_medications"`
	Allergies          []string  `json:"allergies"`
	KeyLabs            []string  `json:"key_labs"`
	RedFlags           []string  `json:"red_flags"`
	ClinicalSummary    string    `json:"clinical_summary"`
	Recommendations    []string  `json:"recommendations"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// PatientExplainer is the plain-language counterpart of a clinician brief.
type PatientExplainer struct {
	ID           string    `json:"id"`
	ReferralID   string    `json:"referral_id"`
	PatientID    string    `json:"patient_id"`
	Summary      string    `json:"summary"`
	WhatToExpect string    `json:"what_to_expect"`
	WhatToBring  []string  `json:"what_to_bring"`
	Questions    []string  `json:"questions"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// DecisionCard is the aggregated orchestration result for one referral.
// One is created per successful run; the latest by creation time is
// considered authoritative.
type DecisionCard struct {
	ID               string             `json:"id"`
	ReferralID       string             `json:"referral_id"`
	Providers        []Provider         `json:"providers"`
	Availability     []AvailabilitySlot `json:"availability"`
	CostEstimates    []CostEstimate     `json:"cost_estimates"`
	PatientExplainer *PatientExplainer  `json:"patient_explainer,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}
