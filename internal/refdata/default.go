package refdata

import "github.com/careline/careline/internal/referral"

// Default returns the built-in reference dataset: a small San Francisco
// specialist directory, three payers, consultation pricing for three
// specialties, and two seeded patient charts.
func Default() *Set {
	return &Set{
		Providers: defaultProviders(),
		Networks:  defaultNetworks(),
		Costs:     defaultCosts(),
		Charts:    defaultCharts(),
	}
}

func defaultProviders() []referral.Provider {
	return []referral.Provider{
		{
			ID: "provider-cardio-001", Name: "Dr. Sarah Chen", NPINumber: "1234567890",
			Specialty: "Cardiology", Practice: "Heart & Vascular Institute",
			Address: referral.Address{Street: "123 Medical Drive", City: "San Francisco", State: "CA", ZipCode: "94102"},
			Phone:   "(555) 123-4567", Email: "schen@heartinstitute.com",
			DistanceKm: 2.5, InNetwork: true, Rating: 4.8, AcceptingNewPatients: true,
		},
		{
			ID: "provider-cardio-002", Name: "Dr. Michael Rodriguez", NPINumber: "1234567891",
			Specialty: "Cardiology", Practice: "Bay Area Cardiology",
			Address: referral.Address{Street: "456 Health Plaza", City: "San Francisco", State: "CA", ZipCode: "94105"},
			Phone:   "(555) 987-6543", Email: "mrodriguez@bayareacardio.com",
			DistanceKm: 4.2, InNetwork: true, Rating: 4.7, AcceptingNewPatients: true,
		},
		{
			ID: "provider-cardio-003", Name: "Dr. Jennifer Kim", NPINumber: "1234567892",
			Specialty: "Cardiology", Practice: "UCSF Cardiology",
			Address: referral.Address{Street: "789 Parnassus Ave", City: "San Francisco", State: "CA", ZipCode: "94143"},
			Phone:   "(555) 456-7890", Email: "jkim@ucsf.edu",
			DistanceKm: 3.8, InNetwork: true, Rating: 4.9, AcceptingNewPatients: true,
		},
		{
			ID: "provider-derm-001", Name: "Dr. Alex Thompson", NPINumber: "1234567893",
			Specialty: "Dermatology", Practice: "SF Dermatology Center",
			Address: referral.Address{Street: "321 Market Street", City: "San Francisco", State: "CA", ZipCode: "94102"},
			Phone:   "(555) 234-5678", Email: "athompson@sfdermatology.com",
			DistanceKm: 1.2, InNetwork: true, Rating: 4.6, AcceptingNewPatients: true,
		},
		{
			ID: "provider-ortho-001", Name: "Dr. Lisa Park", NPINumber: "1234567894",
			Specialty: "Orthopedics", Practice: "Bay Area Orthopedics",
			Address: referral.Address{Street: "654 Mission Street", City: "San Francisco", State: "CA", ZipCode: "94105"},
			Phone:   "(555) 345-6789", Email: "lpark@bayortho.com",
			DistanceKm: 2.1, InNetwork: true, Rating: 4.7, AcceptingNewPatients: true,
		},
	}
}

func defaultNetworks() map[string]map[string]Network {
	return map[string]map[string]Network{
		"Blue Cross Blue Shield": {
			"PPO": {
				InNetworkProviders: []string{"provider-cardio-001", "provider-cardio-002", "provider-derm-001"},
				Copay:              30, Coinsurance: 0.2, Deductible: 1500,
			},
			"HMO": {
				InNetworkProviders: []string{"provider-cardio-001", "provider-ortho-001"},
				Copay:              15, Coinsurance: 0.1, Deductible: 500,
			},
		},
		"Kaiser Permanente": {
			"HMO": {
				InNetworkProviders: []string{"provider-cardio-002", "provider-derm-001"},
				Copay:              20, Coinsurance: 0.15, Deductible: 750,
			},
		},
		"Aetna": {
			"PPO": {
				InNetworkProviders: []string{"provider-cardio-001", "provider-cardio-003", "provider-ortho-001"},
				Copay:              35, Coinsurance: 0.25, Deductible: 2000,
			},
		},
	}
}

func defaultCosts() map[string]map[string]Procedure {
	return map[string]map[string]Procedure{
		"Cardiology": {
			"new_patient_consultation": {Base: 400, Low: 350, High: 500},
			"follow_up":                {Base: 250, Low: 200, High: 300},
			"echocardiogram":           {Base: 800, Low: 700, High: 1000},
			"stress_test":              {Base: 1200, Low: 1000, High: 1500},
			"ekg":                      {Base: 150, Low: 100, High: 200},
		},
		"Dermatology": {
			"new_patient_consultation": {Base: 300, Low: 250, High: 400},
			"follow_up":                {Base: 200, Low: 150, High: 250},
			"biopsy":                   {Base: 500, Low: 400, High: 700},
			"mole_removal":             {Base: 350, Low: 300, High: 450},
		},
		"Orthopedics": {
			"new_patient_consultation": {Base: 350, Low: 300, High: 450},
			"follow_up":                {Base: 225, Low: 175, High: 275},
			"xray":                     {Base: 200, Low: 150, High: 250},
			"mri":                      {Base: 2500, Low: 2000, High: 3000},
			"injection":                {Base: 400, Low: 300, High: 500},
		},
	}
}

func defaultCharts() map[string]Chart {
	return map[string]Chart{
		"patient-001": {
			Conditions: []referral.Condition{
				{ID: "cond-001", Code: "I25.9", Display: "Chronic ischemic heart disease, unspecified", OnsetDate: "2023-06-15", Status: referral.ConditionActive, Severity: referral.SeverityModerate},
				{ID: "cond-002", Code: "I10", Display: "Essential hypertension", OnsetDate: "2022-03-10", Status: referral.ConditionActive, Severity: referral.SeverityMild},
				{ID: "cond-003", Code: "E78.5", Display: "Hyperlipidemia, unspecified", OnsetDate: "2022-03-10", Status: referral.ConditionActive, Severity: referral.SeverityMild},
			},
			Medications: []referral.Medication{
				{ID: "med-001", Name: "Metoprolol", Dosage: "50mg", Frequency: "twice daily", PrescribedDate: "2023-06-15", Status: referral.MedicationActive},
				{ID: "med-002", Name: "Lisinopril", Dosage: "10mg", Frequency: "once daily", PrescribedDate: "2022-03-10", Status: referral.MedicationActive},
				{ID: "med-003", Name: "Atorvastatin", Dosage: "20mg", Frequency: "once daily at bedtime", PrescribedDate: "2022-03-10", Status: referral.MedicationActive},
				{ID: "med-004", Name: "Aspirin", Dosage: "81mg", Frequency: "once daily", PrescribedDate: "2023-06-15", Status: referral.MedicationActive},
			},
			Allergies: []referral.Allergy{
				{ID: "allergy-001", Allergen: "Penicillin", Reaction: "Skin rash, hives", Severity: referral.SeverityModerate},
				{ID: "allergy-002", Allergen: "Shellfish", Reaction: "Anaphylaxis", Severity: referral.SeveritySevere},
			},
			LabResults: []referral.LabResult{
				{ID: "lab-001", TestName: "BNP", Value: "450", Unit: "pg/mL", ReferenceRange: "<100", Status: referral.LabAbnormal, Date: "2024-01-10"},
				{ID: "lab-002", TestName: "Troponin I", Value: "<0.01", Unit: "ng/mL", ReferenceRange: "<0.04", Status: referral.LabNormal, Date: "2024-01-10"},
				{ID: "lab-003", TestName: "Creatinine", Value: "1.2", Unit: "mg/dL", ReferenceRange: "0.7-1.3", Status: referral.LabNormal, Date: "2024-01-10"},
				{ID: "lab-004", TestName: "LDL Cholesterol", Value: "95", Unit: "mg/dL", ReferenceRange: "<100", Status: referral.LabNormal, Date: "2024-01-05"},
			},
		},
		"patient-002": {
			Conditions: []referral.Condition{
				{ID: "cond-004", Code: "I48.91", Display: "Atrial fibrillation, unspecified", OnsetDate: "2024-01-20", Status: referral.ConditionActive, Severity: referral.SeverityModerate},
				{ID: "cond-005", Code: "I10", Display: "Essential hypertension", OnsetDate: "2020-05-15", Status: referral.ConditionActive, Severity: referral.SeverityModerate},
			},
			Medications: []referral.Medication{
				{ID: "med-005", Name: "Amlodipine", Dosage: "5mg", Frequency: "once daily", PrescribedDate: "2020-05-15", Status: referral.MedicationActive},
				{ID: "med-006", Name: "Hydrochlorothiazide", Dosage: "25mg", Frequency: "once daily", PrescribedDate: "2020-05-15", Status: referral.MedicationActive},
			},
			Allergies: []referral.Allergy{
				{ID: "allergy-003", Allergen: "No known drug allergies", Reaction: "None", Severity: referral.SeverityMild},
			},
			LabResults: []referral.LabResult{
				{ID: "lab-005", TestName: "TSH", Value: "2.1", Unit: "mIU/L", ReferenceRange: "0.5-4.5", Status: referral.LabNormal, Date: "2024-01-18"},
				{ID: "lab-006", TestName: "Sodium", Value: "140", Unit: "mmol/L", ReferenceRange: "136-145", Status: referral.LabNormal, Date: "2024-01-18"},
			},
		},
	}
}
