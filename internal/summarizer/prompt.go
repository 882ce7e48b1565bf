package summarizer

import (
	"fmt"
	"strings"

	"github.com/careline/careline/internal/referral"
)

// buildClinicianPrompt asks for a specialist-facing brief in the
// clinician section grammar.
func buildClinicianPrompt(ref *referral.Referral, rec *referral.MedicalRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a medical AI assistant creating a structured clinical brief for a %s specialist.\n\n", ref.Specialty)
	fmt.Fprintf(&b, "REFERRAL INFORMATION:\n")
	fmt.Fprintf(&b, "- Specialty: %s\n", ref.Specialty)
	fmt.Fprintf(&b, "- Reason: %s\n", ref.Reason)
	fmt.Fprintf(&b, "- Urgency: %s\n", ref.Urgency)
	notes := ref.Notes
	if notes == "" {
		notes = "None"
	}
	fmt.Fprintf(&b, "- Additional Notes: %s\n\n", notes)

	b.WriteString("PATIENT MEDICAL RECORD:\n")
	b.WriteString("Active Conditions:\n")
	for _, c := range rec.Conditions {
		if c.Status == referral.ConditionActive {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Display, c.Code)
		}
	}
	b.WriteString("\nCurrent Medications:\n")
	for _, m := range rec.Medications {
		if m.Status == referral.MedicationActive {
			fmt.Fprintf(&b, "- %s %s %s\n", m.Name, m.Dosage, m.Frequency)
		}
	}
	b.WriteString("\nAllergies:\n")
	for _, a := range rec.Allergies {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", a.Allergen, a.Reaction, a.Severity)
	}
	b.WriteString("\nRecent Lab Results:\n")
	for _, l := range rec.LabResults {
		fmt.Fprintf(&b, "- %s: %s %s (%s) [%s]\n", l.TestName, l.Value, l.Unit, l.Status, l.Date)
	}

	b.WriteString(`
Please provide a structured clinical brief in the following format:

PROBLEM_LIST:
[List 3-5 key active problems relevant to this referral]

CURRENT_MEDICATIONS:
[List all active medications with dosing]

ALLERGIES:
[List all allergies with severity]

KEY_LABS:
[List relevant recent lab results with values and status]

RED_FLAGS:
[Identify any urgent concerns or safety issues]

CLINICAL_SUMMARY:
[Provide a 2-3 sentence summary of the patient's current clinical status and reason for referral]

RECOMMENDATIONS:
[Suggest 2-3 clinical actions or considerations for the specialist]

Format your response exactly as shown above with clear section headers.
`)
	return b.String()
}

// buildPatientPrompt asks for a plain-language explainer in the patient
// section grammar.
func buildPatientPrompt(ref *referral.Referral, rec *referral.MedicalRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a medical AI assistant creating a patient-friendly explanation for a %s referral.\n\n", ref.Specialty)
	fmt.Fprintf(&b, "REFERRAL INFORMATION:\n")
	fmt.Fprintf(&b, "- You're being referred to: %s\n", ref.Specialty)
	fmt.Fprintf(&b, "- Reason: %s\n", ref.Reason)
	fmt.Fprintf(&b, "- Urgency: %s\n\n", ref.Urgency)

	b.WriteString("Write at a 6th-grade reading level. Be reassuring but honest. Avoid medical jargon.\n")
	b.WriteString(`
Please provide a patient explanation in the following format:

SUMMARY:
[2-3 sentences explaining why they're being referred in simple terms]

WHAT_TO_EXPECT:
[Describe what typically happens during this type of specialist visit]

WHAT_TO_BRING:
[List 4-5 items they should bring to the appointment]

QUESTIONS:
[Suggest 3-4 good questions they can ask the specialist]

Format your response exactly as shown above with clear section headers.
`)
	return b.String()
}
