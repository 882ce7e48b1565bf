package summarizer

import "strings"

// The model is instructed to answer in fixed sections: a line that is
// entirely upper-case and colon-terminated opens a section, and
// everything until the next header is that section's body. The
// expected sections are encoded as data below so the response grammar
// lives in one place; missing sections fall back to defined defaults
// instead of failing the parse.

type sectionKind int

const (
	sectionScalar sectionKind = iota
	sectionList
)

type sectionRule struct {
	key      string
	kind     sectionKind
	fallback string // scalar sections only; list sections default to empty
}

var clinicianGrammar = []sectionRule{
	{key: "PROBLEM_LIST", kind: sectionList},
	{key: "CURRENT_MEDICATIONS", kind: sectionList},
	{key: "ALLERGIES", kind: sectionList},
	{key: "KEY_LABS", kind: sectionList},
	{key: "RED_FLAGS", kind: sectionList},
	{key: "CLINICAL_SUMMARY", kind: sectionScalar, fallback: "Clinical summary not generated."},
	{key: "RECOMMENDATIONS", kind: sectionList},
}

var patientGrammar = []sectionRule{
	{key: "SUMMARY", kind: sectionScalar, fallback: "Summary not generated."},
	{key: "WHAT_TO_EXPECT", kind: sectionScalar, fallback: "Information not available."},
	{key: "WHAT_TO_BRING", kind: sectionList},
	{key: "QUESTIONS", kind: sectionList},
}

// parsedSection holds either a scalar body or a bullet list, per the
// section's declared kind.
type parsedSection struct {
	text  string
	items []string
}

// parseResponse splits a model response into sections and applies the
// grammar's kinds and fallbacks.
func parseResponse(response string, grammar []sectionRule) map[string]parsedSection {
	raw := splitSections(response)

	out := make(map[string]parsedSection, len(grammar))
	for _, rule := range grammar {
		body := raw[rule.key]
		switch rule.kind {
		case sectionList:
			out[rule.key] = parsedSection{items: parseList(body)}
		default:
			if body == "" {
				body = rule.fallback
			}
			out[rule.key] = parsedSection{text: body}
		}
	}
	return out
}

// splitSections breaks a response into header-keyed bodies. A header is
// a trimmed line that terminates with a colon and contains no
// lower-case letters.
func splitSections(response string) map[string]string {
	sections := make(map[string]string)
	var current string
	var content []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(content, "\n"))
		}
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, ":") && trimmed == strings.ToUpper(trimmed) && trimmed != ":" {
			flush()
			current = strings.TrimSuffix(trimmed, ":")
			content = content[:0]
			continue
		}
		if current != "" && trimmed != "" {
			content = append(content, trimmed)
		}
	}
	flush()
	return sections
}

// parseList splits a section body into entries: one per line, trimmed,
// a single leading bullet marker stripped, blanks discarded.
func parseList(content string) []string {
	if content == "" {
		return nil
	}
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"-", "•", "*"} {
			if strings.HasPrefix(line, bullet) {
				line = strings.TrimSpace(strings.TrimPrefix(line, bullet))
				break
			}
		}
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
