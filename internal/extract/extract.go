// Package extract pulls lead facts out of relationship-manager notes using
// ordered regular-expression and keyword rules.
//
// Extraction is best-effort: a rule that finds nothing leaves its field
// unset, and a field that is already set is never overwritten.
package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/ashureev/callprep/internal/domain"
)

var namePattern = regexp.MustCompile(
	`(?i:\b(?:calling|call with|meeting with|meeting|speaking to|speaking with|talking to|talking with|with|customer|client))` +
		`[:,]?\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)*)`,
)

var trailingNameWords = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "today": true, "tomorrow": true,
	"january": true, "february": true, "march": true, "april": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
}

// Apply updates the unset fields of lead from one message.
func Apply(lead *domain.Lead, text string) {
	if lead.Name == "" {
		if name := extractName(text); name != "" {
			lead.Name = name
		}
	}
	if lead.State == "" {
		if state, ok := FindState(text); ok {
			lead.State = state
		}
	}

	work := text
	for _, r := range numericRules {
		loc := r.pattern.FindStringSubmatchIndex(work)
		if loc == nil {
			continue
		}
		token := work[loc[2]:loc[3]]
		work = work[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + work[loc[1]:]

		v, ok := ParseAmount(token)
		if !ok {
			continue
		}
		if p := r.target(lead); *p == nil {
			*p = &v
		}
	}

	lower := strings.ToLower(text)
	if lead.Segment == "" {
		if v, ok := firstCategory(segmentRules, lower); ok {
			lead.Segment = domain.Segment(v)
		}
	}
	if lead.Objective == "" {
		if v, ok := firstCategory(objectiveRules, lower); ok {
			lead.Objective = v
		}
	}
	if lead.BigGoal == "" {
		if v, ok := firstCategory(goalRules, lower); ok {
			lead.BigGoal = v
		}
	}
	if !lead.PricingConcern && containsAny(lower, pricingKeywords) {
		lead.PricingConcern = true
	}
}

func extractName(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	words := strings.Fields(m[1])
	for len(words) > 0 {
		n := len(words)
		if n >= 2 && isState(words[n-2]+" "+words[n-1]) {
			words = words[:n-2]
			continue
		}
		if isState(words[n-1]) || trailingNameWords[strings.ToLower(words[n-1])] {
			words = words[:n-1]
			continue
		}
		break
	}
	return strings.Join(words, " ")
}

// Changed returns the names of fields that are set in after but not in before.
func Changed(before, after *domain.Lead) []string {
	prev := before.KnownFields()
	var changed []string
	for _, f := range after.KnownFields() {
		if !slices.Contains(prev, f) {
			changed = append(changed, f)
		}
	}
	return changed
}
