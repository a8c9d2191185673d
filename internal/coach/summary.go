package coach

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/elliotchance/pie/v2"
)

// Summary renders the consolidated call plan for a session. It never fails:
// an empty lead still yields a plan addressed to "the customer".
func Summary(sess *domain.Session, pb *Playbook) string {
	lead := &sess.Lead

	var b strings.Builder
	fmt.Fprintf(&b, "## Call summary: %s\n\n", lead.CustomerName())

	b.WriteString("### What we know\n")
	writeFacts(&b, lead, pb)

	b.WriteString("\n### Insights\n")
	insights := Insights(lead, pb)
	if len(insights) == 0 {
		b.WriteString("- Not enough numbers yet for insights.\n")
	}
	for _, line := range insights {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\n### Talking points\n")
	for _, p := range pb.TalkingPoints {
		fmt.Fprintf(&b, "- [ ] %s\n", p)
	}

	b.WriteString("\n### Opportunity angles\n")
	writeBullets(&b, matchHeuristics(sess.Notes, pb.Opportunities, pb.OpportunityFallback))

	b.WriteString("\n### Risk / retention notes\n")
	writeBullets(&b, matchHeuristics(sess.Notes, pb.Risks, pb.RiskFallback))

	return strings.TrimRight(b.String(), "\n")
}

// Insights derives simple arithmetic observations from the known numbers.
func Insights(l *domain.Lead, pb *Playbook) []string {
	var out []string

	if l.CurrentRate != nil && l.OurRate != nil {
		if delta := *l.CurrentRate - *l.OurRate; delta > 0 {
			out = append(out, fmt.Sprintf("Rate gap: they pay %s vs our %s, a saving of **%s**.",
				formatRate(*l.CurrentRate), formatRate(*l.OurRate), formatPoints(delta)))
			if l.RemainingBalance != nil {
				relief := *l.RemainingBalance * delta / 100 / 12
				out = append(out, fmt.Sprintf("Estimated payment relief: about **%s per month** on a %s balance.",
					formatMoney(roundCents(relief)), formatMoney(*l.RemainingBalance)))
			}
		}
	}
	if l.CompetitorRate != nil && l.OurRate != nil && *l.CompetitorRate < *l.OurRate {
		out = append(out, fmt.Sprintf("Competitor undercuts us by %s (%s vs %s); lead with total value and fees, not rate alone.",
			formatPoints(*l.OurRate-*l.CompetitorRate), formatRate(*l.CompetitorRate), formatRate(*l.OurRate)))
	}
	if l.MonthlySurplus != nil && *l.MonthlySurplus > 0 {
		out = append(out, fmt.Sprintf("Monthly surplus of %s is about **%s a year** available for savings or prepayment.",
			formatMoney(*l.MonthlySurplus), formatMoney(*l.MonthlySurplus*12)))
	}
	if l.CurrentRate != nil && *l.CurrentRate < pb.RateFloor {
		out = append(out, fmt.Sprintf("🔴 Current rate is already below the %s floor; focus on cash flow and relationship, not repricing.",
			formatRate(pb.RateFloor)))
	}
	return out
}

// matchHeuristics returns the note of every heuristic with a keyword present
// in notes, or fallback when none match.
func matchHeuristics(notes string, rules []Heuristic, fallback string) []string {
	text := strings.ToLower(notes)
	hits := pie.Map(pie.Filter(rules, func(h Heuristic) bool {
		return pie.Any(h.Keywords, func(k string) bool { return strings.Contains(text, k) })
	}), func(h Heuristic) string { return h.Note })
	if len(hits) == 0 {
		return []string{fallback}
	}
	return hits
}

func writeBullets(b *strings.Builder, lines []string) {
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
