package coach

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Briefing renders the full call structure from the RM's accumulated notes.
// Short notes get a follow-up prompt asking for more context instead.
func Briefing(notes string, pb *Playbook) string {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) < pb.MinBriefingChars {
		return pb.FollowupPrompt
	}

	var b strings.Builder
	b.WriteString("**Your input (condensed)**\n\n")
	b.WriteString(notes)
	b.WriteString("\n\n**Call objective (suggested)**\n\n")
	fmt.Fprintf(&b, "- %s\n", pb.BriefingObjective)

	b.WriteString("\n**Suggested call structure**\n\n")
	for i, step := range pb.CallStructure {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step.Title)
		for _, p := range step.Points {
			fmt.Fprintf(&b, "   - %s\n", p)
		}
	}

	b.WriteString("\n**Opportunity angles for this call**\n\n")
	writeBullets(&b, matchHeuristics(notes, pb.Opportunities, pb.OpportunityFallback))

	b.WriteString("\n**Risk / retention notes**\n\n")
	writeBullets(&b, matchHeuristics(notes, pb.Risks, pb.RiskFallback))

	b.WriteString("\n**Editable post-call note (draft)**\n\n")
	b.WriteString(`"` + pb.PostCallNote + `"`)
	return b.String()
}
