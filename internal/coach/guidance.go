package coach

import (
	"fmt"
	"strings"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/elliotchance/pie/v2"
)

// candidateTopics returns topics in offer order: the current stage, the
// general list, then every other stage.
func candidateTopics(stage Stage, pb *Playbook) []Topic {
	topics := append([]Topic{}, pb.Plan(stage).Topics...)
	topics = append(topics, pb.General...)
	for s := StageLoanBasics; s <= StageReady; s++ {
		if s != stage {
			topics = append(topics, pb.Plan(s).Topics...)
		}
	}
	return topics
}

// NextTopics picks up to MaxQuestions topics that have not been asked and
// whose lead field is still unknown, and marks them asked.
func NextTopics(sess *domain.Session, stage Stage, pb *Playbook) []Topic {
	known := sess.Lead.KnownFields()
	open := pie.Filter(candidateTopics(stage, pb), func(t Topic) bool {
		if sess.Asked.Has(t.ID) {
			return false
		}
		return t.Field == "" || !pie.Contains(known, t.Field)
	})
	if len(open) > pb.MaxQuestions {
		open = open[:pb.MaxQuestions]
	}
	for _, t := range open {
		sess.Asked.Add(t.ID)
	}
	return open
}

// Guidance renders the "what to ask next" reply for the session's current
// state: next questions, a snapshot of known facts and what is still missing.
func Guidance(sess *domain.Session, pb *Playbook) string {
	if sess.Asked == nil {
		sess.Asked = make(domain.TopicSet)
	}
	lead := &sess.Lead
	stage := InferStage(lead)
	topics := NextTopics(sess, stage, pb)

	var b strings.Builder
	fmt.Fprintf(&b, "**Preparing for %s** · stage %d of 5: %s\n\n", lead.CustomerName(), stage, pb.StageName(stage))

	b.WriteString("### Next questions\n")
	if len(topics) == 0 {
		fmt.Fprintf(&b, "1. **%s**\n", pb.FallbackQuestion)
	}
	for i, t := range topics {
		if i < 2 {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, t.Question)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t.Question)
		}
	}

	b.WriteString("\n### Snapshot\n")
	writeFacts(&b, lead, pb)

	b.WriteString("\n### Still missing\n")
	writeChecklist(&b, lead)

	return strings.TrimRight(b.String(), "\n")
}

func writeChecklist(b *strings.Builder, l *domain.Lead) {
	known := l.KnownFields()
	wrote := false
	for _, item := range checklist {
		if item.when != nil && !item.when(l) {
			continue
		}
		missing := pie.Filter(item.fields, func(f string) bool { return !pie.Contains(known, f) })
		if len(missing) == 0 {
			continue
		}
		labels := pie.Map(missing, func(f string) string { return fieldLabels[f] })
		fmt.Fprintf(b, "- [ ] %s: %s\n", item.label, strings.Join(labels, ", "))
		wrote = true
	}
	if !wrote {
		b.WriteString("- All key facts captured. Type **summary** for the call plan.\n")
	}
}
