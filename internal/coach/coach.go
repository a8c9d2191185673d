// Package coach turns the facts gathered about a lead into call preparation
// guidance: what to ask next, a call summary and a full briefing.
package coach

import (
	"strings"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/extract"
)

// Mode identifies which generator produced a reply.
type Mode string

const (
	ModeIntro    Mode = "intro"
	ModeGuidance Mode = "guidance"
	ModeSummary  Mode = "summary"
	ModeBriefing Mode = "briefing"
	ModeReset    Mode = "reset"
)

// Reserved whole-message keywords.
const (
	KeywordSummary  = "summary"
	KeywordBriefing = "briefing"
	KeywordReset    = "reset"
)

// Reply is the coach's answer to one RM message.
type Reply struct {
	Mode    Mode     `json:"mode"`
	Stage   Stage    `json:"stage"`
	Content string   `json:"reply"`
	Changed []string `json:"changed,omitempty"`
}

// Coach applies one RM message to a session. It holds no per-session state.
type Coach struct {
	pb *Playbook
}

// New creates a coach backed by the given playbook.
func New(pb *Playbook) *Coach {
	return &Coach{pb: pb}
}

// Playbook returns the coaching content in use.
func (c *Coach) Playbook() *Playbook {
	return c.pb
}

// Start greets a fresh session with the intro turn. It is a no-op once the
// session has history.
func (c *Coach) Start(sess *domain.Session) {
	if len(sess.Turns) > 0 {
		return
	}
	sess.AddTurn(domain.RoleAssistant, c.pb.Intro)
}

// Respond records the RM's message, updates the lead and appends the reply
// to the history.
func (c *Coach) Respond(sess *domain.Session, text string) Reply {
	text = strings.TrimSpace(text)

	switch strings.ToLower(text) {
	case KeywordReset:
		*sess = *domain.NewSession(sess.OwnerID, sess.SessionID)
		c.Start(sess)
		return Reply{Mode: ModeReset, Stage: InferStage(&sess.Lead), Content: c.pb.Intro}
	case KeywordSummary:
		sess.AddTurn(domain.RoleUser, text)
		return c.reply(sess, ModeSummary, Summary(sess, c.pb), nil)
	case KeywordBriefing:
		sess.AddTurn(domain.RoleUser, text)
		return c.reply(sess, ModeBriefing, Briefing(sess.Notes, c.pb), nil)
	}

	sess.AddTurn(domain.RoleUser, text)
	before := sess.Lead.Clone()
	extract.Apply(&sess.Lead, text)
	sess.AppendNotes(text)
	changed := extract.Changed(&before, &sess.Lead)

	return c.reply(sess, ModeGuidance, Guidance(sess, c.pb), changed)
}

// SummaryOf renders the call plan without touching the history.
func (c *Coach) SummaryOf(sess *domain.Session) Reply {
	return Reply{Mode: ModeSummary, Stage: InferStage(&sess.Lead), Content: Summary(sess, c.pb)}
}

func (c *Coach) reply(sess *domain.Session, mode Mode, content string, changed []string) Reply {
	sess.AddTurn(domain.RoleAssistant, content)
	return Reply{
		Mode:    mode,
		Stage:   InferStage(&sess.Lead),
		Content: content,
		Changed: changed,
	}
}
