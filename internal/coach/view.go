package coach

import "github.com/ashureev/callprep/internal/domain"

// SessionView is the transport representation of a session.
type SessionView struct {
	ConversationID string          `json:"conversation_id"`
	Stage          Stage           `json:"stage"`
	StageName      string          `json:"stage_name"`
	Lead           domain.Lead     `json:"lead"`
	AskedTopics    domain.TopicSet `json:"asked_topics"`
	Turns          []domain.Turn   `json:"turns"`
}

// TurnResult is the transport representation of one handled message.
type TurnResult struct {
	ConversationID string          `json:"conversation_id"`
	Reply          string          `json:"reply"`
	Mode           Mode            `json:"mode"`
	Stage          Stage           `json:"stage"`
	StageName      string          `json:"stage_name"`
	Changed        []string        `json:"changed,omitempty"`
	Lead           domain.Lead     `json:"lead"`
	AskedTopics    domain.TopicSet `json:"asked_topics"`
}

// View renders a session for transports.
func (c *Coach) View(sess *domain.Session) SessionView {
	stage := InferStage(&sess.Lead)
	turns := sess.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	return SessionView{
		ConversationID: sess.ConversationID,
		Stage:          stage,
		StageName:      c.pb.StageName(stage),
		Lead:           sess.Lead,
		AskedTopics:    nonNil(sess.Asked),
		Turns:          turns,
	}
}

// Result pairs a reply with the session state it produced.
func (c *Coach) Result(sess *domain.Session, r Reply) TurnResult {
	return TurnResult{
		ConversationID: sess.ConversationID,
		Reply:          r.Content,
		Mode:           r.Mode,
		Stage:          r.Stage,
		StageName:      c.pb.StageName(r.Stage),
		Changed:        r.Changed,
		Lead:           sess.Lead,
		AskedTopics:    nonNil(sess.Asked),
	}
}

func nonNil(t domain.TopicSet) domain.TopicSet {
	if t == nil {
		return domain.TopicSet{}
	}
	return t
}
