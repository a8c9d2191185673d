package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser is the relationship manager typing notes.
	RoleUser Role = "user"
	// RoleAssistant is the coach.
	RoleAssistant Role = "assistant"
)

// Turn is a single chat message in the session history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TopicSet records coaching topics already surfaced in a session.
// Topics are only ever added.
type TopicSet map[string]struct{}

// Add marks a topic as asked.
func (t TopicSet) Add(id string) {
	t[id] = struct{}{}
}

// Has reports whether the topic was already asked.
func (t TopicSet) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// Sorted returns the topic ids in lexical order.
func (t TopicSet) Sorted() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarshalJSON encodes the set as a sorted array.
func (t TopicSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Sorted())
}

// UnmarshalJSON decodes the set from an array of ids.
func (t *TopicSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(TopicSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	*t = set
	return nil
}

// Session holds the coaching state of one conversation: the lead being built,
// the ordered turn history and the topics already asked.
type Session struct {
	OwnerID        string    `json:"owner_id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	Lead           Lead      `json:"lead"`
	Turns          []Turn    `json:"turns"`
	Asked          TopicSet  `json:"asked_topics"`
	Notes          string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession creates an empty session for an owner and tab.
func NewSession(ownerID, sessionID string) *Session {
	now := time.Now()
	return &Session{
		OwnerID:        ownerID,
		SessionID:      sessionID,
		ConversationID: uuid.NewString(),
		Asked:          make(TopicSet),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AddTurn appends a message to the history.
func (s *Session) AddTurn(role Role, content string) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content})
	s.Touch()
}

// Touch marks the session as active now.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// RecentTurns returns the last n turns.
func (s *Session) RecentTurns(n int) []Turn {
	if n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// AppendNotes accumulates free text across turns.
func (s *Session) AppendNotes(text string) {
	s.Notes = strings.TrimSpace(s.Notes + "\n" + text)
}
