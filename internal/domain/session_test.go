package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicSetJSONRoundTripIsSorted(t *testing.T) {
	set := make(TopicSet)
	set.Add("savings")
	set.Add("current_rate")
	set.Add("goal")

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["current_rate","goal","savings"]`, string(data))

	var decoded TopicSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Has("goal"))
	assert.Len(t, decoded, 3)
}

func TestNewSessionStartsEmpty(t *testing.T) {
	s := NewSession("anon_1", "tab-1")

	assert.NotEmpty(t, s.ConversationID)
	assert.True(t, s.Lead.IsEmpty())
	assert.Empty(t, s.Turns)
	assert.NotNil(t, s.Asked)
}

func TestRecentTurns(t *testing.T) {
	s := NewSession("anon_1", "tab-1")
	s.AddTurn(RoleUser, "one")
	s.AddTurn(RoleAssistant, "two")
	s.AddTurn(RoleUser, "three")

	recent := s.RecentTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Len(t, s.RecentTurns(10), 3)
}

func TestLeadCloneIsDeep(t *testing.T) {
	rate := 7.5
	l := Lead{Name: "Ana", CurrentRate: &rate}

	c := l.Clone()
	*c.CurrentRate = 9

	assert.InDelta(t, 7.5, *l.CurrentRate, 1e-9)
	assert.Equal(t, []string{"name", "current_rate"}, l.KnownFields())
	assert.Equal(t, "the customer", (&Lead{}).CustomerName())
}

func TestAppendNotes(t *testing.T) {
	s := NewSession("o", "s")
	s.AppendNotes("first")
	s.AppendNotes("second")
	assert.Equal(t, "first\nsecond", s.Notes)
}
