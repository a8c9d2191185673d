package coach

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceDB atomic.Int64

func newTestService(t *testing.T) (*Service, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(fmt.Sprintf("file:coachtest%d?mode=memory&cache=shared", serviceDB.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewService(repo, New(testPlaybook(t)), nil), repo
}

func TestServiceSessionCreatesWithIntro(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	sess, err := svc.Session(ctx, key)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, svc.Coach().Playbook().Intro, sess.Turns[0].Content)

	again, err := svc.Session(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sess.ConversationID, again.ConversationID)

	n, err := repo.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceChatPersists(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	_, _, err := svc.Chat(ctx, key, "calling Mary Smith in California, refi")
	require.NoError(t, err)
	_, reply, err := svc.Chat(ctx, key, "rate 7.8 pay 3100")
	require.NoError(t, err)
	assert.Equal(t, ModeGuidance, reply.Mode)
	assert.ElementsMatch(t, []string{"current_rate", "current_payment"}, reply.Changed)

	stored, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Mary Smith", stored.Lead.Name)
	require.NotNil(t, stored.Lead.CurrentPayment)
	assert.InDelta(t, 3100, *stored.Lead.CurrentPayment, 1e-9)
	assert.Len(t, stored.Turns, 5)
	assert.Contains(t, stored.Notes, "rate 7.8 pay 3100")
	assert.Len(t, stored.Asked, 10)

	_, summary, err := svc.Summary(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, summary.Content, "Mary Smith")
	assert.Contains(t, summary.Content, "7.8")
	assert.Contains(t, summary.Content, "3100")

	after, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Len(t, after.Turns, 5)
}

func TestServiceChatRejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Chat(context.Background(), store.SessionKey{OwnerID: "o", SessionID: "s"}, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestServiceChatRejectsConcurrentTurn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	release, err := svc.acquire(key)
	require.NoError(t, err)

	_, _, err = svc.Chat(ctx, key, "rate 7.8")
	require.ErrorIs(t, err, ErrTurnInProgress)

	_, _, err = svc.Chat(ctx, store.SessionKey{OwnerID: "o", SessionID: "other"}, "rate 7.8")
	require.NoError(t, err)

	release()
	_, _, err = svc.Chat(ctx, key, "rate 7.8")
	require.NoError(t, err)
}

func TestServiceReset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	first, _, err := svc.Chat(ctx, key, "calling Mary Smith")
	require.NoError(t, err)
	conversation := first.ConversationID

	sess, reply, err := svc.Reset(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ModeReset, reply.Mode)
	assert.NotEqual(t, conversation, sess.ConversationID)

	reloaded, err := svc.Session(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sess.ConversationID, reloaded.ConversationID)
	assert.True(t, reloaded.Lead.IsEmpty())
	assert.Len(t, reloaded.Turns, 1)
}

func TestServicePatchLead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	_, _, err := svc.Chat(ctx, key, "calling Mary Smith in California, rate 7.8")
	require.NoError(t, err)

	sess, err := svc.PatchLead(ctx, key, []byte(`{"current_rate": 6.9, "segment": "premier", "state": null}`))
	require.NoError(t, err)
	require.NotNil(t, sess.Lead.CurrentRate)
	assert.InDelta(t, 6.9, *sess.Lead.CurrentRate, 1e-9)
	assert.Equal(t, "premier", string(sess.Lead.Segment))
	assert.Empty(t, sess.Lead.State)
	assert.Equal(t, "Mary Smith", sess.Lead.Name)

	_, _, err = svc.Chat(ctx, key, "she lives in Texas")
	require.NoError(t, err)
	reloaded, err := svc.Session(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Texas", reloaded.Lead.State)
}

func TestServicePatchLeadRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	for name, patch := range map[string]string{
		"not json":      `{"current_rate":`,
		"unknown field": `{"favourite_colour": "blue"}`,
		"bad segment":   `{"segment": "gold"}`,
		"negative":      `{"current_payment": -10}`,
		"rate too high": `{"our_rate": 250}`,
		"wrong type":    `{"name": 42}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PatchLead(ctx, key, []byte(patch))
			require.ErrorIs(t, err, ErrInvalidPatch)
		})
	}

	sess, err := svc.Session(ctx, key)
	require.NoError(t, err)
	assert.True(t, sess.Lead.IsEmpty())
}

// gatedRepo parks the first CreateSession call until gate is closed.
type gatedRepo struct {
	store.Repository
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedRepo) CreateSession(ctx context.Context, sess *domain.Session) (bool, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.gate
	}
	return g.Repository.CreateSession(ctx, sess)
}

func TestServiceSummaryDoesNotClobberConcurrentFirstChat(t *testing.T) {
	_, repo := newTestService(t)
	gated := &gatedRepo{Repository: repo, entered: make(chan struct{}), gate: make(chan struct{})}
	svc := NewService(gated, New(testPlaybook(t)), nil)
	ctx := context.Background()
	key := store.SessionKey{OwnerID: "o", SessionID: "fresh"}

	type result struct {
		reply Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		_, reply, err := svc.Summary(ctx, key)
		done <- result{reply, err}
	}()
	<-gated.entered

	_, _, err := svc.Chat(ctx, key, "calling Mary Smith, rate 7.8")
	require.NoError(t, err)

	close(gated.gate)
	res := <-done
	require.NoError(t, res.err)
	assert.Contains(t, res.reply.Content, "Mary Smith")

	stored, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Mary Smith", stored.Lead.Name)
	assert.Len(t, stored.Turns, 3)
}

func TestServiceForgetKeepsHeldLock(t *testing.T) {
	svc, _ := newTestService(t)
	key := store.SessionKey{OwnerID: "o", SessionID: "s"}

	release, err := svc.acquire(key)
	require.NoError(t, err)

	svc.Forget(key)
	_, err = svc.acquire(key)
	require.ErrorIs(t, err, ErrTurnInProgress)

	release()
	svc.Forget(key)
	_, ok := svc.locks.Load(key)
	assert.False(t, ok)

	again, err := svc.acquire(key)
	require.NoError(t, err)
	again()
}
