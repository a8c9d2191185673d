//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/callprep/internal/coach"
	"github.com/ashureev/callprep/internal/identity"
	"github.com/ashureev/callprep/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apiDB atomic.Int64

type testAPI struct {
	t      *testing.T
	router http.Handler
	svc    *coach.Service
	cookie *http.Cookie
}

func newTestAPI(t *testing.T, limit int) *testAPI {
	t.Helper()
	repo, err := store.NewSQLite(fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", apiDB.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pb, err := coach.DefaultPlaybook()
	require.NoError(t, err)
	svc := coach.NewService(repo, coach.New(pb), nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewHealthHandler(repo).RegisterRoutes(r)
	NewCoachHandler(svc, NewRateLimiter(ctx, limit, time.Minute), 1024).RegisterRoutes(r)

	return &testAPI{t: t, router: r, svc: svc}
}

func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	if a.cookie != nil {
		r.AddCookie(a.cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.AnonCookieName {
			a.cookie = c
		}
	}
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bar", decode[map[string]string](t, w)["foo"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "turn_in_progress")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "turn_in_progress", decode[map[string]string](t, w)["error"])
}

func TestGetSessionStartsWithIntro(t *testing.T) {
	api := newTestAPI(t, 100)

	w := api.do(http.MethodGet, "/api/coach/session", "")
	require.Equal(t, http.StatusOK, w.Code)

	view := decode[coach.SessionView](t, w)
	assert.NotEmpty(t, view.ConversationID)
	assert.Equal(t, coach.StageLoanBasics, view.Stage)
	assert.Equal(t, "Loan basics", view.StageName)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, "assistant", string(view.Turns[0].Role))
	assert.NotNil(t, api.cookie)
}

func TestChatFlowAndSummary(t *testing.T) {
	api := newTestAPI(t, 100)

	w := api.do(http.MethodPost, "/api/coach/chat", `{"message": "calling Mary Smith in California, refi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[coach.TurnResult](t, w)
	assert.Equal(t, coach.ModeGuidance, res.Mode)
	assert.Equal(t, "Mary Smith", res.Lead.Name)
	assert.Contains(t, res.Reply, "### Next questions")
	assert.Len(t, res.AskedTopics, 5)

	w = api.do(http.MethodPost, "/api/coach/chat", `{"message": "rate 7.8 pay 3100"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/coach/chat", `{"message": "summary"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[coach.TurnResult](t, w)
	assert.Equal(t, coach.ModeSummary, res.Mode)
	assert.Contains(t, res.Reply, "Mary Smith")
	assert.Contains(t, res.Reply, "7.8")
	assert.Contains(t, res.Reply, "3100")

	w = api.do(http.MethodGet, "/api/coach/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[coach.TurnResult](t, w).Reply, "## Call summary: Mary Smith")
}

func TestSessionsAreIsolatedByHeader(t *testing.T) {
	api := newTestAPI(t, 100)

	w := api.do(http.MethodPost, "/api/coach/chat", `{"message": "calling Mary Smith"}`, identity.SessionHeaderName, "tab-a")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/coach/session", "", identity.SessionHeaderName, "tab-b")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[coach.SessionView](t, w).Lead.Name)

	w = api.do(http.MethodGet, "/api/coach/session", "", identity.SessionHeaderName, "tab-a")
	assert.Equal(t, "Mary Smith", decode[coach.SessionView](t, w).Lead.Name)
}

func TestChatRejectsBadInput(t *testing.T) {
	api := newTestAPI(t, 100)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"message":`, http.StatusBadRequest},
		{"missing message", `{}`, http.StatusBadRequest},
		{"blank message", `{"message": "   "}`, http.StatusBadRequest},
		{"too large", `{"message": "` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/coach/chat", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestReset(t *testing.T) {
	api := newTestAPI(t, 100)

	w := api.do(http.MethodPost, "/api/coach/chat", `{"message": "calling Mary Smith"}`)
	first := decode[coach.TurnResult](t, w).ConversationID

	w = api.do(http.MethodPost, "/api/coach/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[coach.TurnResult](t, w)
	assert.Equal(t, coach.ModeReset, res.Mode)
	assert.NotEqual(t, first, res.ConversationID)
	assert.Empty(t, res.Lead.Name)
}

func TestPatchLead(t *testing.T) {
	api := newTestAPI(t, 100)

	w := api.do(http.MethodPatch, "/api/coach/lead", `{"name": "Raj Patel", "segment": "hni", "current_rate": 7.2}`,
		"Content-Type", "application/merge-patch+json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[coach.SessionView](t, w)
	assert.Equal(t, "Raj Patel", view.Lead.Name)
	require.NotNil(t, view.Lead.CurrentRate)
	assert.InDelta(t, 7.2, *view.Lead.CurrentRate, 1e-9)

	w = api.do(http.MethodPatch, "/api/coach/lead", `{"segment": "platinum"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "invalid lead patch")
}

func TestFailMapsServiceErrors(t *testing.T) {
	h := NewCoachHandler(nil, nil, 0)
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrapped: %w", coach.ErrTurnInProgress), http.StatusConflict},
		{coach.ErrEmptyMessage, http.StatusBadRequest},
		{fmt.Errorf("%w: bad segment", coach.ErrInvalidPatch), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.fail(w, httptest.NewRequest(http.MethodPost, "/api/coach/chat", nil), tt.err)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, 2)

	for range 2 {
		w := api.do(http.MethodPost, "/api/coach/chat", `{"message": "rate 7.8"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := api.do(http.MethodPost, "/api/coach/chat", `{"message": "pay 3100"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = api.do(http.MethodGet, "/api/coach/session", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 50*time.Millisecond)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("a"))

	time.Sleep(60 * time.Millisecond)
	rl.evict()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t, 100)
	api.do(http.MethodGet, "/api/coach/session", "")

	w := api.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.InDelta(t, 1, body["sessions"], 0)
}
