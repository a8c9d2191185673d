package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/callprep/internal/coach"
	"github.com/ashureev/callprep/internal/identity"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// ChatRequest is the body of POST /api/coach/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

// CoachHandler exposes the coaching service over HTTP.
type CoachHandler struct {
	svc      *coach.Service
	limiter  *RateLimiter
	validate *validator.Validate
	maxBody  int64
}

// NewCoachHandler creates a coach handler. limiter may be nil to disable
// throttling.
func NewCoachHandler(svc *coach.Service, limiter *RateLimiter, maxBody int64) *CoachHandler {
	return &CoachHandler{
		svc:      svc,
		limiter:  limiter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		maxBody:  maxBody,
	}
}

// RegisterRoutes mounts the coach endpoints.
func (h *CoachHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/coach", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Get("/summary", h.GetSummary)
		r.Group(func(r chi.Router) {
			r.Use(h.throttle)
			r.Post("/chat", h.Chat)
			r.Post("/reset", h.Reset)
			r.Patch("/lead", h.PatchLead)
		})
	})
}

func (h *CoachHandler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := identity.OwnerIDFromContext(r.Context())
		if h.limiter != nil && !h.limiter.Allow(owner) {
			slog.Warn("Rate limit exceeded", "owner_id", owner, "path", r.URL.Path)
			Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSession handles GET /api/coach/session.
func (h *CoachHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Session(r.Context(), identity.KeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.svc.Coach().View(sess))
}

// Chat handles POST /api/coach/chat.
func (h *CoachHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.maxBody)
	if err != nil {
		h.badBody(w, err)
		return
	}

	var req ChatRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		Error(w, http.StatusBadRequest, "message is required and must be at most 8000 characters")
		return
	}

	key := identity.KeyFromContext(r.Context())
	slog.Info("Coach chat request",
		"owner_id", key.OwnerID,
		"session_id", key.SessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	sess, reply, err := h.svc.Chat(r.Context(), key, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.svc.Coach().Result(sess, reply))
}

// Reset handles POST /api/coach/reset.
func (h *CoachHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, reply, err := h.svc.Reset(r.Context(), identity.KeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.svc.Coach().Result(sess, reply))
}

// GetSummary handles GET /api/coach/summary.
func (h *CoachHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, reply, err := h.svc.Summary(r.Context(), identity.KeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.svc.Coach().Result(sess, reply))
}

// PatchLead handles PATCH /api/coach/lead with an RFC 7396 merge patch.
func (h *CoachHandler) PatchLead(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.maxBody)
	if err != nil {
		h.badBody(w, err)
		return
	}

	sess, err := h.svc.PatchLead(r.Context(), identity.KeyFromContext(r.Context()), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.svc.Coach().View(sess))
}

func (h *CoachHandler) badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	Error(w, http.StatusBadRequest, "invalid request body")
}

// fail maps service errors to HTTP responses.
func (h *CoachHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coach.ErrTurnInProgress):
		Error(w, http.StatusConflict, "turn_in_progress")
	case errors.Is(err, coach.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, coach.ErrInvalidPatch):
		Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("Coach request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", chiMiddleware.GetReqID(r.Context()))
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
