package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/ashureev/callprep/internal/coach"
	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/identity"
	"github.com/ashureev/callprep/internal/store"
	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
)

// Frame types.
const (
	FrameMessage = "message"
	FrameSummary = "summary"
	FrameReset   = "reset"
	FramePing    = "ping"

	FrameSession = "session"
	FrameReply   = "reply"
	FramePong    = "pong"
	FrameError   = "error"
)

// inbound is a client frame.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outbound is a server frame.
type outbound struct {
	Type    string             `json:"type"`
	Session *coach.SessionView `json:"session,omitempty"`
	Result  *coach.TurnResult  `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Handler serves GET /ws/coach.
type Handler struct {
	svc            *coach.Service
	cm             *ConnectionManager
	allowedOrigins []string
	isDev          bool
	readLimit      int64
}

// NewHandler creates a WebSocket chat handler.
func NewHandler(svc *coach.Service, cm *ConnectionManager, allowedOrigins []string, isDev bool, readLimit int64) *Handler {
	return &Handler{
		svc:            svc,
		cm:             cm,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		readLimit:      readLimit,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())
	slog.Info("WebSocket connection request", "owner_id", key.OwnerID, "session_id", key.SessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "owner_id", key.OwnerID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "owner_id", key.OwnerID)
		}
	}()
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	h.cm.Register(key, conn)
	defer h.cm.Unregister(key, conn)

	ctx := r.Context()
	sess, err := h.svc.Session(ctx, key)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "owner_id", key.OwnerID)
		_ = h.writeFrame(ctx, conn, outbound{Type: FrameError, Error: "session_unavailable"})
		return
	}
	view := h.svc.Coach().View(sess)
	if err := h.writeFrame(ctx, conn, outbound{Type: FrameSession, Session: &view}); err != nil {
		return
	}

	h.readLoop(ctx, conn, key)
	slog.Info("Coach connection ended", "owner_id", key.OwnerID, "session_id", key.SessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, key store.SessionKey) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "owner_id", key.OwnerID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "owner_id", key.OwnerID)
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			// Plain text frames are treated as chat messages.
			msg = inbound{Type: FrameMessage, Content: string(data)}
		}

		var out outbound
		switch msg.Type {
		case FramePing:
			out = outbound{Type: FramePong}
		case FrameMessage:
			out = h.turn(ctx, key, func() (*coach.TurnResult, error) {
				sess, reply, err := h.svc.Chat(ctx, key, msg.Content)
				return h.result(sess, reply, err)
			})
		case FrameReset:
			out = h.turn(ctx, key, func() (*coach.TurnResult, error) {
				sess, reply, err := h.svc.Reset(ctx, key)
				return h.result(sess, reply, err)
			})
		case FrameSummary:
			out = h.turn(ctx, key, func() (*coach.TurnResult, error) {
				sess, reply, err := h.svc.Summary(ctx, key)
				return h.result(sess, reply, err)
			})
		default:
			out = outbound{Type: FrameError, Error: "unknown_frame_type"}
		}

		if err := h.writeFrame(ctx, conn, out); err != nil {
			return
		}
	}
}

func (h *Handler) result(sess *domain.Session, reply coach.Reply, err error) (*coach.TurnResult, error) {
	if err != nil {
		return nil, err
	}
	res := h.svc.Coach().Result(sess, reply)
	return &res, nil
}

func (h *Handler) turn(ctx context.Context, key store.SessionKey, run func() (*coach.TurnResult, error)) outbound {
	res, err := run()
	switch {
	case err == nil:
		return outbound{Type: FrameReply, Result: res}
	case errors.Is(err, coach.ErrTurnInProgress):
		return outbound{Type: FrameError, Error: "turn_in_progress"}
	case errors.Is(err, coach.ErrEmptyMessage):
		return outbound{Type: FrameError, Error: "message_required"}
	default:
		if ctx.Err() == nil {
			slog.Error("Coach turn failed", "error", err, "owner_id", key.OwnerID, "session_id", key.SessionID)
		}
		return outbound{Type: FrameError, Error: "internal_error"}
	}
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, v outbound) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal frame", "error", err)
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}
