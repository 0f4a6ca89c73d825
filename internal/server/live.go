package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pitchcraft/handler"
	"pitchcraft/internal/auth"
	"pitchcraft/internal/conversation"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/usecase"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// Pitches runs cycles driven by a connection's own reconciler.
// *usecase.PitchService satisfies it.
type Pitches interface {
	Validate(text, tone string) (string, domain.Tone, error)
	Complete(ctx context.Context, rec *conversation.Reconciler, c conversation.Cycle, owner *domain.User) (usecase.PitchOutput, error)
	Claim(sessionID string) (release func(), err error)
}

// Sessions loads an owned session. *usecase.GalleryService satisfies it.
type Sessions interface {
	Get(ctx context.Context, owner domain.User, id string) (domain.Session, error)
}

// Feed streams an owner's session list. *live.Store satisfies it.
type Feed interface {
	Subscribe(ctx context.Context, ownerID string, onChange func([]domain.Session)) (cancel func(), err error)
}

type Verifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// inbound is a client message. Type is one of input, submit, edit,
// startEditing, cancelEditing, new or load.
type inbound struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Tone      string `json:"tone,omitempty"`
	TurnID    string `json:"turnId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type sessionSummary struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Tone      domain.Tone `json:"tone"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type snapshotPayload struct {
	conversation.Snapshot
	Generating bool `json:"generating"`
}

// outbound is a server message: snapshot, sessions or error.
type outbound struct {
	Type     string           `json:"type"`
	Snapshot *snapshotPayload `json:"snapshot,omitempty"`
	Sessions []sessionSummary `json:"sessions,omitempty"`
	Error    string           `json:"error,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// Live is the dashboard's websocket channel. Each connection drives its own
// reconciler; cycles run off the read loop so new and load stay responsive.
type Live struct {
	pitches  Pitches
	sessions Sessions
	feed     Feed
	verifier Verifier
	upgrader websocket.Upgrader

	newReconciler func() *conversation.Reconciler

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewLive(p Pitches, s Sessions, f Feed, v Verifier) (*Live, error) {
	if p == nil || s == nil || f == nil || v == nil {
		return nil, errors.New("server: live channel dependencies must not be nil")
	}
	return &Live{
		pitches:  p,
		sessions: s,
		feed:     f,
		verifier: v,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		newReconciler: func() *conversation.Reconciler { return conversation.New() },
		conns:         make(map[*websocket.Conn]struct{}),
	}, nil
}

func (l *Live) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := l.verifier.Verify(r.Context(), wsToken(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		slog.ErrorContext(r.Context(), "live: verify token", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "live: websocket upgrade", "err", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)
	l.track(ws, true)
	defer func() {
		l.track(ws, false)
		_ = ws.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &liveConn{
		ws:       ws,
		user:     user,
		rec:      l.newReconciler(),
		live:     l,
		cycleCtx: context.WithoutCancel(ctx),
	}
	defer c.cycles.Wait()

	stop, err := l.feed.Subscribe(ctx, user.ID, func(sessions []domain.Session) {
		c.send(outbound{Type: "sessions", Sessions: summaries(sessions)})
	})
	if err != nil {
		slog.WarnContext(ctx, "live: subscribe", "owner_id", user.ID, "err", err)
		c.sendError(&usecase.Error{Code: usecase.ErrorStore, Reason: "subscribe_error", Err: err})
	} else {
		defer stop()
	}
	c.sendSnapshot()

	for {
		var msg inbound
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "live: websocket read", "owner_id", user.ID, "err", err)
			}
			return
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_message", Err: err})
			continue
		}
		c.handle(ctx, msg)
	}
}

// Close drops every open connection.
func (l *Live) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ws := range l.conns {
		_ = ws.Close()
	}
}

func (l *Live) track(ws *websocket.Conn, open bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if open {
		l.conns[ws] = struct{}{}
		return
	}
	delete(l.conns, ws)
}

// liveConn is one dashboard connection.
type liveConn struct {
	ws   *websocket.Conn
	user domain.User
	rec  *conversation.Reconciler
	live *Live

	// cycleCtx outlives the connection: a started generation still completes
	// and persists.
	cycleCtx context.Context
	cycles   sync.WaitGroup

	writeMu sync.Mutex
}

func (c *liveConn) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case "input":
		c.rec.SetInput(msg.Text)
	case "submit":
		text, tone, err := c.live.pitches.Validate(msg.Text, msg.Tone)
		if err != nil {
			c.sendError(err)
			return
		}
		release, err := c.live.pitches.Claim(c.rec.Snapshot().SessionID)
		if err != nil {
			c.sendError(err)
			return
		}
		cycle, err := c.rec.Submit(text, tone)
		if err != nil {
			release()
			c.sendError(usecase.ReconcilerError(err))
			return
		}
		c.sendSnapshot()
		c.start(cycle, release)
	case "edit":
		text, tone, err := c.live.pitches.Validate(msg.Text, msg.Tone)
		if err != nil {
			c.sendError(err)
			return
		}
		release, err := c.live.pitches.Claim(c.rec.Snapshot().SessionID)
		if err != nil {
			c.sendError(err)
			return
		}
		cycle, err := c.rec.Edit(msg.TurnID, text, tone)
		if err != nil {
			release()
			c.sendError(usecase.ReconcilerError(err))
			return
		}
		c.sendSnapshot()
		c.start(cycle, release)
	case "startEditing":
		if err := c.rec.StartEditing(msg.TurnID); err != nil {
			c.sendError(usecase.ReconcilerError(err))
			return
		}
		c.sendSnapshot()
	case "cancelEditing":
		c.rec.CancelEditing()
		c.sendSnapshot()
	case "new":
		c.rec.NewSession()
		c.sendSnapshot()
	case "load":
		sess, err := c.live.sessions.Get(ctx, c.user, msg.SessionID)
		if err != nil {
			c.sendError(err)
			return
		}
		c.rec.LoadSession(sess)
		c.sendSnapshot()
	default:
		c.sendError(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_message"})
	}
}

// start runs cycle off the read loop and calls release once it settled.
func (c *liveConn) start(cycle conversation.Cycle, release func()) {
	c.cycles.Add(1)
	go func() {
		defer c.cycles.Done()
		defer release()
		owner := c.user
		if _, err := c.live.pitches.Complete(c.cycleCtx, c.rec, cycle, &owner); err != nil {
			c.sendError(err)
		}
		c.sendSnapshot()
	}()
}

func (c *liveConn) sendSnapshot() {
	snap := c.rec.Snapshot()
	c.send(outbound{Type: "snapshot", Snapshot: &snapshotPayload{
		Snapshot:   snap,
		Generating: snap.State != conversation.Idle,
	}})
}

func (c *liveConn) sendError(err error) {
	code := usecase.ErrorInternal
	reason := "unexpected_error"
	var ue *usecase.Error
	if errors.As(err, &ue) {
		code, reason = ue.Code, ue.Reason
	}
	c.send(outbound{Type: "error", Error: string(code), Reason: reason})
}

// send is safe for concurrent use. Writes after the peer left are dropped.
func (c *liveConn) send(msg outbound) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		slog.Debug("live: websocket write", "owner_id", c.user.ID, "err", err)
	}
}

func summaries(sessions []domain.Session) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{ID: s.ID, Title: s.Title(), Tone: s.Tone, UpdatedAt: s.UpdatedAt})
	}
	return out
}

// wsToken reads the access token from the Authorization header, the session
// cookie or the token query parameter, in that order.
func wsToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(handler.TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
