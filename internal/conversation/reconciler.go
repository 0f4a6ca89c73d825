// Package conversation holds the in-memory state machine for the active pitch
// conversation. It performs no I/O: callers run the generation a Cycle asks
// for, report the outcome through Succeed or Fail, then Settle once the
// resulting store write finished.
package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchcraft/internal/domain"
)

type State int

const (
	Idle State = iota
	Generating
	// Persisting follows a committed answer until the caller settles the
	// store write. New cycles are refused until then.
	Persisting
)

func (s State) String() string {
	switch s {
	case Generating:
		return "generating"
	case Persisting:
		return "persisting"
	default:
		return "idle"
	}
}

// PromptKind tells the caller which prompt to build for a cycle.
type PromptKind int

const (
	PromptFullPitch PromptKind = iota
	PromptFollowUp
)

var (
	ErrBusy         = errors.New("conversation: generation already in flight")
	ErrEmptyInput   = errors.New("conversation: text must not be empty")
	ErrTurnNotFound = errors.New("conversation: turn not found")
	ErrNotUserTurn  = errors.New("conversation: only user turns can be edited")
)

// Cycle describes one requested generation. Only the Reconciler that issued
// it accepts its result, and only while the cycle is still current.
type Cycle struct {
	epoch uint64
	seq   uint64

	SessionID string
	Request   string
	Tone      domain.Tone
	Kind      PromptKind
	// History holds the turns that precede the request turn.
	History []domain.Turn
	Replay  bool
}

// Persist is the store write scheduled by a completed cycle. Version is the
// stored version the turns build on; it is meaningless when Create is set.
type Persist struct {
	Create    bool
	SessionID string
	Version   int64
	Turns     []domain.Turn
	Tone      domain.Tone
}

// Snapshot is a read-only copy of the reconciler state for rendering.
type Snapshot struct {
	SessionID string        `json:"sessionId,omitempty"`
	Turns     []domain.Turn `json:"turns"`
	State     State         `json:"-"`
	Editing   string        `json:"editing,omitempty"`
	Input     string        `json:"input,omitempty"`
	Tone      domain.Tone   `json:"tone"`
}

type Reconciler struct {
	mu    sync.Mutex
	now   func() time.Time
	newID func() string

	state     State
	sessionID string
	version   int64
	tone      domain.Tone
	turns     []domain.Turn
	editing   string
	input     string

	// epoch advances whenever the active session is replaced; seq advances
	// per cycle. Together they identify the only cycle whose result counts.
	epoch uint64
	seq   uint64
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Reconciler) {
		r.newID = newID
	}
}

func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		tone:  domain.ToneFormal,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetInput records the pending input buffer.
func (r *Reconciler) SetInput(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = text
}

// Submit appends a user turn and starts a generation cycle.
func (r *Reconciler) Submit(text string, tone domain.Tone) (Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return Cycle{}, ErrBusy
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Cycle{}, ErrEmptyInput
	}

	kind := PromptFullPitch
	if hasUserTurn(r.turns) {
		kind = PromptFollowUp
	}
	history := domain.CloneTurns(r.turns)

	r.turns = append(r.turns, domain.Turn{
		ID:        r.newID(),
		Role:      domain.RoleUser,
		Text:      text,
		CreatedAt: r.now(),
	})
	r.input = ""
	return r.begin(text, tone, kind, history, false), nil
}

// StartEditing marks a user turn as being revised.
func (r *Reconciler) StartEditing(turnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(turnID)
	if idx < 0 {
		return ErrTurnNotFound
	}
	if r.turns[idx].Role != domain.RoleUser {
		return ErrNotUserTurn
	}
	r.editing = turnID
	return nil
}

func (r *Reconciler) CancelEditing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.editing = ""
}

// Edit rewrites a user turn, drops every turn after it and replays it.
func (r *Reconciler) Edit(turnID, text string, tone domain.Tone) (Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return Cycle{}, ErrBusy
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Cycle{}, ErrEmptyInput
	}
	idx := r.indexOf(turnID)
	if idx < 0 {
		return Cycle{}, ErrTurnNotFound
	}
	if r.turns[idx].Role != domain.RoleUser {
		return Cycle{}, ErrNotUserTurn
	}

	kept := make([]domain.Turn, idx+1)
	copy(kept, r.turns[:idx+1])
	kept[idx].Text = text
	r.turns = kept
	r.editing = ""

	return r.begin(text, tone, PromptFullPitch, domain.CloneTurns(kept[:idx]), true), nil
}

// Succeed commits the assistant turn for cycle c and moves to Persisting. It
// reports false and changes nothing when c is no longer current.
func (r *Reconciler) Succeed(c Cycle, pitchText string, landingMarkup *string) (Persist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isCurrent(c) {
		return Persist{}, false
	}
	var markup *string
	if landingMarkup != nil {
		m := *landingMarkup
		markup = &m
	}
	r.appendAnswer(pitchText, markup)
	return r.persist(), true
}

// Fail records the failure message as the assistant turn for cycle c.
func (r *Reconciler) Fail(c Cycle, message string) (Persist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isCurrent(c) {
		return Persist{}, false
	}
	r.appendAnswer(message, nil)
	return r.persist(), true
}

// Settle ends the Persisting phase of cycle c and returns to Idle. A non-empty
// id records the session id and version the store reported; an empty id
// means nothing was written. It reports false when the session was replaced
// while the write ran.
func (r *Reconciler) Settle(c Cycle, id string, version int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Persisting || c.epoch != r.epoch || c.seq != r.seq {
		return false
	}
	if id != "" {
		r.sessionID = id
		r.version = version
	}
	r.state = Idle
	return true
}

// NewSession clears the conversation. Any cycle in flight becomes stale.
func (r *Reconciler) NewSession() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
	r.tone = domain.ToneFormal
}

// LoadSession replaces the conversation with a stored session whose turns
// were normalized when the record was read.
func (r *Reconciler) LoadSession(s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
	r.sessionID = s.ID
	r.version = s.Version
	r.turns = domain.CloneTurns(s.Turns)
	if s.Tone != "" {
		r.tone = s.Tone
	}
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		SessionID: r.sessionID,
		Turns:     domain.CloneTurns(r.turns),
		State:     r.state,
		Editing:   r.editing,
		Input:     r.input,
		Tone:      r.tone,
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) begin(text string, tone domain.Tone, kind PromptKind, history []domain.Turn, replay bool) Cycle {
	if tone != "" {
		r.tone = tone
	}
	r.state = Generating
	r.seq++
	return Cycle{
		epoch:     r.epoch,
		seq:       r.seq,
		SessionID: r.sessionID,
		Request:   text,
		Tone:      r.tone,
		Kind:      kind,
		History:   history,
		Replay:    replay,
	}
}

func (r *Reconciler) appendAnswer(text string, markup *string) {
	for i := range r.turns {
		r.turns[i].IsLatestAnswer = false
	}
	r.turns = append(r.turns, domain.Turn{
		ID:             r.newID(),
		Role:           domain.RoleAssistant,
		Text:           text,
		LandingMarkup:  markup,
		IsLatestAnswer: true,
		CreatedAt:      r.now(),
	})
	r.state = Persisting
}

func (r *Reconciler) persist() Persist {
	return Persist{
		Create:    r.sessionID == "",
		SessionID: r.sessionID,
		Version:   r.version,
		Turns:     domain.CloneTurns(r.turns),
		Tone:      r.tone,
	}
}

func (r *Reconciler) reset() {
	r.epoch++
	r.state = Idle
	r.sessionID = ""
	r.version = 0
	r.turns = nil
	r.editing = ""
	r.input = ""
}

func (r *Reconciler) isCurrent(c Cycle) bool {
	return r.state == Generating && c.epoch == r.epoch && c.seq == r.seq
}

func (r *Reconciler) indexOf(turnID string) int {
	for i, t := range r.turns {
		if t.ID == turnID {
			return i
		}
	}
	return -1
}

func hasUserTurn(turns []domain.Turn) bool {
	for _, t := range turns {
		if t.Role == domain.RoleUser {
			return true
		}
	}
	return false
}
