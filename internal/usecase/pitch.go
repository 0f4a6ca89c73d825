package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"pitchcraft/internal/conversation"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/landing"
	"pitchcraft/internal/repository"
)

const (
	defaultMaxInput      = 2000
	defaultHistoryBudget = 12000
	noTextFallback       = "No text returned from AI."
	failurePrefix        = "Error generating pitch: "
)

// Generator produces text for a single prompt. An empty string with a nil
// error means the provider returned no content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type PitchService struct {
	gen           Generator
	store         repository.Store
	maxInput      int
	historyBudget int
	newReconciler func() *conversation.Reconciler

	mu       sync.Mutex
	inflight map[string]struct{}
}

type PitchOption func(*PitchService)

// WithMaxInput bounds the idea/message length in runes.
func WithMaxInput(n int) PitchOption {
	return func(s *PitchService) {
		if n > 0 {
			s.maxInput = n
		}
	}
}

// WithHistoryBudget bounds the serialized conversation in follow-up prompts.
func WithHistoryBudget(n int) PitchOption {
	return func(s *PitchService) {
		if n > 0 {
			s.historyBudget = n
		}
	}
}

func WithReconcilerFactory(f func() *conversation.Reconciler) PitchOption {
	return func(s *PitchService) {
		s.newReconciler = f
	}
}

func NewPitchService(gen Generator, store repository.Store, opts ...PitchOption) (*PitchService, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	s := &PitchService{
		gen:           gen,
		store:         store,
		maxInput:      defaultMaxInput,
		historyBudget: defaultHistoryBudget,
		newReconciler: func() *conversation.Reconciler { return conversation.New() },
		inflight:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type GenerateInput struct {
	// Owner is nil for anonymous generation; nothing is persisted then.
	Owner     *domain.User
	SessionID string
	Text      string
	Tone      string
}

type EditInput struct {
	Owner     *domain.User
	SessionID string
	TurnID    string
	Text      string
	Tone      string
}

type PitchOutput struct {
	SessionID string        `json:"sessionId,omitempty"`
	Turns     []domain.Turn `json:"turns"`
	Answer    domain.Turn   `json:"answer"`
	Failed    bool          `json:"failed"`
	Persisted bool          `json:"persisted"`
	// Stale is set when the session changed while the cycle ran and the
	// result was discarded.
	Stale bool `json:"-"`
}

// Generate submits a new idea or follow-up message and runs the cycle.
func (s *PitchService) Generate(ctx context.Context, in GenerateInput) (PitchOutput, error) {
	text, tone, err := s.validate(in.Text, in.Tone)
	if err != nil {
		return PitchOutput{}, err
	}
	rec := s.newReconciler()
	if id := strings.TrimSpace(in.SessionID); id != "" {
		if in.Owner == nil {
			return PitchOutput{}, newError(ErrorUnauthorized, "sign_in_required", nil)
		}
		sess, err := loadOwned(ctx, s.store, *in.Owner, id)
		if err != nil {
			return PitchOutput{}, err
		}
		rec.LoadSession(sess)
	}
	release, err := s.Claim(rec.Snapshot().SessionID)
	if err != nil {
		return PitchOutput{}, err
	}
	defer release()
	cycle, err := rec.Submit(text, tone)
	if err != nil {
		return PitchOutput{}, ReconcilerError(err)
	}
	return s.Complete(ctx, rec, cycle, in.Owner)
}

// Edit rewrites a stored user turn and regenerates the answer after it.
func (s *PitchService) Edit(ctx context.Context, in EditInput) (PitchOutput, error) {
	if in.Owner == nil {
		return PitchOutput{}, newError(ErrorUnauthorized, "sign_in_required", nil)
	}
	text, tone, err := s.validate(in.Text, in.Tone)
	if err != nil {
		return PitchOutput{}, err
	}
	sess, err := loadOwned(ctx, s.store, *in.Owner, in.SessionID)
	if err != nil {
		return PitchOutput{}, err
	}
	rec := s.newReconciler()
	rec.LoadSession(sess)
	release, err := s.Claim(sess.ID)
	if err != nil {
		return PitchOutput{}, err
	}
	defer release()
	cycle, err := rec.Edit(in.TurnID, text, tone)
	if err != nil {
		return PitchOutput{}, ReconcilerError(err)
	}
	return s.Complete(ctx, rec, cycle, in.Owner)
}

// Complete runs cycle c against the generator, commits the outcome to rec and
// persists the turn list once when owner is set. rec is settled either way.
func (s *PitchService) Complete(ctx context.Context, rec *conversation.Reconciler, c conversation.Cycle, owner *domain.User) (PitchOutput, error) {
	pitch, markup, genErr := s.run(ctx, c)

	var (
		p  conversation.Persist
		ok bool
	)
	if genErr != nil {
		slog.WarnContext(ctx, "generation failed",
			"session_id", c.SessionID,
			"code", generatorErrorCode(genErr),
			"err", genErr,
		)
		p, ok = rec.Fail(c, failurePrefix+genErr.Error())
	} else {
		p, ok = rec.Succeed(c, pitch, markup)
	}
	if !ok {
		slog.WarnContext(ctx, "discarding stale generation result", "session_id", c.SessionID)
		return PitchOutput{Stale: true}, nil
	}

	out := PitchOutput{
		SessionID: p.SessionID,
		Turns:     p.Turns,
		Failed:    genErr != nil,
	}
	out.Answer, _ = domain.LatestAnswer(p.Turns)

	if owner == nil {
		rec.Settle(c, "", 0)
		return out, nil
	}
	if p.Create {
		id, err := s.store.Create(ctx, owner.ID, p.Turns, p.Tone)
		if err != nil {
			rec.Settle(c, "", 0)
			return PitchOutput{}, newError(ErrorStore, "store_create_error", err)
		}
		rec.Settle(c, id, domain.InitialVersion)
		out.SessionID = id
	} else {
		next, err := s.store.Update(ctx, p.SessionID, p.Version, p.Turns, p.Tone)
		if err != nil {
			rec.Settle(c, "", 0)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return PitchOutput{}, newError(ErrorNotFound, "session_not_found", err)
			case errors.Is(err, repository.ErrVersionConflict):
				return PitchOutput{}, newError(ErrorInvalidInput, "generation_in_progress", err)
			}
			return PitchOutput{}, newError(ErrorStore, "store_update_error", err)
		}
		rec.Settle(c, p.SessionID, next)
	}
	out.Persisted = true
	return out, nil
}

// Claim marks a stored session as generating within this process. The
// returned release must be called once the cycle's write settled. An empty id
// is never contended.
func (s *PitchService) Claim(sessionID string) (func(), error) {
	if sessionID == "" {
		return func() {}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return nil, newError(ErrorInvalidInput, "generation_in_progress", conversation.ErrBusy)
	}
	s.inflight[sessionID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.inflight, sessionID)
			s.mu.Unlock()
		})
	}, nil
}

// Validate checks raw input the way Generate does; the websocket channel
// uses it before driving its own reconciler.
func (s *PitchService) Validate(text, tone string) (string, domain.Tone, error) {
	return s.validate(text, tone)
}

func (s *PitchService) validate(text, tone string) (string, domain.Tone, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", newError(ErrorInvalidInput, "empty_text", nil)
	}
	if utf8.RuneCountInString(text) > s.maxInput {
		return "", "", newError(ErrorInvalidInput, "text_too_long", nil)
	}
	t, err := domain.ParseTone(tone)
	if err != nil {
		return "", "", newError(ErrorInvalidInput, "unknown_tone", err)
	}
	return text, t, nil
}

// run issues the pitch and landing calls concurrently. Either failing fails
// the cycle.
func (s *PitchService) run(ctx context.Context, c conversation.Cycle) (string, *string, error) {
	var pitch, rawLanding string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.gen.Generate(gctx, buildPitchPrompt(c, s.historyBudget))
		if err != nil {
			return fmt.Errorf("pitch: %w", err)
		}
		pitch = out
		return nil
	})
	g.Go(func() error {
		out, err := s.gen.Generate(gctx, buildLandingPrompt(landingIdea(c)))
		if err != nil {
			return fmt.Errorf("landing page: %w", err)
		}
		rawLanding = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	if strings.TrimSpace(pitch) == "" {
		pitch = noTextFallback
	}
	var markup *string
	if doc := landing.Normalize(rawLanding); doc != "" {
		markup = &doc
	}
	return pitch, markup, nil
}

// landingIdea is the session's opening idea: the first user turn before the
// request, or the request itself when it opens the session.
func landingIdea(c conversation.Cycle) string {
	for _, t := range c.History {
		if t.Role == domain.RoleUser {
			return t.Text
		}
	}
	return c.Request
}

func generatorErrorCode(err error) ErrorCode {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return ErrorRateLimited
	}
	return ErrorUpstream
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// ReconcilerError classifies a conversation error as a use-case error.
func ReconcilerError(err error) error {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		return newError(ErrorInvalidInput, "empty_text", err)
	case errors.Is(err, conversation.ErrTurnNotFound):
		return newError(ErrorNotFound, "turn_not_found", err)
	case errors.Is(err, conversation.ErrNotUserTurn):
		return newError(ErrorInvalidInput, "not_user_turn", err)
	case errors.Is(err, conversation.ErrBusy):
		return newError(ErrorInvalidInput, "generation_in_progress", err)
	default:
		return newError(ErrorInternal, "reconciler_error", err)
	}
}

// loadOwned reads a session and checks it belongs to owner.
func loadOwned(ctx context.Context, store repository.Store, owner domain.User, id string) (domain.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Session{}, newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, newError(ErrorNotFound, "session_not_found", err)
		}
		return domain.Session{}, newError(ErrorStore, "store_read_error", err)
	}
	if sess.OwnerID != owner.ID {
		return domain.Session{}, newError(ErrorForbidden, "not_owner", nil)
	}
	return sess, nil
}
