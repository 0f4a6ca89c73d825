// Package auth resolves who the caller is: access-token verification,
// email/password sign-in against the identity provider, and the current-user
// state shared by a process.
package auth

import (
	"context"
	"errors"
	"sync"

	"pitchcraft/internal/domain"
)

var ErrUnauthenticated = errors.New("auth: not authenticated")

// State holds the current user for a process (CLI run, live connection).
// It is built once and passed explicitly to whatever needs it.
type State struct {
	mu   sync.RWMutex
	user *domain.User
	next int
	subs map[int]chan *domain.User
}

func NewState() *State {
	return &State{subs: make(map[int]chan *domain.User)}
}

// Current returns the signed-in user, if any.
func (s *State) Current() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Set replaces the current user; nil signs out. Subscribers always observe the
// newest value, intermediate values may be skipped.
func (s *State) Set(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- u
	}
}

// Subscribe returns a channel primed with the current value and updated on
// every Set. stop closes the channel.
func (s *State) Subscribe() (<-chan *domain.User, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan *domain.User, 1)
	ch <- s.user
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

type userKey struct{}

// WithUser attaches an authenticated user to ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user attached by WithUser.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}
