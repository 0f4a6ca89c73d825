package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"pitchcraft/internal/domain"
)

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 6

var (
	ErrInvalidEmail       = errors.New("auth: a valid email address is required")
	ErrMissingPassword    = errors.New("auth: password is required")
	ErrWeakPassword       = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
)

// gotrueAPI is the part of the GoTrue client used for email/password auth.
// supabase.Client.Auth satisfies it.
type gotrueAPI interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
}

// Session is an issued sign-in. AccessToken is empty when signup still
// awaits email confirmation.
type Session struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	ExpiresIn    int         `json:"expiresIn,omitempty"`
}

// Provider signs users in and up against GoTrue.
type Provider struct {
	api gotrueAPI
}

func NewProvider(api gotrueAPI) (*Provider, error) {
	if api == nil {
		return nil, errors.New("auth: gotrue client must not be nil")
	}
	return &Provider{api: api}, nil
}

func (p *Provider) Login(_ context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if password == "" {
		return Session{}, ErrMissingPassword
	}

	resp, err := p.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if resp == nil || resp.AccessToken == "" {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		User:         domain.User{ID: resp.User.ID.String(), Email: resp.User.Email},
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

func (p *Provider) Signup(_ context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	resp, err := p.api.Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("auth: signup: %w", err)
	}
	if resp == nil {
		return Session{}, errors.New("auth: signup: empty response")
	}
	// With autoconfirm on the user arrives nested in the session.
	u := resp.User
	if u.ID == uuid.Nil {
		u = resp.Session.User
	}
	return Session{
		User:         domain.User{ID: u.ID.String(), Email: u.Email},
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
