package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/integrations/paramstore"
)

// Claims is the subset of the identity provider's access token we read.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens issued by the identity provider.
type Verifier struct {
	tokens     paramstore.TokenGetter
	paramName  string
	staticKey  []byte
	audience   string
	leeway     time.Duration
	now        func() time.Time
	secretOnce sync.Once
	secret     []byte
	secretErr  error
}

type VerifierOption func(*Verifier)

// WithSecret sets the signing secret directly instead of reading it from the
// parameter store.
func WithSecret(secret string) VerifierOption {
	return func(v *Verifier) {
		v.staticKey = []byte(secret)
	}
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) {
		v.audience = audience
	}
}

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier builds a Verifier. Without WithSecret the secret is read once
// from tokens at paramPrefix+"/jwt-secret".
func NewVerifier(tokens paramstore.TokenGetter, paramPrefix string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{
		tokens:    tokens,
		paramName: strings.TrimRight(strings.TrimSpace(paramPrefix), "/") + "/jwt-secret",
		leeway:    30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if len(v.staticKey) == 0 && v.tokens == nil {
		return nil, errors.New("auth: verifier needs a secret or a token getter")
	}
	return v, nil
}

func (v *Verifier) signingKey(ctx context.Context) ([]byte, error) {
	if len(v.staticKey) > 0 {
		return v.staticKey, nil
	}
	v.secretOnce.Do(func() {
		s, err := v.tokens.GetToken(ctx, v.paramName)
		if err != nil {
			v.secretErr = fmt.Errorf("auth: load jwt secret: %w", err)
			return
		}
		v.secret = []byte(s)
	})
	return v.secret, v.secretErr
}

// Verify parses and validates an access token and returns its user. Any
// token problem is reported as ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrUnauthenticated
	}
	key, err := v.signingKey(ctx)
	if err != nil {
		return domain.User{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return domain.User{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return domain.User{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: displayName(claims.UserMetadata),
	}, nil
}

func displayName(meta map[string]any) string {
	for _, k := range []string{"display_name", "full_name", "name"} {
		if s, ok := meta[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
