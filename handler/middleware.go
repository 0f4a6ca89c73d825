package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pitchcraft/internal/auth"
	"pitchcraft/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type correlationKey struct{}

func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// identify attaches the user behind a bearer token or session cookie. A bad
// token is rejected on API routes and ignored on screens.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			api := strings.HasPrefix(r.URL.Path, "/api/")
			switch {
			case !errors.Is(err, auth.ErrUnauthenticated):
				writeError(w, r, &usecase.Error{Code: usecase.ErrorInternal, Reason: "token_verifier_error", Err: err})
				return
			case api && r.URL.Path != "/api/auth/logout":
				writeError(w, r, &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "invalid_token", Err: err})
				return
			}
			slog.InfoContext(r.Context(), "ignoring invalid session cookie", "correlation_id", correlationID(r.Context()))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFrom(r.Context()); !ok {
			writeError(w, r, &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "sign_in_required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
