// Package handler is the HTTP surface of the service. The same router serves
// API Gateway proxy events on Lambda and plain net/http in the local server.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pitchcraft/internal/auth"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/usecase"
)

// TokenCookie carries the access token for browser sessions.
const TokenCookie = "pitchcraft_token"

type PitchUseCase interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (usecase.PitchOutput, error)
	Edit(ctx context.Context, in usecase.EditInput) (usecase.PitchOutput, error)
}

type GalleryUseCase interface {
	List(ctx context.Context, owner domain.User) ([]domain.Session, error)
	Get(ctx context.Context, owner domain.User, id string) (domain.Session, error)
	Rename(ctx context.Context, owner domain.User, id, name string) (domain.Session, error)
	Delete(ctx context.Context, owner domain.User, id string) error
	Share(ctx context.Context, id string) (usecase.ShareView, error)
	Export(ctx context.Context, owner domain.User, id string, upload bool) (usecase.ExportOutput, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// Authenticator signs users in and up. auth.Provider satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Signup(ctx context.Context, email, password string) (auth.Session, error)
}

type Handler struct {
	pitches      PitchUseCase
	gallery      GalleryUseCase
	verifier     TokenVerifier
	accounts     Authenticator
	secureCookie bool
	router       chi.Router
}

type Option func(*Handler)

// WithAuthenticator enables the login and signup endpoints.
func WithAuthenticator(a Authenticator) Option {
	return func(h *Handler) {
		h.accounts = a
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

func NewHandler(p PitchUseCase, g GalleryUseCase, v TokenVerifier, opts ...Option) (*Handler, error) {
	if p == nil {
		return nil, errors.New("handler: pitch use case must not be nil")
	}
	if g == nil {
		return nil, errors.New("handler: gallery use case must not be nil")
	}
	if v == nil {
		return nil, errors.New("handler: token verifier must not be nil")
	}
	h := &Handler{pitches: p, gallery: g, verifier: v}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlation)
	r.Use(h.identify)

	r.Route("/api", func(r chi.Router) {
		r.Post("/pitches", h.generate)
		r.Get("/share/{id}", h.shareJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.login)
			r.Post("/signup", h.signup)
			r.Post("/logout", h.logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/pitches", h.list)
			r.Get("/pitches/{id}", h.get)
			r.Patch("/pitches/{id}", h.rename)
			r.Delete("/pitches/{id}", h.delete)
			r.Get("/pitches/{id}/pdf", h.exportPDF)
			r.Post("/pitches/{id}/turns/{turnID}", h.edit)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, &usecase.Error{Code: usecase.ErrorNotFound, Reason: "route_not_found"})
		})
	})

	r.Get("/share/{id}", h.shareHTML)
	r.Get("/", h.dashboard)
	r.Post("/", h.dashboardSubmit)
	r.Get("/saved", h.saved)
	r.Get("/login", h.loginPage)
	r.Get("/signup", h.signupPage)
	return r
}
