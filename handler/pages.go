package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"pitchcraft/internal/auth"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/render"
	"pitchcraft/internal/routes"
	"pitchcraft/internal/usecase"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, page render.Page, data any) {
	var buf bytes.Buffer
	if err := render.Render(&buf, page, data); err != nil {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorInternal, Reason: "render_error", Err: err})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// guard applies the route table. It reports false after redirecting.
func guard(w http.ResponseWriter, r *http.Request) bool {
	d := routes.Resolve(r.URL.Path, optionalUser(r))
	if d.Redirect != "" {
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
		return false
	}
	return true
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if !guard(w, r) {
		return
	}
	data := h.dashboardData(r.Context(), mustUser(r), r.URL.Query().Get("session"))
	renderPage(w, r, http.StatusOK, render.PageDashboard, data)
}

func (h *Handler) dashboardData(ctx context.Context, user domain.User, sessionID string) render.DashboardData {
	data := render.DashboardData{User: user, Tone: domain.ToneFormal}
	if sessions, err := h.gallery.List(ctx, user); err != nil {
		data.Error = "Failed to load saved pitches."
	} else {
		data.Sessions = render.SessionViews(sessions)
	}
	if sessionID == "" {
		return data
	}
	sess, err := h.gallery.Get(ctx, user, sessionID)
	if err != nil {
		data.Error = usecase.ShareMessage(err)
		return data
	}
	turns, err := render.TurnViews(sess.Turns)
	if err != nil {
		data.Error = "Failed to render pitch."
		return data
	}
	data.SessionID = sess.ID
	data.Tone = sess.Tone
	data.Turns = turns
	return data
}

// dashboardSubmit handles the dashboard form: generate, then show the session.
func (h *Handler) dashboardSubmit(w http.ResponseWriter, r *http.Request) {
	if !guard(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_form", Err: err})
		return
	}
	user := mustUser(r)
	sessionID := r.PostFormValue("session")
	out, err := h.pitches.Generate(r.Context(), usecase.GenerateInput{
		Owner:     &user,
		SessionID: sessionID,
		Text:      r.PostFormValue("text"),
		Tone:      r.PostFormValue("tone"),
	})
	if err != nil {
		data := h.dashboardData(r.Context(), user, sessionID)
		data.Error = formMessage(err)
		var ue *usecase.Error
		status := http.StatusInternalServerError
		if errors.As(err, &ue) {
			status = statusFor(ue.Code)
		}
		renderPage(w, r, status, render.PageDashboard, data)
		return
	}
	http.Redirect(w, r, "/?session="+url.QueryEscape(out.SessionID), http.StatusSeeOther)
}

func (h *Handler) saved(w http.ResponseWriter, r *http.Request) {
	if !guard(w, r) {
		return
	}
	user := mustUser(r)
	data := render.SavedData{User: user}
	sessions, err := h.gallery.List(r.Context(), user)
	if err != nil {
		data.Error = "Failed to load saved pitches."
	} else {
		data.Sessions = render.SessionViews(sessions)
	}
	renderPage(w, r, http.StatusOK, render.PageSaved, data)
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if !guard(w, r) {
		return
	}
	renderPage(w, r, http.StatusOK, render.PageLogin, render.AuthData{MinPassword: auth.MinPasswordLength})
}

func (h *Handler) signupPage(w http.ResponseWriter, r *http.Request) {
	if !guard(w, r) {
		return
	}
	renderPage(w, r, http.StatusOK, render.PageSignup, render.AuthData{MinPassword: auth.MinPasswordLength})
}

func (h *Handler) shareHTML(w http.ResponseWriter, r *http.Request) {
	v, err := h.gallery.Share(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusServiceUnavailable
		var ue *usecase.Error
		if errors.As(err, &ue) && ue.Code == usecase.ErrorNotFound {
			status = http.StatusNotFound
		}
		renderPage(w, r, status, render.PageShare, render.ShareData{Error: usecase.ShareMessage(err)})
		return
	}
	renderPage(w, r, http.StatusOK, render.PageShare, render.ShareData{
		Title:   v.Title,
		Idea:    v.Idea,
		Text:    v.Text,
		Landing: v.Landing,
	})
}

// ---- identity ----

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, render.PageLogin, func(ctx context.Context, c credentials) (auth.Session, error) {
		return h.accounts.Login(ctx, c.Email, c.Password)
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, render.PageSignup, func(ctx context.Context, c credentials) (auth.Session, error) {
		return h.accounts.Signup(ctx, c.Email, c.Password)
	})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, page render.Page, fn func(context.Context, credentials) (auth.Session, error)) {
	if h.accounts == nil {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorInternal, Reason: "auth_disabled"})
		return
	}
	form := isForm(r)
	if optionalUser(r) != nil {
		if form {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		writeError(w, r, &usecase.Error{Code: usecase.ErrorForbidden, Reason: "already_signed_in"})
		return
	}

	var c credentials
	if form {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_form", Err: err})
			return
		}
		c = credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	} else if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := fn(r.Context(), c)
	if err != nil {
		ue := authError(err)
		if form {
			renderPage(w, r, statusFor(ue.Code), page, render.AuthData{
				Email:       c.Email,
				Error:       formMessage(ue),
				MinPassword: auth.MinPasswordLength,
			})
			return
		}
		writeError(w, r, ue)
		return
	}

	if sess.AccessToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     TokenCookie,
			Value:    sess.AccessToken,
			Path:     "/",
			MaxAge:   sess.ExpiresIn,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if !form {
		writeJSON(w, http.StatusOK, sess)
		return
	}
	if sess.AccessToken == "" {
		renderPage(w, r, http.StatusOK, render.PageLogin, render.AuthData{
			Email:       sess.User.Email,
			Notice:      "Check your email to confirm your account, then log in.",
			MinPassword: auth.MinPasswordLength,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	if isForm(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func authError(err error) *usecase.Error {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_email", Err: err}
	case errors.Is(err, auth.ErrMissingPassword):
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_password", Err: err}
	case errors.Is(err, auth.ErrWeakPassword):
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "weak_password", Err: err}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "invalid_credentials", Err: err}
	default:
		return &usecase.Error{Code: usecase.ErrorUpstream, Reason: "identity_provider_error", Err: err}
	}
}

var formMessages = map[string]string{
	"invalid_email":           "Please enter a valid email address.",
	"missing_password":        "Please enter your password.",
	"weak_password":           "Password must be at least 6 characters.",
	"invalid_credentials":     "Invalid email or password.",
	"identity_provider_error": "Sign-in is unavailable right now. Please try again.",
	"empty_text":              "Please enter your startup idea!",
	"text_too_long":           "Your idea is too long.",
	"unknown_tone":            "Please choose a tone.",
}

func formMessage(err error) string {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		if msg, ok := formMessages[ue.Reason]; ok {
			return msg
		}
		if ue.Code == usecase.ErrorStore {
			return "Error saving pitch."
		}
	}
	return "Something went wrong. Please try again."
}
