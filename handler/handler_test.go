package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"pitchcraft/internal/auth"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/export"
	"pitchcraft/internal/usecase"
)

type stubPitches struct {
	out    usecase.PitchOutput
	err    error
	genIn  usecase.GenerateInput
	editIn usecase.EditInput
}

func (s *stubPitches) Generate(_ context.Context, in usecase.GenerateInput) (usecase.PitchOutput, error) {
	s.genIn = in
	return s.out, s.err
}

func (s *stubPitches) Edit(_ context.Context, in usecase.EditInput) (usecase.PitchOutput, error) {
	s.editIn = in
	return s.out, s.err
}

type stubGallery struct {
	sessions  []domain.Session
	session   domain.Session
	share     usecase.ShareView
	export    usecase.ExportOutput
	err       error
	owner     domain.User
	id        string
	name      string
	upload    bool
	deleted   bool
	listCalls int
}

func (s *stubGallery) List(_ context.Context, owner domain.User) ([]domain.Session, error) {
	s.owner = owner
	s.listCalls++
	return s.sessions, s.err
}

func (s *stubGallery) Get(_ context.Context, owner domain.User, id string) (domain.Session, error) {
	s.owner, s.id = owner, id
	return s.session, s.err
}

func (s *stubGallery) Rename(_ context.Context, owner domain.User, id, name string) (domain.Session, error) {
	s.owner, s.id, s.name = owner, id, name
	return s.session, s.err
}

func (s *stubGallery) Delete(_ context.Context, owner domain.User, id string) error {
	s.owner, s.id = owner, id
	s.deleted = s.err == nil
	return s.err
}

func (s *stubGallery) Share(_ context.Context, id string) (usecase.ShareView, error) {
	s.id = id
	return s.share, s.err
}

func (s *stubGallery) Export(_ context.Context, owner domain.User, id string, upload bool) (usecase.ExportOutput, error) {
	s.owner, s.id, s.upload = owner, id, upload
	return s.export, s.err
}

type stubVerifier struct {
	users map[string]domain.User
	err   error
}

func (v stubVerifier) Verify(_ context.Context, token string) (domain.User, error) {
	if v.err != nil {
		return domain.User{}, v.err
	}
	u, ok := v.users[token]
	if !ok {
		return domain.User{}, auth.ErrUnauthenticated
	}
	return u, nil
}

type stubAccounts struct {
	sess  auth.Session
	err   error
	email string
}

func (a *stubAccounts) Login(_ context.Context, email, _ string) (auth.Session, error) {
	a.email = email
	return a.sess, a.err
}

func (a *stubAccounts) Signup(_ context.Context, email, _ string) (auth.Session, error) {
	a.email = email
	return a.sess, a.err
}

var ada = domain.User{ID: "user-1", Email: "ada@example.com"}

func verifier() stubVerifier {
	return stubVerifier{users: map[string]domain.User{"good-token": ada}}
}

func newTestHandler(t *testing.T, p *stubPitches, g *stubGallery, opts ...Option) *Handler {
	t.Helper()
	h, err := NewHandler(p, g, verifier(), opts...)
	require.NoError(t, err)
	return h
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func withToken(e events.APIGatewayProxyRequest) events.APIGatewayProxyRequest {
	e.Headers["Authorization"] = "Bearer good-token"
	return e
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubGallery{}, verifier())
	require.Error(t, err)
	_, err = NewHandler(&stubPitches{}, nil, verifier())
	require.Error(t, err)
	_, err = NewHandler(&stubPitches{}, &stubGallery{}, nil)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

func TestGenerate_Anonymous(t *testing.T) {
	p := &stubPitches{out: usecase.PitchOutput{Answer: domain.Turn{Text: "# FitNest"}}}
	h := newTestHandler(t, p, &stubGallery{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/pitches", `{"text":"A fitness app for seniors","tone":"Fun"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, p.genIn.Owner)
	require.Equal(t, "A fitness app for seniors", p.genIn.Text)
	require.Equal(t, "Fun", p.genIn.Tone)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[usecase.PitchOutput](t, resp.Body)
	require.Equal(t, "# FitNest", out.Answer.Text)
}

func TestGenerate_AuthenticatedAcceptsIdeaField(t *testing.T) {
	p := &stubPitches{out: usecase.PitchOutput{SessionID: "p1", Persisted: true}}
	h := newTestHandler(t, p, &stubGallery{})

	resp, err := h.Handle(context.Background(), withToken(makeEvent(http.MethodPost, "/api/pitches", `{"idea":"X","sessionId":"p1"}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, p.genIn.Owner)
	require.Equal(t, ada, *p.genIn.Owner)
	require.Equal(t, "X", p.genIn.Text)
	require.Equal(t, "p1", p.genIn.SessionID)
}

func TestGenerate_InvalidBody(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/pitches", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "invalid_json", out.Reason)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_text"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "unauthorized", err: &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "sign_in_required"}, status: http.StatusUnauthorized, code: string(usecase.ErrorUnauthorized)},
		{name: "forbidden", err: &usecase.Error{Code: usecase.ErrorForbidden, Reason: "not_owner"}, status: http.StatusForbidden, code: string(usecase.ErrorForbidden)},
		{name: "not found", err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "session_not_found"}, status: http.StatusNotFound, code: string(usecase.ErrorNotFound)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "gemini_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "identity_provider_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "store", err: &usecase.Error{Code: usecase.ErrorStore, Reason: "store_create_error"}, status: http.StatusServiceUnavailable, code: string(usecase.ErrorStore)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "reconciler_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubPitches{err: tc.err}, &stubGallery{})

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/pitches", `{"text":"idea"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})

	event := makeEvent(http.MethodPost, "/api/pitches", `{"text":"idea"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestEdit_PassesRouteParams(t *testing.T) {
	p := &stubPitches{out: usecase.PitchOutput{SessionID: "p1"}}
	h := newTestHandler(t, p, &stubGallery{})

	resp, err := h.Handle(context.Background(), withToken(makeEvent(http.MethodPost, "/api/pitches/p1/turns/t1", `{"text":"A meal-kit service","tone":"Fun"}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.EditInput{Owner: &ada, SessionID: "p1", TurnID: "t1", Text: "A meal-kit service", Tone: "Fun"}, p.editIn)
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

func TestAuth_RejectsBadTokensOnAPI(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})

	event := makeEvent(http.MethodPost, "/api/pitches", `{"text":"idea"}`)
	event.Headers["Authorization"] = "Bearer forged"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/pitches", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "sign_in_required", parseBody[errorResponse](t, resp.Body).Reason)
}

func TestAuth_VerifierFailureIsInternal(t *testing.T) {
	h, err := NewHandler(&stubPitches{}, &stubGallery{}, stubVerifier{err: errors.New("ssm down")})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), withToken(makeEvent(http.MethodGet, "/api/pitches", "")))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLogin_JSONSetsCookie(t *testing.T) {
	accounts := &stubAccounts{sess: auth.Session{User: ada, AccessToken: "good-token", ExpiresIn: 3600}}
	h := newTestHandler(t, &stubPitches{}, &stubGallery{}, WithAuthenticator(accounts), WithSecureCookie(true))

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"hunter22"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ada@example.com", accounts.email)

	cookie := resp.Headers["Set-Cookie"]
	require.Contains(t, cookie, TokenCookie+"=good-token")
	require.Contains(t, cookie, "HttpOnly")
	require.Contains(t, cookie, "Secure")

	sess := parseBody[auth.Session](t, resp.Body)
	require.Equal(t, "user-1", sess.User.ID)
}

func TestLogin_Errors(t *testing.T) {
	accounts := &stubAccounts{err: auth.ErrInvalidCredentials}
	h := newTestHandler(t, &stubPitches{}, &stubGallery{}, WithAuthenticator(accounts))

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"nope"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	accounts.err = auth.ErrWeakPassword
	form := makeEvent(http.MethodPost, "/api/auth/signup", "email=ada%40example.com&password=123")
	form.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	resp, err = h.Handle(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, resp.Body, "Password must be at least 6 characters.")
	require.Contains(t, resp.Body, `value="ada@example.com"`)

	resp, err = h.Handle(context.Background(), withToken(makeEvent(http.MethodPost, "/api/auth/login", `{}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "login is for signed-out users")
}

func TestLogin_Disabled(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/auth/login", `{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSignup_FormAwaitingConfirmation(t *testing.T) {
	accounts := &stubAccounts{sess: auth.Session{User: ada}}
	h := newTestHandler(t, &stubPitches{}, &stubGallery{}, WithAuthenticator(accounts))

	form := makeEvent(http.MethodPost, "/api/auth/signup", "email=ada%40example.com&password=123456")
	form.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	resp, err := h.Handle(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "Check your email")
	require.Empty(t, resp.Headers["Set-Cookie"])
}

func TestLogout(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})

	form := makeEvent(http.MethodPost, "/api/auth/logout", "")
	form.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	form.Headers["Cookie"] = TokenCookie + "=expired-token"
	resp, err := h.Handle(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Headers["Location"])
	require.Contains(t, resp.Headers["Set-Cookie"], "Max-Age=0")

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/auth/logout", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// Gallery
// ---------------------------------------------------------------------------

func TestGallery_ListRenameDelete(t *testing.T) {
	g := &stubGallery{sessions: []domain.Session{{ID: "p1", OwnerID: "user-1"}}, session: domain.Session{ID: "p1", DisplayName: "FitNest"}}
	h := newTestHandler(t, &stubPitches{}, g)
	ctx := context.Background()

	resp, err := h.Handle(ctx, withToken(makeEvent(http.MethodGet, "/api/pitches", "")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := parseBody[listResponse](t, resp.Body)
	require.Len(t, list.Pitches, 1)
	require.Equal(t, ada, g.owner)

	resp, err = h.Handle(ctx, withToken(makeEvent(http.MethodGet, "/api/pitches/p1", "")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "p1", g.id)

	resp, err = h.Handle(ctx, withToken(makeEvent(http.MethodPatch, "/api/pitches/p1", `{"displayName":"FitNest"}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "FitNest", g.name)

	resp, err = h.Handle(ctx, withToken(makeEvent(http.MethodDelete, "/api/pitches/p1", "")))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.True(t, g.deleted)
}

func TestExportPDF(t *testing.T) {
	g := &stubGallery{export: usecase.ExportOutput{Result: &export.Result{Data: []byte{0x25, 0x50, 0x44, 0x46, 0xff}, Filename: "PitchCraft_p1.pdf", MimeType: "application/pdf"}}}
	h := newTestHandler(t, &stubPitches{}, g)

	resp, err := h.Handle(context.Background(), withToken(makeEvent(http.MethodGet, "/api/pitches/p1/pdf", "")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.IsBase64Encoded)
	require.Equal(t, "application/pdf", resp.Headers["Content-Type"])
	require.Contains(t, resp.Headers["Content-Disposition"], "PitchCraft_p1.pdf")
	data, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	require.Equal(t, []byte{0x25, 0x50, 0x44, 0x46, 0xff}, data)
	require.False(t, g.upload)

	g.export.URL = "https://files.example.com/signed"
	event := withToken(makeEvent(http.MethodGet, "/api/pitches/p1/pdf", ""))
	event.QueryStringParameters = map[string]string{"link": "true"}
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.True(t, g.upload)
	link := parseBody[exportLinkResponse](t, resp.Body)
	require.Equal(t, "https://files.example.com/signed", link.URL)
}

// ---------------------------------------------------------------------------
// Share and screens
// ---------------------------------------------------------------------------

func TestShare(t *testing.T) {
	g := &stubGallery{share: usecase.ShareView{ID: "p1", Title: "FitNest", Text: "Stay strong"}}
	h := newTestHandler(t, &stubPitches{}, g)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/share/p1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Stay strong", parseBody[usecase.ShareView](t, resp.Body).Text)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodGet, "/share/p1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Headers["Content-Type"], "text/html")
	require.Contains(t, resp.Body, "Stay strong")
	require.False(t, resp.IsBase64Encoded)
}

func TestShare_ErrorStates(t *testing.T) {
	g := &stubGallery{err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "session_not_found"}}
	h := newTestHandler(t, &stubPitches{}, g)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/share/missing", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, resp.Body, "Pitch not found.")

	g.err = &usecase.Error{Code: usecase.ErrorStore, Reason: "store_read_error"}
	resp, err = h.Handle(context.Background(), makeEvent(http.MethodGet, "/share/p1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Contains(t, resp.Body, "Failed to load pitch.")
}

func TestScreens_Guard(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})
	cases := []struct {
		path     string
		cookie   string
		status   int
		location string
	}{
		{path: "/", status: http.StatusSeeOther, location: "/login"},
		{path: "/saved", status: http.StatusSeeOther, location: "/login"},
		{path: "/login", status: http.StatusOK},
		{path: "/signup", status: http.StatusOK},
		{path: "/", cookie: "good-token", status: http.StatusOK},
		{path: "/saved", cookie: "good-token", status: http.StatusOK},
		{path: "/login", cookie: "good-token", status: http.StatusSeeOther, location: "/"},
		{path: "/signup", cookie: "good-token", status: http.StatusSeeOther, location: "/"},
		{path: "/login", cookie: "stale-token", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.path+" "+tc.cookie, func(t *testing.T) {
			event := makeEvent(http.MethodGet, tc.path, "")
			if tc.cookie != "" {
				event.Headers["Cookie"] = TokenCookie + "=" + tc.cookie
			}
			resp, err := h.Handle(context.Background(), event)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.location, resp.Headers["Location"])
		})
	}
}

func TestDashboard_LoadsSession(t *testing.T) {
	g := &stubGallery{
		sessions: []domain.Session{{ID: "p1", Turns: []domain.Turn{{Role: domain.RoleUser, Text: "A fitness app"}}}},
		session: domain.Session{ID: "p1", Tone: domain.ToneFun, Turns: []domain.Turn{
			{ID: "t1", Role: domain.RoleUser, Text: "A fitness app"},
			{ID: "t2", Role: domain.RoleAssistant, Text: "# FitNest", IsLatestAnswer: true},
		}},
	}
	h := newTestHandler(t, &stubPitches{}, g)

	event := withToken(makeEvent(http.MethodGet, "/", ""))
	event.QueryStringParameters = map[string]string{"session": "p1"}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, `<h1 id="fitnest">FitNest</h1>`)
	require.Contains(t, resp.Body, `data-session="p1"`)
	require.Equal(t, "p1", g.id)
}

func TestDashboard_FormSubmit(t *testing.T) {
	p := &stubPitches{out: usecase.PitchOutput{SessionID: "p9"}}
	h := newTestHandler(t, p, &stubGallery{})

	event := withToken(makeEvent(http.MethodPost, "/", "text=A+fitness+app&tone=Fun&session="))
	event.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/?session=p9", resp.Headers["Location"])
	require.Equal(t, "A fitness app", p.genIn.Text)
	require.Equal(t, ada, *p.genIn.Owner)

	p.err = &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_text"}
	event = withToken(makeEvent(http.MethodPost, "/", "text=&tone=Fun"))
	event.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, resp.Body, "Please enter your startup idea!")
}

// ---------------------------------------------------------------------------
// Transport adapters
// ---------------------------------------------------------------------------

func TestHandle_Base64Body(t *testing.T) {
	p := &stubPitches{}
	h := newTestHandler(t, p, &stubGallery{})

	event := makeEvent(http.MethodPost, "/api/pitches", base64.StdEncoding.EncodeToString([]byte(`{"text":"encoded idea"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "encoded idea", p.genIn.Text)

	event.Body = "%%%"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_UnknownAPIRoute(t *testing.T) {
	h := newTestHandler(t, &stubPitches{}, &stubGallery{})
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorNotFound), parseBody[errorResponse](t, resp.Body).Error)
}

func TestServeHTTP(t *testing.T) {
	p := &stubPitches{out: usecase.PitchOutput{Answer: domain.Turn{Text: "ok"}}}
	srv := httptest.NewServer(newTestHandler(t, p, &stubGallery{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/pitches", strings.NewReader(`{"text":"idea"}`))
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "good-token"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-Id"))
	require.Equal(t, ada, *p.genIn.Owner)
}
