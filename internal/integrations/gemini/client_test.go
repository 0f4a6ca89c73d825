package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	val   string
	err   error
	calls atomic.Int32
	names []string
}

func (f *fakeTokens) GetToken(_ context.Context, name string) (string, error) {
	f.calls.Add(1)
	f.names = append(f.names, name)
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens *fakeTokens) *Client {
	t.Helper()
	c, err := NewClient(
		tokens,
		"/pitchcraft",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeTokens{}, "/pitchcraft/")
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, defaultModel, c.model)
	require.Equal(t, "/pitchcraft", c.paramPrefix)
	require.Equal(t, "gemini", c.Name())
}

func TestNewClient_EmptyPrefixWithTokens(t *testing.T) {
	_, err := NewClient(&fakeTokens{}, " ")
	require.ErrorContains(t, err, "prefix")

	_, err = NewClient(&fakeTokens{}, "", WithAPIKey("k"))
	require.NoError(t, err)
}

func TestEndpoint(t *testing.T) {
	c, err := NewClient(nil, "", WithBaseURL("http://localhost:9999/models/"), WithModel("gemini-pro"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999/models/gemini-pro:generateContent", c.endpoint())
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_HappyPath(t *testing.T) {
	var gotBody generateRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"# FitLife"}]}}]}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{val: "g-key"}
	c := newTestClient(t, srv, tokens)

	out, err := c.Generate(context.Background(), "Startup Idea: fitness for seniors")
	require.NoError(t, err)
	require.Equal(t, "# FitLife", out)
	require.Equal(t, "g-key", gotKey)
	require.Equal(t, "/"+defaultModel+":generateContent", gotPath)
	require.Len(t, gotBody.Contents, 1)
	require.Equal(t, "Startup Idea: fitness for seniors", gotBody.Contents[0].Parts[0].Text)
	require.Equal(t, []string{"/pitchcraft/gemini-token"}, tokens.names)
}

func TestGenerate_NoCandidateYieldsEmptyText(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{}]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := newTestClient(t, srv, &fakeTokens{val: "k"})
		out, err := c.Generate(context.Background(), "p")
		srv.Close()
		require.NoError(t, err, "body=%s", body)
		require.Empty(t, out, "body=%s", body)
	}
}

func TestGenerate_KeyFetchedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{val: "k"}
	c := newTestClient(t, srv, tokens)
	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, tokens.calls.Load())
}

func TestGenerate_MissingKey(t *testing.T) {
	c, err := NewClient(nil, "")
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrMissingAPIKey)

	c, err = NewClient(&fakeTokens{err: errors.New("ssm down")}, "/pitchcraft")
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.ErrorContains(t, err, "ssm down")
}

func TestGenerate_StaticKeySkipsTokens(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{val: "from-ssm"}
	c, err := NewClient(tokens, "/pitchcraft", WithBaseURL(srv.URL), WithAPIKey(" static "))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "static", gotKey)
	require.Zero(t, tokens.calls.Load())
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestGenerate_Non2xxWithoutPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream sad"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &fakeTokens{val: "secret-key"})
	_, err := c.Generate(context.Background(), "p")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.HTTPStatusCode())
	require.Equal(t, "upstream sad", statusErr.Body)
	require.NotContains(t, err.Error(), "secret-key")
}

func TestGenerate_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &fakeTokens{val: "k"})
	_, err := c.Generate(context.Background(), "p")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 429, apiErr.HTTPStatusCode())
	require.Equal(t, "quota exhausted", apiErr.Message)
}

func TestGenerate_ErrorPayloadOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &fakeTokens{val: "k"})
	_, err := c.Generate(context.Background(), "p")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusOK, apiErr.HTTPStatusCode())
}

func TestGenerate_TransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := NewClient(nil, "", WithBaseURL(base), WithAPIKey("very-secret"))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.Error(t, err)
	require.False(t, strings.Contains(err.Error(), "very-secret"), err.Error())
}

func TestGenerate_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &fakeTokens{val: "k"})
	_, err := c.Generate(context.Background(), "p")
	require.ErrorContains(t, err, "decode response")
}
