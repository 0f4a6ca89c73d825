package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pitchcraft/internal/domain"
)

func TestMarkdown(t *testing.T) {
	out, err := Markdown("# Startup Name\n\n**Bold** move\n\n- one\n- two\n\n<script>alert(1)</script>")
	require.NoError(t, err)
	html := string(out)
	require.Contains(t, html, `<h1 id="startup-name">Startup Name</h1>`)
	require.Contains(t, html, "<strong>Bold</strong>")
	require.Contains(t, html, "<li>one</li>")
	require.NotContains(t, html, "<script>", "raw HTML is not passed through")
}

func TestPlainText(t *testing.T) {
	in := "# FitNest\n## Tagline\n**Stay strong**, stay _social_ with `code` and ~~strike~~"
	require.Equal(t, "FitNest\nTagline\nStay strong, stay social with code and strike", PlainText(in))
	require.Equal(t, "", PlainText("### "))
}

func TestTurnViews(t *testing.T) {
	markup := "<html><body>hi</body></html>"
	views, err := TurnViews([]domain.Turn{
		{ID: "u", Role: domain.RoleUser, Text: "**idea**"},
		{ID: "a", Role: domain.RoleAssistant, Text: "## Pitch", LandingMarkup: &markup, IsLatestAnswer: true},
	})
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.True(t, views[0].User)
	require.Empty(t, views[0].HTML, "user text is shown verbatim")
	require.Equal(t, "**idea**", views[0].Text)

	require.False(t, views[1].User)
	require.True(t, views[1].Latest)
	require.Contains(t, string(views[1].HTML), "<h2")
	require.Equal(t, markup, views[1].Landing)
}

func TestSessionViews(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	views := SessionViews([]domain.Session{{
		ID:        "p1",
		Tone:      domain.ToneFun,
		CreatedAt: created,
		Turns: []domain.Turn{
			{Role: domain.RoleUser, Text: "A fitness app for seniors"},
			{Role: domain.RoleAssistant, Text: "# FitNest\n" + strings.Repeat("x", 200), IsLatestAnswer: true},
		},
	}})
	require.Len(t, views, 1)
	require.Equal(t, "A fitness app for seniors", views[0].Title)
	require.True(t, strings.HasPrefix(views[0].Preview, "FitNest"))
	require.True(t, strings.HasSuffix(views[0].Preview, "…"))
	require.Equal(t, created, views[0].CreatedAt)
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

func TestRender_Share(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, PageShare, ShareData{
		Title:   "FitNest",
		Text:    "Stay strong",
		Landing: `<html><body onload="x()">"quoted"</body></html>`,
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "<!DOCTYPE html>")
	require.Contains(t, out, "Stay strong")
	require.Contains(t, out, "sandbox")
	require.Contains(t, out, "&lt;html&gt;", "landing markup is escaped into srcdoc")
}

func TestRender_ShareError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageShare, ShareData{Error: "Pitch not found."}))
	require.Contains(t, buf.String(), "Pitch not found.")
	require.NotContains(t, buf.String(), "<iframe")
}

func TestRender_Dashboard(t *testing.T) {
	views, err := TurnViews([]domain.Turn{
		{ID: "u1", Role: domain.RoleUser, Text: "A fitness app <b>for</b> seniors"},
		{ID: "a1", Role: domain.RoleAssistant, Text: "# FitNest", IsLatestAnswer: true},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Render(&buf, PageDashboard, DashboardData{
		User:      domain.User{ID: "u", Email: "ada@example.com"},
		SessionID: "p1",
		Tone:      domain.ToneFun,
		Turns:     views,
		Sessions:  []SessionView{{ID: "p1", Title: "A fitness app"}},
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "ada@example.com")
	require.Contains(t, out, `<h1 id="fitnest">FitNest</h1>`)
	require.Contains(t, out, "&lt;b&gt;for&lt;/b&gt;", "user text is escaped")
	require.Contains(t, out, `<option value="Fun" selected>`)
	require.Contains(t, out, `href="/?session=p1"`)
}

func TestRender_SavedAndAuthPages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageSaved, SavedData{Sessions: []SessionView{{ID: "p1", Title: "Mine", CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}}}))
	require.Contains(t, buf.String(), "Jan 2, 2026")
	require.Contains(t, buf.String(), "/api/pitches/p1/pdf")

	buf.Reset()
	require.NoError(t, Render(&buf, PageLogin, AuthData{Email: "a@b.co", Error: "bad"}))
	require.Contains(t, buf.String(), `value="a@b.co"`)

	buf.Reset()
	require.NoError(t, Render(&buf, PageSignup, AuthData{MinPassword: 6}))
	require.Contains(t, buf.String(), `minlength="6"`)
}

func TestRender_Document(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, PageDocument, DocumentData{
		Title:         "PitchCraft Startup Pitch",
		Idea:          "A fitness app",
		Pitch:         "FitNest",
		LandingSource: "<html></html>",
		Footer:        "Created with ❤️ by PitchCraft",
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "Startup Idea:")
	require.Contains(t, out, "AI Generated Pitch:")
	require.Contains(t, out, "<pre>&lt;html&gt;&lt;/html&gt;</pre>")
	require.NotContains(t, out, "<img")

	buf.Reset()
	require.NoError(t, Render(&buf, PageDocument, DocumentData{Screenshot: "data:image/png;base64,AAAA"}))
	require.Contains(t, buf.String(), `src="data:image/png;base64,AAAA"`)
}

func TestRender_UnknownPage(t *testing.T) {
	require.Error(t, Render(&bytes.Buffer{}, Page("nope"), nil))
}
