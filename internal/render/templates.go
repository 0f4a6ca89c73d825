package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"pitchcraft/internal/domain"
)

// Page names one screen template.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageSaved     Page = "saved"
	PageLogin     Page = "login"
	PageSignup    Page = "signup"
	PageShare     Page = "share"
	PageDocument  Page = "document"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages map[Page]*template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
	}

	pages = make(map[Page]*template.Template)
	for _, p := range []Page{PageDashboard, PageSaved, PageLogin, PageSignup, PageShare} {
		pages[p] = template.Must(template.New(string(p)).Funcs(funcMap).
			ParseFS(templateFS, "templates/layout.html", "templates/"+string(p)+".html"))
	}
	// The printed document is standalone.
	pages[PageDocument] = template.Must(template.New(string(PageDocument)).Funcs(funcMap).
		ParseFS(templateFS, "templates/document.html"))
}

// Render writes page p filled with data.
func Render(w io.Writer, p Page, data any) error {
	tmpl, ok := pages[p]
	if !ok {
		return fmt.Errorf("render: unknown page %q", p)
	}
	name := "layout"
	if p == PageDocument {
		name = "document"
	}
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render: %s: %w", p, err)
	}
	return nil
}

// TurnView is a turn prepared for display.
type TurnView struct {
	ID      string
	User    bool
	Latest  bool
	Text    string
	HTML    template.HTML
	Landing string
}

// SessionView is one row of a session list.
type SessionView struct {
	ID        string
	Title     string
	Tone      domain.Tone
	Preview   string
	CreatedAt time.Time
}

type DashboardData struct {
	User      domain.User
	SessionID string
	Tone      domain.Tone
	Turns     []TurnView
	Sessions  []SessionView
	Error     string
}

type SavedData struct {
	User     domain.User
	Sessions []SessionView
	Error    string
}

// AuthData fills the login and signup screens.
type AuthData struct {
	Email       string
	Error       string
	Notice      string
	MinPassword int
}

// ShareData fills the public share view. Error replaces the body when set.
type ShareData struct {
	Title   string
	Idea    string
	Text    string
	Landing string
	Error   string
}

// DocumentData is the printable pitch. Screenshot is a data URL of the
// rendered landing page; LandingSource is shown when it is empty.
type DocumentData struct {
	Title         string
	Idea          string
	Pitch         string
	Screenshot    template.URL
	LandingSource string
	Footer        string
}

// TurnViews prepares turns for display, rendering assistant text as markdown.
func TurnViews(turns []domain.Turn) ([]TurnView, error) {
	out := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		v := TurnView{ID: t.ID, User: t.Role == domain.RoleUser, Latest: t.IsLatestAnswer, Text: t.Text}
		if !v.User {
			h, err := Markdown(t.Text)
			if err != nil {
				return nil, err
			}
			v.HTML = h
		}
		if t.HasLanding() {
			v.Landing = *t.LandingMarkup
		}
		out = append(out, v)
	}
	return out, nil
}

const previewRunes = 140

func SessionViews(sessions []domain.Session) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		v := SessionView{ID: s.ID, Title: s.Title(), Tone: s.Tone, CreatedAt: s.CreatedAt}
		if latest, ok := s.LatestAnswer(); ok {
			v.Preview = truncate(PlainText(latest.Text), previewRunes)
		}
		out = append(out, v)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
