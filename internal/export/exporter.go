package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"strings"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/render"
)

// Exporter builds the printable document for a session and prints it.
type Exporter struct {
	browser Browser
}

func NewExporter(b Browser) (*Exporter, error) {
	if b == nil {
		return nil, errors.New("export: browser must not be nil")
	}
	return &Exporter{browser: b}, nil
}

// Export prints the session's first idea and latest answer. A landing page
// that cannot be captured is included as source text instead.
func (e *Exporter) Export(ctx context.Context, s domain.Session) (*Result, error) {
	latest, ok := s.LatestAnswer()
	if !ok {
		return nil, ErrNothingToExport
	}

	data := render.DocumentData{
		Title:  DocumentTitle,
		Idea:   s.Idea(),
		Pitch:  render.PlainText(latest.Text),
		Footer: Footer,
	}
	if latest.HasLanding() {
		markup := *latest.LandingMarkup
		shot, err := e.browser.Screenshot(ctx, markup)
		if err != nil || len(shot) == 0 {
			slog.WarnContext(ctx, "landing screenshot failed, using source fallback", "session_id", s.ID, "err", err)
			data.LandingSource = markup
		} else {
			data.Screenshot = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(shot))
		}
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, render.PageDocument, data); err != nil {
		return nil, err
	}
	pdf, err := e.browser.PrintPDF(ctx, buf.String())
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: Filename(s.ID),
		MimeType: pdfMimeType,
	}, nil
}

// Filename is the download name for a session's PDF.
func Filename(id string) string {
	return "PitchCraft_" + sanitize(id) + ".pdf"
}

func sanitize(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "pitch"
	}
	return b.String()
}
