// Package export prints saved pitches to PDF and optionally uploads them.
package export

import (
	"context"
	"errors"
)

const (
	DocumentTitle = "🚀 PitchCraft Startup Pitch"
	Footer        = "Created with ❤️ by PitchCraft | Empowering Startup Dreams"
	pdfMimeType   = "application/pdf"
)

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no Chrome binary is available.
	ErrPDFDependencyMissing = errors.New("export: pdf dependency missing")
	// ErrNothingToExport is returned for a session without a latest answer.
	ErrNothingToExport = errors.New("export: session has no generated pitch")
)

// Browser renders HTML documents. ChromeBrowser is the production
// implementation.
type Browser interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
	Screenshot(ctx context.Context, html string) ([]byte, error)
}

// Uploader stores an artifact and returns a link to it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
