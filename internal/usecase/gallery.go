package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/export"
	"pitchcraft/internal/render"
	"pitchcraft/internal/repository"
)

const maxDisplayName = 80

// Share view messages.
const (
	ShareNotFound   = "Pitch not found."
	ShareLoadFailed = "Failed to load pitch."
)

// PDFExporter prints a session. export.Exporter satisfies it.
type PDFExporter interface {
	Export(ctx context.Context, s domain.Session) (*export.Result, error)
}

// GalleryService serves an owner's saved pitches and the public share view.
type GalleryService struct {
	store    repository.Store
	exporter PDFExporter
	uploader export.Uploader
}

type GalleryOption func(*GalleryService)

func WithExporter(e PDFExporter) GalleryOption {
	return func(s *GalleryService) {
		s.exporter = e
	}
}

// WithUploader enables presigned links for exported PDFs.
func WithUploader(u export.Uploader) GalleryOption {
	return func(s *GalleryService) {
		s.uploader = u
	}
}

func NewGalleryService(store repository.Store, opts ...GalleryOption) (*GalleryService, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	s := &GalleryService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *GalleryService) List(ctx context.Context, owner domain.User) ([]domain.Session, error) {
	sessions, err := s.store.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, newError(ErrorStore, "store_list_error", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

func (s *GalleryService) Get(ctx context.Context, owner domain.User, id string) (domain.Session, error) {
	return loadOwned(ctx, s.store, owner, id)
}

func (s *GalleryService) Rename(ctx context.Context, owner domain.User, id, name string) (domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Session{}, newError(ErrorInvalidInput, "empty_name", nil)
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		return domain.Session{}, newError(ErrorInvalidInput, "name_too_long", nil)
	}
	sess, err := loadOwned(ctx, s.store, owner, id)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.Rename(ctx, sess.ID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, newError(ErrorNotFound, "session_not_found", err)
		}
		return domain.Session{}, newError(ErrorStore, "store_rename_error", err)
	}
	sess.DisplayName = name
	return sess, nil
}

// Delete removes an owned session. A missing session is not an error.
func (s *GalleryService) Delete(ctx context.Context, owner domain.User, id string) error {
	sess, err := loadOwned(ctx, s.store, owner, id)
	if err != nil {
		var ue *Error
		if errors.As(err, &ue) && ue.Code == ErrorNotFound {
			return nil
		}
		return err
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		return newError(ErrorStore, "store_delete_error", err)
	}
	return nil
}

// ShareView is the public rendering of a session's latest answer.
type ShareView struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Idea    string      `json:"idea"`
	Text    string      `json:"text"`
	Landing string      `json:"landingCode,omitempty"`
	Tone    domain.Tone `json:"tone"`
}

// Share loads any session by id without access control.
func (s *GalleryService) Share(ctx context.Context, id string) (ShareView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ShareView{}, newError(ErrorNotFound, "session_not_found", nil)
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ShareView{}, newError(ErrorNotFound, "session_not_found", err)
		}
		return ShareView{}, newError(ErrorStore, "store_read_error", err)
	}
	latest, ok := sess.LatestAnswer()
	if !ok {
		return ShareView{}, newError(ErrorNotFound, "no_answer", nil)
	}
	v := ShareView{
		ID:    sess.ID,
		Title: sess.Title(),
		Idea:  sess.Idea(),
		Text:  render.PlainText(latest.Text),
		Tone:  sess.Tone,
	}
	if latest.HasLanding() {
		v.Landing = *latest.LandingMarkup
	}
	return v, nil
}

// ShareMessage is the text the share view shows in place of a pitch when
// err is set.
func ShareMessage(err error) string {
	var ue *Error
	if errors.As(err, &ue) && ue.Code == ErrorNotFound {
		return ShareNotFound
	}
	return ShareLoadFailed
}

type ExportOutput struct {
	Result *export.Result
	// URL is set when the PDF was uploaded.
	URL string
}

// Export prints an owned session to PDF, uploading it when upload is set and
// an uploader is configured.
func (s *GalleryService) Export(ctx context.Context, owner domain.User, id string, upload bool) (ExportOutput, error) {
	if s.exporter == nil {
		return ExportOutput{}, newError(ErrorInternal, "export_disabled", nil)
	}
	sess, err := loadOwned(ctx, s.store, owner, id)
	if err != nil {
		return ExportOutput{}, err
	}
	res, err := s.exporter.Export(ctx, sess)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNothingToExport):
			return ExportOutput{}, newError(ErrorInvalidInput, "nothing_to_export", err)
		case errors.Is(err, export.ErrPDFDependencyMissing):
			return ExportOutput{}, newError(ErrorInternal, "pdf_dependency_missing", err)
		default:
			return ExportOutput{}, newError(ErrorInternal, "pdf_render_error", err)
		}
	}
	out := ExportOutput{Result: res}
	if upload && s.uploader != nil {
		key := owner.ID + "/" + res.Filename
		url, err := s.uploader.Upload(ctx, key, res.Data, res.MimeType)
		if err != nil {
			slog.WarnContext(ctx, "pdf upload failed", "session_id", sess.ID, "owner_id", owner.ID, "err", err)
			return ExportOutput{}, newError(ErrorStore, "upload_error", err)
		}
		out.URL = url
	}
	return out, nil
}
