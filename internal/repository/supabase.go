package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/supabase-community/postgrest-go"

	"pitchcraft/internal/domain"
)

// DefaultTable is the collection every driver stores pitches in.
const DefaultTable = "pitches"

// postgrestAPI is satisfied by *supabase.Client and *postgrest.Client.
type postgrestAPI interface {
	From(table string) *postgrest.QueryBuilder
}

// SupabaseStore keeps pitches in a PostgREST table whose columns mirror the
// document field names.
type SupabaseStore struct {
	db    postgrestAPI
	table string
	opts  options
}

var _ Store = (*SupabaseStore)(nil)

func NewSupabaseStore(db postgrestAPI, table string, opts ...Option) (*SupabaseStore, error) {
	if db == nil {
		return nil, errors.New("repository: postgrest client must not be nil")
	}
	if table == "" {
		table = DefaultTable
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SupabaseStore{db: db, table: table, opts: o}, nil
}

type updateRow struct {
	Turns       []domain.Turn `json:"turns"`
	Tone        domain.Tone   `json:"tone"`
	Response    string        `json:"response"`
	LandingCode string        `json:"landingCode"`
	Idea        *string       `json:"idea"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Version     int64         `json:"version"`
}

type renameRow struct {
	CustomName string `json:"customName"`
}

func (s *SupabaseStore) Create(_ context.Context, ownerID string, turns []domain.Turn, tone domain.Tone) (string, error) {
	if ownerID == "" {
		return "", errors.New("repository: Create: owner id is required")
	}
	doc := domain.NewDocument(ownerID, turns, tone, s.opts.now())
	doc.ID = s.opts.newID()

	var rows []domain.PitchDocument
	_, err := s.db.From(s.table).
		Insert(doc, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("repository: Create: %w", err)
	}
	if len(rows) > 0 && rows[0].ID != "" {
		return rows[0].ID, nil
	}
	return doc.ID, nil
}

// Update filters on the version the caller read, so a row that moved on
// matches nothing. A follow-up read tells that apart from a missing row.
func (s *SupabaseStore) Update(ctx context.Context, id string, version int64, turns []domain.Turn, tone domain.Tone) (int64, error) {
	next := version + 1
	row := updateRow{
		Turns:     domain.CloneTurns(turns),
		Tone:      tone,
		UpdatedAt: s.opts.now(),
		Version:   next,
	}
	if row.Turns == nil {
		row.Turns = []domain.Turn{}
	}
	row.Response, row.LandingCode = domain.DerivedFields(turns)

	query := s.db.From(s.table).
		Update(row, "representation", "").
		Eq("id", id)
	if version > 0 {
		query = query.Eq("version", strconv.FormatInt(version, 10))
	} else {
		query = query.Is("version", "null")
	}
	var rows []domain.PitchDocument
	if _, err := query.ExecuteTo(&rows); err != nil {
		return 0, fmt.Errorf("repository: Update: %w", err)
	}
	if len(rows) > 0 {
		return next, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return 0, fmt.Errorf("repository: Update: %w", err)
	}
	return 0, fmt.Errorf("repository: Update: %w", ErrVersionConflict)
}

func (s *SupabaseStore) Get(_ context.Context, id string) (domain.Session, error) {
	var rows []domain.PitchDocument
	_, err := s.db.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Get: %w", err)
	}
	if len(rows) == 0 {
		return domain.Session{}, ErrNotFound
	}
	return rows[0].Session(), nil
}

// ListByOwner orders by createdAt on the server and falls back to an
// unordered select plus a client-side sort when ordering is rejected.
func (s *SupabaseStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Session, error) {
	var rows []domain.PitchDocument
	_, err := s.db.From(s.table).
		Select("*", "", false).
		Eq("uid", ownerID).
		Order("createdAt", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err == nil {
		return documentsToSessions(rows), nil
	}

	slog.WarnContext(ctx, "ordered owner query failed; falling back to unordered select", "owner_id", ownerID, "err", err)
	rows = nil
	if _, err := s.db.From(s.table).
		Select("*", "", false).
		Eq("uid", ownerID).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("repository: ListByOwner: %w", err)
	}
	sessions := documentsToSessions(rows)
	sortNewestFirst(sessions)
	return sessions, nil
}

func (s *SupabaseStore) Delete(_ context.Context, id string) error {
	var rows []domain.PitchDocument
	_, err := s.db.From(s.table).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func (s *SupabaseStore) Rename(_ context.Context, id, displayName string) error {
	var rows []domain.PitchDocument
	_, err := s.db.From(s.table).
		Update(renameRow{CustomName: displayName}, "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("repository: Rename: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("repository: Rename: %w", ErrNotFound)
	}
	return nil
}

func documentsToSessions(rows []domain.PitchDocument) []domain.Session {
	sessions := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.Session())
	}
	return sessions
}
