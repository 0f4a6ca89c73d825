package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchcraft/internal/domain"
)

// MemoryStore keeps documents in process memory. Used for local runs and
// tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]domain.PitchDocument
	opts options
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{docs: make(map[string]domain.PitchDocument), opts: o}
}

func defaultOptions() options {
	return options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Put stores a raw document as-is, including legacy shapes.
func (m *MemoryStore) Put(doc domain.PitchDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.Turns = domain.CloneTurns(doc.Turns)
	m.docs[doc.ID] = doc
}

func (m *MemoryStore) Create(_ context.Context, ownerID string, turns []domain.Turn, tone domain.Tone) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("repository: Create: owner id is required")
	}
	doc := domain.NewDocument(ownerID, turns, tone, m.opts.now())
	doc.ID = m.opts.newID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return "", fmt.Errorf("repository: Create: id %q already exists", doc.ID)
	}
	m.docs[doc.ID] = doc
	return doc.ID, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, version int64, turns []domain.Turn, tone domain.Tone) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return 0, ErrNotFound
	}
	if doc.Version != version {
		return 0, ErrVersionConflict
	}
	doc.Turns = domain.CloneTurns(turns)
	doc.Tone = tone
	doc.UpdatedAt = m.opts.now()
	doc.Idea = ""
	doc.Response, doc.LandingCode = domain.DerivedFields(turns)
	doc.Version++
	m.docs[id] = doc
	return doc.Version, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return doc.Session(), nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Session, 0)
	for _, doc := range m.docs {
		if doc.UID == ownerID {
			out = append(out, doc.Session())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) Rename(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.CustomName = displayName
	m.docs[id] = doc
	return nil
}
