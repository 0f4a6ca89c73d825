package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/repository"
)

// Store decorates a repository.Store: every successful write publishes a
// change for the affected owner.
type Store struct {
	repository.Store
	notifier Notifier
}

var _ repository.Store = (*Store)(nil)

func New(inner repository.Store, notifier Notifier) *Store {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &Store{Store: inner, notifier: notifier}
}

func (s *Store) Create(ctx context.Context, ownerID string, turns []domain.Turn, tone domain.Tone) (string, error) {
	id, err := s.Store.Create(ctx, ownerID, turns, tone)
	if err != nil {
		return "", err
	}
	s.publish(ctx, ownerID)
	return id, nil
}

func (s *Store) Update(ctx context.Context, id string, version int64, turns []domain.Turn, tone domain.Tone) (int64, error) {
	next, err := s.Store.Update(ctx, id, version, turns, tone)
	if err != nil {
		return 0, err
	}
	s.publishFor(ctx, id)
	return next, nil
}

func (s *Store) Rename(ctx context.Context, id, displayName string) error {
	if err := s.Store.Rename(ctx, id, displayName); err != nil {
		return err
	}
	s.publishFor(ctx, id)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	sess, getErr := s.Store.Get(ctx, id)
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	if getErr == nil {
		s.publish(ctx, sess.OwnerID)
	}
	return nil
}

func (s *Store) publishFor(ctx context.Context, id string) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "live: resolve owner for change notification", "session_id", id, "err", err)
		return
	}
	s.publish(ctx, sess.OwnerID)
}

// publish never fails the write that triggered it.
func (s *Store) publish(ctx context.Context, ownerID string) {
	if err := s.notifier.Publish(ctx, ownerID); err != nil {
		slog.WarnContext(ctx, "live: publish change", "owner_id", ownerID, "err", err)
	}
}

// Subscribe delivers the owner's full session list once, then again after
// every change, until ctx ends or cancel is called. onChange runs on one
// goroutine at a time.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onChange func([]domain.Session)) (cancel func(), err error) {
	if ownerID == "" {
		return nil, errors.New("live: owner id is required")
	}
	if onChange == nil {
		return nil, errors.New("live: onChange must not be nil")
	}

	subCtx, cancelCtx := context.WithCancel(ctx)
	signals, stop, err := s.notifier.Subscribe(subCtx, ownerID)
	if err != nil {
		cancelCtx()
		return nil, err
	}

	sessions, err := s.Store.ListByOwner(subCtx, ownerID)
	if err != nil {
		stop()
		cancelCtx()
		return nil, fmt.Errorf("live: initial list: %w", err)
	}
	onChange(sessions)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				sessions, err := s.Store.ListByOwner(subCtx, ownerID)
				if err != nil {
					if subCtx.Err() != nil {
						return
					}
					slog.WarnContext(subCtx, "live: refresh owner list", "owner_id", ownerID, "err", err)
					continue
				}
				onChange(sessions)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelCtx()
			stop()
			<-done
		})
	}, nil
}
