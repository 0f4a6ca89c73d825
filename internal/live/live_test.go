package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/repository"
)

func sampleTurns() []domain.Turn {
	return []domain.Turn{
		{ID: "u1", Role: domain.RoleUser, Text: "idea"},
		{ID: "a1", Role: domain.RoleAssistant, Text: "pitch", IsLatestAnswer: true},
	}
}

// recorder collects every delivery made to onChange.
type recorder struct {
	mu    sync.Mutex
	calls [][]domain.Session
}

func (r *recorder) onChange(s []domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// ---------------------------------------------------------------------------
// Notifiers
// ---------------------------------------------------------------------------

func TestChannel(t *testing.T) {
	require.Equal(t, "pitches:owner:u-1", Channel("u-1"))
}

func TestLocalNotifier_ScopedToOwner(t *testing.T) {
	n := NewLocalNotifier()
	ctx := context.Background()

	mine, stopMine, err := n.Subscribe(ctx, "me")
	require.NoError(t, err)
	other, stopOther, err := n.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer stopOther()

	require.NoError(t, n.Publish(ctx, "me"))
	require.NoError(t, n.Publish(ctx, "me"))

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-other:
		t.Fatal("other owner must not be signalled")
	default:
	}

	stopMine()
	stopMine()
	_, ok := <-mine
	require.False(t, ok, "channel closes after stop")
	require.NoError(t, n.Publish(ctx, "me"))
}

func TestRedisNotifier_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	n, err := NewRedisNotifier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer n.Close()

	ctx := context.Background()
	require.NoError(t, n.Ping(ctx))

	signals, stop, err := n.Subscribe(ctx, "owner-1")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, "owner-1"))
	select {
	case <-signals:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a redis signal")
	}

	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-signals:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRedisNotifier_BadURL(t *testing.T) {
	_, err := NewRedisNotifier("not a url")
	require.ErrorContains(t, err, "parse redis url")
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_SubscribeRedeliversFullSet(t *testing.T) {
	s := New(repository.NewMemoryStore(), NewLocalNotifier())
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := s.Subscribe(ctx, "o", rec.onChange)
	require.NoError(t, err)
	defer cancel()
	require.Equal(t, 1, rec.count())
	require.Empty(t, rec.last())

	id, err := s.Create(ctx, "o", sampleTurns(), domain.ToneFun)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() >= 2 && len(rec.last()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Rename(ctx, id, "Named"))
	require.Eventually(t, func() bool {
		l := rec.last()
		return len(l) == 1 && l[0].DisplayName == "Named"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Delete(ctx, id))
	require.Eventually(t, func() bool { return len(rec.last()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_OtherOwnersWritesDoNotDeliver(t *testing.T) {
	s := New(repository.NewMemoryStore(), NewLocalNotifier())
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := s.Subscribe(ctx, "o", rec.onChange)
	require.NoError(t, err)
	defer cancel()

	_, err = s.Create(ctx, "someone-else", sampleTurns(), domain.ToneFun)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestStore_CancelStopsDelivery(t *testing.T) {
	s := New(repository.NewMemoryStore(), NewLocalNotifier())
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := s.Subscribe(ctx, "o", rec.onChange)
	require.NoError(t, err)
	cancel()
	cancel()

	_, err = s.Create(ctx, "o", sampleTurns(), domain.ToneFun)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestStore_UpdatePublishesOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	n, err := NewRedisNotifier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer n.Close()

	inner := repository.NewMemoryStore()
	ctx := context.Background()
	id, err := inner.Create(ctx, "o", sampleTurns(), domain.ToneFun)
	require.NoError(t, err)

	// Writer and subscriber are separate decorators sharing only Redis.
	writer := New(inner, n)
	reader := New(inner, n)

	rec := &recorder{}
	cancel, err := reader.Subscribe(ctx, "o", rec.onChange)
	require.NoError(t, err)
	defer cancel()

	_, err = writer.Update(ctx, id, domain.InitialVersion, sampleTurns()[:1], domain.ToneFormal)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		l := rec.last()
		return len(l) == 1 && len(l[0].Turns) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

type failingNotifier struct{ *LocalNotifier }

func (f *failingNotifier) Publish(context.Context, string) error { return errors.New("redis down") }

func TestStore_PublishFailureDoesNotFailWrite(t *testing.T) {
	s := New(repository.NewMemoryStore(), &failingNotifier{LocalNotifier: NewLocalNotifier()})
	_, err := s.Create(context.Background(), "o", sampleTurns(), domain.ToneFun)
	require.NoError(t, err)
}

func TestStore_WriteErrorsPassThrough(t *testing.T) {
	s := New(repository.NewMemoryStore(), nil)
	_, err := s.Update(context.Background(), "missing", 1, nil, domain.ToneFun)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestStore_SubscribeValidation(t *testing.T) {
	s := New(repository.NewMemoryStore(), nil)
	_, err := s.Subscribe(context.Background(), "", func([]domain.Session) {})
	require.Error(t, err)
	_, err = s.Subscribe(context.Background(), "o", nil)
	require.Error(t, err)
}
