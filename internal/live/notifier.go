// Package live fans out owner-scoped change notifications for the pitches
// collection and turns them into full-set re-deliveries.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "the owner's pitches changed" signals. Signals carry no
// payload; subscribers re-query.
type Notifier interface {
	Publish(ctx context.Context, ownerID string) error
	// Subscribe returns a channel that receives at least one value after each
	// Publish for ownerID. Bursts may coalesce. stop releases the subscription
	// and closes the channel.
	Subscribe(ctx context.Context, ownerID string) (signals <-chan struct{}, stop func(), err error)
}

// Channel returns the pub/sub channel name for an owner.
func Channel(ownerID string) string {
	return "pitches:owner:" + ownerID
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ---------------------------------------------------------------------------
// LocalNotifier
// ---------------------------------------------------------------------------

// LocalNotifier fans out within one process.
type LocalNotifier struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]chan struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, ownerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[ownerID] {
		signal(ch)
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, ownerID string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	if n.subs[ownerID] == nil {
		n.subs[ownerID] = make(map[int]chan struct{})
	}
	n.subs[ownerID][id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[ownerID], id)
			if len(n.subs[ownerID]) == 0 {
				delete(n.subs, ownerID)
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

// ---------------------------------------------------------------------------
// RedisNotifier
// ---------------------------------------------------------------------------

// RedisNotifier publishes over Redis pub/sub so every process serving the
// owner sees the change.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects to redisURL and verifies the connection.
func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisNotifier{client: client}, nil
}

// NewRedisNotifierWithClient wraps an existing client.
func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, ownerID string) error {
	if err := n.client.Publish(ctx, Channel(ownerID), "changed").Err(); err != nil {
		return fmt.Errorf("live: publish: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, ownerID string) (<-chan struct{}, func(), error) {
	ps := n.client.Subscribe(ctx, Channel(ownerID))
	// Wait for the subscription confirmation so no publish is missed after
	// Subscribe returns.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("live: subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				slog.Warn("live: close redis subscription", "owner_id", ownerID, "err", err)
			}
		})
	}
	return out, stop, nil
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
