package notify

import (
	"context"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/store"
)

const usersRecord = "users"

type userEntry struct {
	ChatID   string    `json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Registry holds the subscriber chat IDs.
type Registry struct {
	c  store.Collection
	mu sync.Mutex
}

func NewRegistry(c store.Collection) *Registry {
	return &Registry{c: c}
}

// Add registers a subscriber; re-adding is a no-op.
func (r *Registry) Add(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []userEntry
	if err := r.c.Load(ctx, usersRecord, &users); err != nil {
		return err
	}
	for _, u := range users {
		if u.ChatID == chatID {
			return nil
		}
	}
	users = append(users, userEntry{ChatID: chatID, JoinedAt: time.Now().UTC()})
	return r.c.Replace(ctx, usersRecord, users)
}

// All returns every subscriber chat ID.
func (r *Registry) All(ctx context.Context) ([]string, error) {
	var users []userEntry
	if err := r.c.Load(ctx, usersRecord, &users); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ChatID)
	}
	return out, nil
}

// Broadcaster fans a message out to every registered subscriber.
type Broadcaster struct {
	Sink  *Telegram
	Users *Registry
}

func (b *Broadcaster) Broadcast(ctx context.Context, text string) {
	recipients, err := b.Users.All(ctx)
	if err != nil {
		observ.LogErr("notify_users_unavailable", err, nil)
		return
	}
	b.Sink.Deliver(ctx, recipients, text)
}
