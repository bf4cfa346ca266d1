package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renkeyss/cch-bot/internal/model/exchange"
)

var ErrUserRequired = errors.New("user id is required")

// DefaultMemoryLimit caps how many exchanges MemoryRecorder keeps per user.
const DefaultMemoryLimit = 50

// Recorder persists relayed exchanges.
type Recorder interface {
	Record(ctx context.Context, entry exchange.Exchange) error
	Recent(ctx context.Context, userID string, limit int) ([]exchange.Exchange, error)
}

// MemoryRecorder keeps the latest exchanges of every user in process memory.
type MemoryRecorder struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]exchange.Exchange
}

// NewMemoryRecorder returns a recorder that retains at most limit exchanges per user.
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryRecorder{
		limit:   limit,
		entries: make(map[string][]exchange.Exchange),
	}
}

// Record stores entry, evicting the oldest exchange of the user when full.
func (r *MemoryRecorder) Record(_ context.Context, entry exchange.Exchange) error {
	if entry.UserID == "" {
		return ErrUserRequired
	}
	entry = stamp(entry)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.entries[entry.UserID], entry)
	if len(list) > r.limit {
		list = append([]exchange.Exchange(nil), list[len(list)-r.limit:]...)
	}
	r.entries[entry.UserID] = list
	return nil
}

// Recent returns up to limit exchanges of the user, newest first.
func (r *MemoryRecorder) Recent(_ context.Context, userID string, limit int) ([]exchange.Exchange, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.entries[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	recent := make([]exchange.Exchange, 0, limit)
	for i := len(list) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, list[i])
	}
	return recent, nil
}

func stamp(entry exchange.Exchange) exchange.Exchange {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return entry
}
