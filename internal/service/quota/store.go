package quota

import (
	"sync"
	"time"
)

const (
	// DefaultDailyLimit is the number of forwarded questions a user gets per window.
	DefaultDailyLimit = 10
	// Window is how long a user's counter lives before it is lazily reset.
	Window = 24 * time.Hour
)

// UserQuota is the per-user counter and the deadline at which it resets.
type UserQuota struct {
	UserID  string    `json:"userId"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// Reservation is the outcome of CheckAndReserve.
type Reservation struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Usage is a read-only view of a user's quota.
type Usage struct {
	UserQuota
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Stats aggregates quota usage across users in their current windows.
type Stats struct {
	Users     int
	Exhausted int
	Reserved  int
}

type entry struct {
	mu    sync.Mutex
	quota UserQuota
}

// Store keeps one counter per user for the lifetime of the process.
// Each user has its own lock, so operations for different users never block each other.
type Store struct {
	limit   int
	entries sync.Map // user id -> *entry
	now     func() time.Time
}

// NewStore creates a Store enforcing limit reservations per user per Window.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Store{
		limit: limit,
		now:   time.Now,
	}
}

// Limit returns the configured daily limit.
func (s *Store) Limit() int {
	return s.limit
}

// CheckAndReserve atomically checks the user's quota and consumes one slot if any is left.
// An expired window is reset before the limit is evaluated. A denied call never increments.
func (s *Store) CheckAndReserve(userID string) Reservation {
	e := s.entry(userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if e.quota.ResetAt.IsZero() || !now.Before(e.quota.ResetAt) {
		e.quota.Count = 0
		e.quota.ResetAt = now.Add(Window)
	}

	if e.quota.Count >= s.limit {
		return Reservation{
			Allowed: false,
			Count:   e.quota.Count,
			ResetAt: e.quota.ResetAt,
		}
	}

	e.quota.Count++
	return Reservation{
		Allowed:   true,
		Count:     e.quota.Count,
		Remaining: s.limit - e.quota.Count,
		ResetAt:   e.quota.ResetAt,
	}
}

// Snapshot reports the user's quota as the next CheckAndReserve would see it,
// without mutating the record. The bool is false for users never seen before.
func (s *Store) Snapshot(userID string) (Usage, bool) {
	v, ok := s.entries.Load(userID)
	if !ok {
		return Usage{
			UserQuota: UserQuota{UserID: userID},
			Limit:     s.limit,
			Remaining: s.limit,
		}, false
	}
	e := v.(*entry)

	e.mu.Lock()
	q := e.quota
	e.mu.Unlock()

	if !s.now().Before(q.ResetAt) {
		q.Count = 0
	}

	remaining := s.limit - q.Count
	if remaining < 0 {
		remaining = 0
	}
	return Usage{UserQuota: q, Limit: s.limit, Remaining: remaining}, true
}

// Stats counts users whose window is still open.
func (s *Store) Stats() Stats {
	now := s.now()

	var stats Stats
	s.entries.Range(func(_, v any) bool {
		e := v.(*entry)

		e.mu.Lock()
		q := e.quota
		e.mu.Unlock()

		if !now.Before(q.ResetAt) {
			return true
		}
		stats.Users++
		stats.Reserved += q.Count
		if q.Count >= s.limit {
			stats.Exhausted++
		}
		return true
	})
	return stats
}

func (s *Store) entry(userID string) *entry {
	if v, ok := s.entries.Load(userID); ok {
		return v.(*entry)
	}
	v, _ := s.entries.LoadOrStore(userID, &entry{quota: UserQuota{UserID: userID}})
	return v.(*entry)
}
