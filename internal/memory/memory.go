// Package memory provides an in-process interaction history store used when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/knoguchi/prodsearch/internal/repository"
)

// history holds the interactions for one user, oldest first.
type history struct {
	events    []repository.Interaction
	updatedAt time.Time
}

// Store provides in-memory interaction storage.
// For production, point DATABASE_URL at PostgreSQL instead.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*history
	maxEvents int           // Max interactions kept per user
	ttl       time.Duration // Idle time after which a user's history is dropped
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewStore creates a new interaction store.
func NewStore(maxEvents int, ttl time.Duration) *Store {
	s := &Store{
		users:     make(map[string]*history),
		maxEvents: maxEvents,
		ttl:       ttl,
		now:       time.Now,
		stop:      make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// DefaultStore creates a store with sensible defaults.
// - Max 200 interactions per user
// - 24 hour TTL
func DefaultStore() *Store {
	return NewStore(200, 24*time.Hour)
}

// Create appends an interaction to the user's history.
func (s *Store) Create(_ context.Context, in *repository.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.users[in.UserID]
	if !exists {
		h = &history{}
		s.users[in.UserID] = h
	}

	h.events = append(h.events, *in)
	h.updatedAt = s.now()

	// Trim old events if exceeding max (keep recent ones)
	if len(h.events) > s.maxEvents {
		h.events = h.events[len(h.events)-s.maxEvents:]
	}
	return nil
}

// ListByUser returns up to limit interactions for a user, newest first.
// Returns nil if the user has no history.
func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]*repository.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.users[userID]
	if !exists {
		return nil, nil
	}

	n := len(h.events)
	if limit > 0 && limit < n {
		n = limit
	}

	// Copies, so callers never alias stored events
	out := make([]*repository.Interaction, 0, n)
	for i := len(h.events) - 1; i >= 0 && len(out) < n; i-- {
		in := h.events[i]
		out = append(out, &in)
	}
	return out, nil
}

// Close stops the background cleanup.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// cleanupLoop periodically removes idle histories.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, h := range s.users {
		if now.Sub(h.updatedAt) > s.ttl {
			delete(s.users, id)
		}
	}
}

var _ repository.InteractionRepository = (*Store)(nil)
