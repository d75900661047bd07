// memory.go -- In-process handshake store backed by go-cache.
//
// Default backend for a single coordinator process. Records disappear on
// restart, which is acceptable: an abandoned handshake just prompts again.
package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps pending handshakes and tickets in memory with per-item TTLs.
// Safe for concurrent use.
type MemoryStore struct {
	// mu serialises writes to pending handshakes so Take is a single
	// read-and-delete step relative to Issue and Clear.
	mu         sync.Mutex
	cache      *gocache.Cache
	pendingTTL time.Duration
}

// NewMemoryStore returns a store whose pending handshakes expire after pendingTTL.
func NewMemoryStore(pendingTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		cache:      gocache.New(pendingTTL, time.Minute),
		pendingTTL: pendingTTL,
	}
}

func pendingKey(conversationID string) string { return "pending:" + conversationID }
func ticketKey(id string) string              { return "ticket:" + id }

// Pending returns the conversation's handshake, or ErrNotFound.
func (s *MemoryStore) Pending(ctx context.Context, conversationID string) (*PendingHandshake, error) {
	v, ok := s.cache.Get(pendingKey(conversationID))
	if !ok {
		return nil, ErrNotFound
	}
	p := v.(PendingHandshake)
	return &p, nil
}

// Issue stores p, replacing any earlier handshake for the same conversation.
func (s *MemoryStore) Issue(ctx context.Context, p PendingHandshake) error {
	if p.ConversationID == "" {
		return errNoKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(pendingKey(p.ConversationID), p, s.pendingTTL)
	return nil
}

// Take returns and removes the conversation's handshake in one step, or ErrNotFound.
// Of two concurrent callers at most one gets the record.
func (s *MemoryStore) Take(ctx context.Context, conversationID string) (*PendingHandshake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey(conversationID)
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	s.cache.Delete(key)
	p := v.(PendingHandshake)
	return &p, nil
}

// Clear removes the conversation's handshake. Clearing a missing record is not an error.
func (s *MemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(pendingKey(conversationID))
	return nil
}

// SaveTicket stores or updates t.
func (s *MemoryStore) SaveTicket(ctx context.Context, t Ticket) error {
	if t.ID == "" {
		return errNoKey
	}
	s.cache.Set(ticketKey(t.ID), t, ticketRetention)
	return nil
}

// Ticket returns the ticket with id, ErrNotFound, or ErrTicketExpired.
func (s *MemoryStore) Ticket(ctx context.Context, id string) (*Ticket, error) {
	v, ok := s.cache.Get(ticketKey(id))
	if !ok {
		return nil, ErrNotFound
	}
	t := v.(Ticket)
	if t.Expired(time.Now()) {
		return nil, ErrTicketExpired
	}
	return &t, nil
}

// CheckHealth always succeeds; there is nothing external to ping.
func (s *MemoryStore) CheckHealth(ctx context.Context) error { return nil }
