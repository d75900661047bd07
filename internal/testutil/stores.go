// stores.go
//
// Shared mock implementations of handshake.Store and handshake.AuditLog.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"

	"github.com/MGallo-Code/botauth/internal/store"
)

// MockStore implements handshake.Store for tests.

// Always stateful...Pending and Tickets are maps, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockStore struct {
	// Error injection...zero value means no error
	PendingErr    error
	IssueErr      error
	TakeErr       error
	SaveTicketErr error
	TicketErr     error
	HealthErr     error

	Handshakes map[string]store.PendingHandshake // keyed by conversation id
	Tickets    map[string]store.Ticket           // keyed by ticket id

	// Call counters
	Takes  int
	Issues int

	mu sync.Mutex
}

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		Handshakes: make(map[string]store.PendingHandshake),
		Tickets:    make(map[string]store.Ticket),
	}
}

func (m *MockStore) Pending(_ context.Context, conversationID string) (*store.PendingHandshake, error) {
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Handshakes[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *MockStore) Issue(_ context.Context, p store.PendingHandshake) error {
	if m.IssueErr != nil {
		return m.IssueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Issues++
	m.Handshakes[p.ConversationID] = p
	return nil
}

func (m *MockStore) Take(_ context.Context, conversationID string) (*store.PendingHandshake, error) {
	if m.TakeErr != nil {
		return nil, m.TakeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Takes++
	p, ok := m.Handshakes[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(m.Handshakes, conversationID)
	return &p, nil
}

func (m *MockStore) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Handshakes, conversationID)
	return nil
}

func (m *MockStore) SaveTicket(_ context.Context, t store.Ticket) error {
	if m.SaveTicketErr != nil {
		return m.SaveTicketErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tickets[t.ID] = t
	return nil
}

func (m *MockStore) Ticket(_ context.Context, id string) (*store.Ticket, error) {
	if m.TicketErr != nil {
		return nil, m.TicketErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *MockStore) CheckHealth(_ context.Context) error { return m.HealthErr }

// LatestTicket returns any ticket for conversationID. Tests usually mint one per prompt.
func (m *MockStore) LatestTicket(conversationID string) (store.Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest store.Ticket
	found := false
	for _, t := range m.Tickets {
		if t.ConversationID == conversationID && (!found || t.CreatedAt.After(latest.CreatedAt)) {
			latest, found = t, true
		}
	}
	return latest, found
}

// MockAuditLog records audit entries in memory.
type MockAuditLog struct {
	Err     error
	Entries []store.AuditEntry
	mu      sync.Mutex
}

func (m *MockAuditLog) InsertAuditLog(_ context.Context, e store.AuditEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

// Actions returns the recorded actions in order.
func (m *MockAuditLog) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}
