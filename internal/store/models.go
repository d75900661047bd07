// models.go -- Shared domain types for the store package.
// Used by the memory and Redis handshake stores and the Postgres audit log.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/gofrs/uuid/v5"
)

// ErrNotFound is returned when no record exists for the key (never written, taken, or expired).
// Callers use errors.Is to distinguish a miss from an infrastructure failure.
var ErrNotFound = errors.New("not found")

// ErrTicketExpired is returned by Ticket when the ticket exists but is older than TicketTTL.
var ErrTicketExpired = errors.New("ticket expired")

// errNoKey is returned when a record is written without the id it is keyed by.
var errNoKey = errors.New("record has no key")

// TicketTTL is how long a prompt's buttons stay usable.
const TicketTTL = 10 * time.Minute

// ticketRetention keeps expired tickets around long enough to report them as expired.
const ticketRetention = 2 * TicketTTL

// PendingHandshake is the per-conversation record linking an issued magic code to its token.
// At most one exists per conversation; issuing a new code overwrites the old one.
type PendingHandshake struct {
	ConversationID string         `json:"conversation_id"`
	CodeIssued     bool           `json:"code_issued"`
	MagicCode      string         `json:"magic_code"`
	AccessToken    string         `json:"access_token"`
	Profile        *oauth.Profile `json:"profile,omitempty"`
	Provider       provider.ID    `json:"provider"`
	IssuedAt       time.Time      `json:"issued_at"`
}

// Ticket binds one browser authorization flow to the conversation that rendered the prompt.
// Its ID travels through the provider as the OAuth state value.
type Ticket struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Provider       provider.ID `json:"provider,omitempty"` // set once the user picks a button
	CreatedAt      time.Time   `json:"created_at"`
}

// Expired reports whether t is past TicketTTL at now.
func (t Ticket) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > TicketTTL
}

// AuditEntry represents a row in the handshake_audit_logs table.
// Metadata is raw JSON; nil means SQL NULL. Tokens and codes are never recorded.
type AuditEntry struct {
	ID             uuid.UUID
	ConversationID string
	Provider       provider.ID
	Action         string
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

// Audit actions.
const (
	ActionPrompted       = "handshake.prompted"
	ActionCodeIssued     = "handshake.code_issued"
	ActionSucceeded      = "handshake.succeeded"
	ActionMismatch       = "handshake.mismatch"
	ActionExchangeFailed = "handshake.exchange_failed"
)
