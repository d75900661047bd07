// Package handshake bridges an out-of-band OAuth callback back into a
// text-only conversation using short-lived magic codes.
//
// coordinator.go -- Per-turn authentication gate.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MGallo-Code/botauth/internal/card"
	"github.com/MGallo-Code/botauth/internal/conversation"
	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/MGallo-Code/botauth/internal/store"
)

// InvalidCodeMessage is sent before re-prompting when a code does not match
// and no OnLoginFailure callback is configured.
const InvalidCodeMessage = "Invalid code. Please try again"

// ErrCodeMismatch is returned by CheckCode when the submitted text is not the issued code.
var ErrCodeMismatch = errors.New("magic code mismatch")

// ErrUnknownProvider is returned when a route names a provider that is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrInvalidTicket is returned when a flow references a ticket that does not exist.
var ErrInvalidTicket = errors.New("invalid ticket")

// ErrProviderMismatch is returned when a callback completes for a different provider than the ticket chose.
var ErrProviderMismatch = errors.New("ticket belongs to another provider")

// ErrBaseURLUnknown is returned before the host has learned its public base URL.
var ErrBaseURLUnknown = errors.New("base url not yet known")

// AuthorizationURI is one provider's entry point for a prompt.
type AuthorizationURI = card.AuthorizationURI

// Store holds pending handshakes and tickets.
// Satisfied by *store.MemoryStore and *store.RedisStore -- defined here (at consumer) per Go convention.
type Store interface {
	// Pending returns the conversation's handshake or store.ErrNotFound.
	Pending(ctx context.Context, conversationID string) (*store.PendingHandshake, error)

	// Issue writes a handshake, replacing any earlier one for the conversation.
	Issue(ctx context.Context, p store.PendingHandshake) error

	// Take reads and removes the conversation's handshake atomically.
	Take(ctx context.Context, conversationID string) (*store.PendingHandshake, error)

	// Clear removes the conversation's handshake.
	Clear(ctx context.Context, conversationID string) error

	// SaveTicket stores or updates a ticket.
	SaveTicket(ctx context.Context, t store.Ticket) error

	// Ticket returns a ticket, store.ErrNotFound or store.ErrTicketExpired.
	Ticket(ctx context.Context, id string) (*store.Ticket, error)

	// CheckHealth reports whether the backend is reachable.
	CheckHealth(ctx context.Context) error
}

// AuditLog records handshake outcomes. Satisfied by *store.PostgresStore.
type AuditLog interface {
	InsertAuditLog(ctx context.Context, e store.AuditEntry) error
}

// Recorder counts handshake events. Satisfied by *metrics.Metrics.
type Recorder interface {
	Handshake(outcome string, p provider.ID)
	Exchange(p provider.ID, err error, d time.Duration)
}

// BaseURLSource reports the public base URL once the host knows it.
type BaseURLSource interface {
	BaseURL() (string, bool)
}

// StaticBaseURL is a BaseURLSource known up front.
type StaticBaseURL string

// BaseURL returns s, known when non-empty.
func (s StaticBaseURL) BaseURL() (string, bool) { return string(s), s != "" }

// ClientBuilder constructs provider clients for a base URL. (*oauth.Factory).Build satisfies it.
type ClientBuilder func(reg *provider.Registry, baseURL string) map[provider.ID]oauth.Client

// Options are the caller's hooks and knobs.
type Options struct {
	// IsUserAuthenticated decides whether the turn may pass straight through. Required.
	IsUserAuthenticated func(ctx context.Context, tc conversation.TurnContext) (bool, error)

	// OnLoginSuccess receives the token once the user types the right code. Required.
	OnLoginSuccess func(ctx context.Context, tc conversation.TurnContext, accessToken string, profile *oauth.Profile, p provider.ID) error

	// OnLoginFailure replaces the built-in "invalid code" reply when set.
	OnLoginFailure func(ctx context.Context, tc conversation.TurnContext, p provider.ID) error

	// NoUserFoundMessage is sent before the first prompt when non-empty.
	NoUserFoundMessage string

	// CustomAuthenticationCardGenerator replaces the default provider card entirely.
	CustomAuthenticationCardGenerator func(ctx context.Context, tc conversation.TurnContext, uris []AuthorizationURI) (*conversation.Message, error)

	// CustomMagicCodeRedirectEndpoint receives the code as ?magicCode= instead of the plain text page.
	CustomMagicCodeRedirectEndpoint string

	// MagicCodeBytes sets the random length of a code. Zero means MinMagicCodeBytes.
	MagicCodeBytes int
}

// Deps are the collaborators a Coordinator needs.
type Deps struct {
	Registry *provider.Registry
	Store    Store
	Clients  ClientBuilder
	BaseURL  BaseURLSource
	Audit    AuditLog // optional
	Metrics  Recorder // optional
}

// Coordinator runs the handshake: it gates turns, prompts, accepts provider
// callbacks and validates codes. Safe for concurrent use.
type Coordinator struct {
	opts     Options
	registry *provider.Registry
	store    Store
	build    ClientBuilder
	baseURL  BaseURLSource
	audit    AuditLog
	metrics  Recorder
	now      func() time.Time

	// Clients are built on first use, once the base URL is known.
	mu          sync.Mutex
	clients     map[provider.ID]oauth.Client
	clientsBase string
}

// New validates opts and deps and returns a ready Coordinator.
func New(opts Options, deps Deps) (*Coordinator, error) {
	if opts.IsUserAuthenticated == nil {
		return nil, errors.New("handshake: IsUserAuthenticated is required")
	}
	if opts.OnLoginSuccess == nil {
		return nil, errors.New("handshake: OnLoginSuccess is required")
	}
	if opts.MagicCodeBytes == 0 {
		opts.MagicCodeBytes = MinMagicCodeBytes
	}
	if opts.MagicCodeBytes < MinMagicCodeBytes {
		return nil, fmt.Errorf("handshake: MagicCodeBytes must be at least %d", MinMagicCodeBytes)
	}
	if deps.Store == nil {
		return nil, errors.New("handshake: store is required")
	}
	if deps.Registry == nil {
		deps.Registry = provider.NewRegistry()
	}
	if deps.Clients == nil {
		deps.Clients = (&oauth.Factory{}).Build
	}
	if deps.BaseURL == nil {
		return nil, errors.New("handshake: base url source is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}

	return &Coordinator{
		opts:     opts,
		registry: deps.Registry,
		store:    deps.Store,
		build:    deps.Clients,
		baseURL:  deps.BaseURL,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		now:      time.Now,
	}, nil
}

// OnTurn is the conversation middleware entry point.
//
// Non-message activities and authenticated users continue to next. Otherwise
// the turn ends here: with a prompt if no code is waiting, or with code
// validation if one is.
func (c *Coordinator) OnTurn(ctx context.Context, tc conversation.TurnContext, next func(context.Context) error) error {
	act := tc.Activity()
	if act == nil || act.Type != conversation.TypeMessage {
		return next(ctx)
	}

	ok, err := c.opts.IsUserAuthenticated(ctx, tc)
	if err != nil {
		return fmt.Errorf("checking authentication: %w", err)
	}
	if ok {
		return next(ctx)
	}

	p, err := c.store.Pending(ctx, act.ConversationID)
	switch {
	case err == nil && p.CodeIssued:
		return c.validate(ctx, tc)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		slog.Warn("reading pending handshake failed, prompting", "conversation_id", act.ConversationID, "error", err)
	}
	return c.prompt(ctx, tc, c.opts.NoUserFoundMessage)
}

// validate consumes the pending handshake and compares the turn's text to its code.
// The record is gone before any callback runs, so a code can never be replayed.
func (c *Coordinator) validate(ctx context.Context, tc conversation.TurnContext) error {
	act := tc.Activity()
	p, err := c.store.Take(ctx, act.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		// Taken by a concurrent turn or expired since Pending.
		return c.prompt(ctx, tc, "")
	}
	if err != nil {
		return fmt.Errorf("taking pending handshake: %w", err)
	}

	if err := CheckCode(act.Text, p.MagicCode); err == nil {
		c.metrics.Handshake("succeeded", p.Provider)
		c.record(ctx, store.AuditEntry{ConversationID: act.ConversationID, Provider: p.Provider, Action: store.ActionSucceeded})
		slog.Info("handshake succeeded", "conversation_id", act.ConversationID, "provider", p.Provider)
		return c.opts.OnLoginSuccess(ctx, tc, p.AccessToken, p.Profile, p.Provider)
	}

	c.metrics.Handshake("mismatch", p.Provider)
	c.record(ctx, store.AuditEntry{ConversationID: act.ConversationID, Provider: p.Provider, Action: store.ActionMismatch})
	slog.Info("magic code mismatch", "conversation_id", act.ConversationID, "provider", p.Provider)

	if c.opts.OnLoginFailure != nil {
		return c.opts.OnLoginFailure(ctx, tc, p.Provider)
	}
	return c.prompt(ctx, tc, InvalidCodeMessage)
}

// prompt sends notice (if any) followed by the authentication card.
func (c *Coordinator) prompt(ctx context.Context, tc conversation.TurnContext, notice string) error {
	msg, err := c.AuthenticationCard(ctx, tc)
	if err != nil {
		return fmt.Errorf("building authentication card: %w", err)
	}

	var msgs []*conversation.Message
	if notice != "" {
		msgs = append(msgs, conversation.Text(notice))
	}
	msgs = append(msgs, msg)

	c.metrics.Handshake("prompted", "")
	c.record(ctx, store.AuditEntry{ConversationID: tc.Activity().ConversationID, Action: store.ActionPrompted})
	return tc.SendActivities(ctx, msgs...)
}

// AuthenticationCard mints a ticket for the turn's conversation and renders the prompt,
// through the custom generator when one is configured.
func (c *Coordinator) AuthenticationCard(ctx context.Context, tc conversation.TurnContext) (*conversation.Message, error) {
	uris, err := c.AuthorizationURIs(ctx, tc.Activity().ConversationID)
	if err != nil {
		return nil, err
	}
	if c.opts.CustomAuthenticationCardGenerator != nil {
		return c.opts.CustomAuthenticationCardGenerator(ctx, tc, uris)
	}
	return card.Build(uris, c.registry.ButtonText), nil
}

// record writes an audit entry when an audit log is configured. Failures are logged only.
func (c *Coordinator) record(ctx context.Context, e store.AuditEntry) {
	if c.audit == nil {
		return
	}
	if err := c.audit.InsertAuditLog(ctx, e); err != nil {
		slog.Warn("failed to write audit log", "action", e.Action, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) Handshake(string, provider.ID)              {}
func (nopRecorder) Exchange(provider.ID, error, time.Duration) {}
