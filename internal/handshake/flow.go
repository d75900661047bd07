// flow.go -- Browser side of the handshake: tickets, provider redirects and callbacks.
package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/MGallo-Code/botauth/internal/store"
)

// AuthorizationURIs mints a ticket for conversationID and returns one entry
// point per registered provider, in prompt order.
func (c *Coordinator) AuthorizationURIs(ctx context.Context, conversationID string) ([]AuthorizationURI, error) {
	base, ok := c.baseURL.BaseURL()
	if !ok {
		return nil, ErrBaseURLUnknown
	}
	base = strings.TrimRight(base, "/")

	id, err := GenerateTicketID()
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveTicket(ctx, store.Ticket{ID: id, ConversationID: conversationID, CreatedAt: c.now()}); err != nil {
		return nil, fmt.Errorf("saving ticket: %w", err)
	}

	descs := c.registry.Descriptors()
	uris := make([]AuthorizationURI, 0, len(descs))
	for _, d := range descs {
		uris = append(uris, AuthorizationURI{
			Provider: d.ID,
			URI:      base + "/auth/" + d.ID.Path() + "?ticket=" + url.QueryEscape(id),
		})
	}
	return uris, nil
}

// Begin records the chosen provider on the ticket and returns the provider's consent URL.
func (c *Coordinator) Begin(ctx context.Context, ticketID, providerPath string) (string, error) {
	d, ok := c.registry.ByPath(providerPath)
	if !ok {
		return "", ErrUnknownProvider
	}
	t, err := c.ticket(ctx, ticketID)
	if err != nil {
		return "", err
	}

	t.Provider = d.ID
	if err := c.store.SaveTicket(ctx, *t); err != nil {
		return "", fmt.Errorf("saving ticket: %w", err)
	}

	cl, err := c.client(d.ID)
	if err != nil {
		return "", err
	}
	return cl.Initiate(ctx, t.ID)
}

// Finish completes a provider callback and issues a magic code.
//
// providerPath names the provider for strategy routes (/auth/{provider}/callback).
// When empty, the provider is the one recorded on the ticket named by the
// "state" parameter (the shared /auth/callback route). Returns the ticket id
// and the code.
func (c *Coordinator) Finish(ctx context.Context, providerPath string, params url.Values) (string, string, error) {
	var id provider.ID
	if providerPath != "" {
		d, ok := c.registry.ByPath(providerPath)
		if !ok {
			return "", "", ErrUnknownProvider
		}
		id = d.ID
	} else {
		t, err := c.ticket(ctx, params.Get("state"))
		if err != nil {
			return "", "", err
		}
		if t.Provider == "" {
			return "", "", fmt.Errorf("%w: no provider chosen", ErrInvalidTicket)
		}
		id = t.Provider
	}

	cl, err := c.client(id)
	if err != nil {
		return "", "", err
	}

	start := c.now()
	ex, err := cl.CompleteExchange(ctx, params)
	c.metrics.Exchange(id, err, c.now().Sub(start))
	if err != nil {
		c.recordExchangeFailure(ctx, id, params.Get("state"), err)
		return "", "", err
	}

	code, err := c.Complete(ctx, ex.State, ex)
	if err != nil {
		return "", "", err
	}
	return ex.State, code, nil
}

// Complete mints a magic code for the ticket's conversation and stores it
// together with the token and profile in a single write. It sends nothing to
// the conversation.
func (c *Coordinator) Complete(ctx context.Context, ticketID string, ex *oauth.Exchange) (string, error) {
	t, err := c.ticket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if t.Provider != "" && ex.Provider != "" && t.Provider != ex.Provider {
		return "", ErrProviderMismatch
	}
	p := ex.Provider
	if p == "" {
		p = t.Provider
	}

	code, err := GenerateMagicCode(c.opts.MagicCodeBytes)
	if err != nil {
		return "", err
	}
	if err := c.store.Issue(ctx, store.PendingHandshake{
		ConversationID: t.ConversationID,
		CodeIssued:     true,
		MagicCode:      code,
		AccessToken:    ex.AccessToken,
		Profile:        ex.Profile,
		Provider:       p,
		IssuedAt:       c.now(),
	}); err != nil {
		return "", fmt.Errorf("issuing magic code: %w", err)
	}

	c.metrics.Handshake("code_issued", p)
	c.record(ctx, store.AuditEntry{ConversationID: t.ConversationID, Provider: p, Action: store.ActionCodeIssued})
	slog.Info("magic code issued", "conversation_id", t.ConversationID, "provider", p)
	return code, nil
}

// MagicCodeRedirect returns the configured custom redirect endpoint, if any.
func (c *Coordinator) MagicCodeRedirect() string {
	return c.opts.CustomMagicCodeRedirectEndpoint
}

// CheckHealth reports the store's health.
func (c *Coordinator) CheckHealth(ctx context.Context) error {
	return c.store.CheckHealth(ctx)
}

// Clear drops any pending handshake for a conversation, e.g. on logout.
func (c *Coordinator) Clear(ctx context.Context, conversationID string) error {
	return c.store.Clear(ctx, conversationID)
}

// ticket loads a ticket, mapping a miss to ErrInvalidTicket.
func (c *Coordinator) ticket(ctx context.Context, id string) (*store.Ticket, error) {
	if id == "" {
		return nil, ErrInvalidTicket
	}
	t, err := c.store.Ticket(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidTicket
	}
	if errors.Is(err, store.ErrTicketExpired) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ticket: %w", err)
	}
	return t, nil
}

// client returns the provider client, building the set on first use.
func (c *Coordinator) client(id provider.ID) (oauth.Client, error) {
	base, ok := c.baseURL.BaseURL()
	if !ok {
		return nil, ErrBaseURLUnknown
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil || c.clientsBase != base {
		c.clients = c.build(c.registry, base)
		c.clientsBase = base
	}
	cl, ok := c.clients[id]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return cl, nil
}

// recordExchangeFailure audits a failed exchange against the ticket's conversation when known.
func (c *Coordinator) recordExchangeFailure(ctx context.Context, id provider.ID, state string, err error) {
	conversationID := ""
	if t, terr := c.store.Ticket(ctx, state); terr == nil {
		conversationID = t.ConversationID
	}

	op := "exchange"
	var xerr *oauth.ExchangeError
	if errors.As(err, &xerr) {
		op = xerr.Op
	}
	meta, _ := json.Marshal(struct {
		Op string `json:"op"`
	}{op})

	c.metrics.Handshake("exchange_failed", id)
	c.record(ctx, store.AuditEntry{ConversationID: conversationID, Provider: id, Action: store.ActionExchangeFailed, Metadata: meta})
	slog.Warn("provider exchange failed", "conversation_id", conversationID, "provider", id, "error", err)
}
