// oauth.go
//
// Mock oauth.Client and a recording conversation.TurnContext.
package testutil

import (
	"context"
	"net/url"
	"sync"

	"github.com/MGallo-Code/botauth/internal/conversation"
	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
)

// MockClient implements oauth.Client without any network I/O.
// Initiate returns AuthURL?state=...; CompleteExchange succeeds with Token
// and Profile and echoes the "state" parameter, unless Err is set.
type MockClient struct {
	ID      provider.ID
	AuthURL string
	Token   string
	Profile *oauth.Profile
	Err     error

	mu     sync.Mutex
	States []string // states passed to Initiate
}

func (m *MockClient) Provider() provider.ID { return m.ID }

func (m *MockClient) Initiate(_ context.Context, state string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = append(m.States, state)
	base := m.AuthURL
	if base == "" {
		base = "https://" + string(m.ID) + ".example.com/authorize"
	}
	return base + "?state=" + url.QueryEscape(state), nil
}

func (m *MockClient) CompleteExchange(_ context.Context, params url.Values) (*oauth.Exchange, error) {
	if m.Err != nil {
		return nil, &oauth.ExchangeError{Provider: m.ID, Op: "token", Err: m.Err}
	}
	if params.Get("error") != "" {
		return nil, &oauth.ExchangeError{Provider: m.ID, Op: "authorize", Err: oauth.ErrProviderDenied}
	}
	return &oauth.Exchange{
		Provider:    m.ID,
		State:       params.Get("state"),
		AccessToken: m.Token,
		Profile:     m.Profile,
	}, nil
}

// MockClients returns a ClientBuilder-compatible func serving the given clients.
func MockClients(clients ...*MockClient) func(*provider.Registry, string) map[provider.ID]oauth.Client {
	return func(*provider.Registry, string) map[provider.ID]oauth.Client {
		out := make(map[provider.ID]oauth.Client, len(clients))
		for _, c := range clients {
			out[c.ID] = c
		}
		return out
	}
}

// TurnRecorder implements conversation.TurnContext and records replies.
type TurnRecorder struct {
	Act     *conversation.Activity
	SendErr error

	mu      sync.Mutex
	Replies []*conversation.Message
}

// NewMessageTurn returns a recorder for a message activity.
func NewMessageTurn(conversationID, text string) *TurnRecorder {
	return &TurnRecorder{Act: &conversation.Activity{
		Type:           conversation.TypeMessage,
		ConversationID: conversationID,
		Text:           text,
	}}
}

func (t *TurnRecorder) Activity() *conversation.Activity { return t.Act }

func (t *TurnRecorder) SendActivities(_ context.Context, msgs ...*conversation.Message) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Replies = append(t.Replies, msgs...)
	return nil
}

// Texts returns the text of every reply, "" for card-only replies.
func (t *TurnRecorder) Texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.Replies))
	for i, m := range t.Replies {
		out[i] = m.Text
	}
	return out
}

// Cards returns every card sent.
func (t *TurnRecorder) Cards() []*conversation.Card {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*conversation.Card
	for _, m := range t.Replies {
		if m.Card != nil {
			out = append(out, m.Card)
		}
	}
	return out
}
