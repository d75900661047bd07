// bot.go -- Echo bot served behind the handshake.
//
// Logged-in state lives in process memory keyed by conversation id.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/MGallo-Code/botauth/internal/conversation"
	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
)

//go:embed static/customcode.html
var customCodeHTML []byte

// session is what the bot remembers about a logged-in conversation.
type session struct {
	AccessToken string
	Profile     *oauth.Profile
	Provider    provider.ID
}

type echoBot struct {
	mu       sync.RWMutex
	sessions map[string]session

	// logout also drops any half-finished handshake. Set by buildHost.
	logout func(ctx context.Context, conversationID string) error
}

func newEchoBot() *echoBot {
	return &echoBot{sessions: make(map[string]session)}
}

// IsAuthenticated reports whether the conversation has logged in.
func (b *echoBot) IsAuthenticated(_ context.Context, tc conversation.TurnContext) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sessions[tc.Activity().ConversationID]
	return ok, nil
}

func (b *echoBot) OnLoginSuccess(ctx context.Context, tc conversation.TurnContext, accessToken string, profile *oauth.Profile, p provider.ID) error {
	b.mu.Lock()
	b.sessions[tc.Activity().ConversationID] = session{AccessToken: accessToken, Profile: profile, Provider: p}
	b.mu.Unlock()

	return tc.SendActivities(ctx, conversation.Text(fmt.Sprintf("Hi there %s!", displayName(profile, p))))
}

func (b *echoBot) OnLoginFailure(ctx context.Context, tc conversation.TurnContext, _ provider.ID) error {
	return tc.SendActivities(ctx, conversation.Text("Login failed."))
}

// OnTurn runs once the handshake middleware lets a turn through.
func (b *echoBot) OnTurn(ctx context.Context, tc conversation.TurnContext) error {
	act := tc.Activity()
	if act.Type != conversation.TypeMessage {
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(act.Text), "logout") {
		b.mu.Lock()
		delete(b.sessions, act.ConversationID)
		b.mu.Unlock()
		if b.logout != nil {
			if err := b.logout(ctx, act.ConversationID); err != nil {
				slog.Warn("clearing handshake on logout", "conversation_id", act.ConversationID, "error", err)
			}
		}
		return tc.SendActivities(ctx, conversation.Text("You're logged out!"))
	}
	return tc.SendActivities(ctx, conversation.Text("You said "+act.Text))
}

func displayName(profile *oauth.Profile, p provider.ID) string {
	if profile != nil {
		for _, s := range []string{profile.DisplayName, profile.Username, profile.Email} {
			if s != "" {
				return s
			}
		}
	}
	return p.String() + " user"
}

// customCodeRedirect handles GET /customCode?magicCode=... -- moves the code
// into the fragment so it never reaches server logs again.
func customCodeRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("magicCode")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, "/renderCustomCode#"+url.PathEscape(code), http.StatusFound)
}

// renderCustomCode serves the page that shows the code from the fragment.
func renderCustomCode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(customCodeHTML)
}
