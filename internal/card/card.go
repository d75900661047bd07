// Package card renders the provider-selection prompt.
package card

import (
	"github.com/MGallo-Code/botauth/internal/conversation"
	"github.com/MGallo-Code/botauth/internal/provider"
)

// Title is the heading of the default prompt.
const Title = "Please log in"

// AuthorizationURI is one provider's entry point for the current prompt.
type AuthorizationURI struct {
	Provider provider.ID
	URI      string
}

// Build returns a thumbnail card with one openUrl button per entry, in order.
// A provider listed twice gets one button. labels supplies button text.
func Build(entries []AuthorizationURI, labels func(provider.ID) string) *conversation.Message {
	c := &conversation.Card{
		Kind:    conversation.CardThumbnail,
		Title:   Title,
		Buttons: make([]conversation.CardAction, 0, len(entries)),
	}

	seen := make(map[provider.ID]bool, len(entries))
	for _, e := range entries {
		if seen[e.Provider] {
			continue
		}
		seen[e.Provider] = true

		title := string(e.Provider)
		if labels != nil {
			title = labels(e.Provider)
		}
		c.Buttons = append(c.Buttons, conversation.CardAction{
			Type:  conversation.ActionOpenURL,
			Title: title,
			Value: e.URI,
		})
	}
	return &conversation.Message{Card: c}
}
