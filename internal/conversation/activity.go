// Package conversation defines the turn-based messaging contract the
// authentication middleware plugs into, plus a small JSON runtime.
//
// activity.go -- Activities, outgoing messages and cards.
package conversation

import "context"

// ActivityType classifies an inbound activity.
type ActivityType string

const (
	TypeMessage            ActivityType = "message"
	TypeConversationUpdate ActivityType = "conversationUpdate"
	TypeTyping             ActivityType = "typing"
	TypeEvent              ActivityType = "event"
)

// Activity is one inbound event in a conversation.
type Activity struct {
	Type           ActivityType `json:"type"`
	ID             string       `json:"id,omitempty"`
	ConversationID string       `json:"conversation_id"`
	From           string       `json:"from,omitempty"`
	Text           string       `json:"text,omitempty"`
}

// ActionOpenURL opens Value in the user's browser.
const ActionOpenURL = "openUrl"

// CardAction is a button on a card.
type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// CardThumbnail is the only card layout the runtime renders.
const CardThumbnail = "thumbnail"

// Card is a rich attachment with buttons.
type Card struct {
	Kind    string       `json:"kind"`
	Title   string       `json:"title,omitempty"`
	Text    string       `json:"text,omitempty"`
	Images  []string     `json:"images,omitempty"`
	Buttons []CardAction `json:"buttons"`
}

// Message is one outbound reply: text, a card, or both.
type Message struct {
	Text string `json:"text,omitempty"`
	Card *Card  `json:"card,omitempty"`
}

// Text returns a plain text message.
func Text(s string) *Message { return &Message{Text: s} }

// TurnContext is the view of one turn handed to middleware and handlers.
type TurnContext interface {
	// Activity returns the inbound activity being processed.
	Activity() *Activity

	// SendActivities delivers replies to the conversation in order.
	SendActivities(ctx context.Context, msgs ...*Message) error
}

// Handler is the bot logic run at the end of the middleware chain.
type Handler func(ctx context.Context, tc TurnContext) error

// Middleware inspects a turn and decides whether to continue with next.
type Middleware interface {
	OnTurn(ctx context.Context, tc TurnContext, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, tc TurnContext, next func(context.Context) error) error

// OnTurn calls f.
func (f MiddlewareFunc) OnTurn(ctx context.Context, tc TurnContext, next func(context.Context) error) error {
	return f(ctx, tc, next)
}
