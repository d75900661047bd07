// runtime.go -- JSON-over-HTTP turn runtime.
//
// Each POST carries one activity; replies sent during the turn are returned
// in the response body. Turns for the same conversation run one at a time.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// ErrNoConversation is returned for activities without a conversation id.
var ErrNoConversation = errors.New("activity has no conversation id")

// Adapter runs activities through a middleware chain and a handler.
type Adapter struct {
	middleware []Middleware
	locks      sync.Map // conversation id -> *sync.Mutex
}

// NewAdapter returns an adapter running mw in order before the handler.
func NewAdapter(mw ...Middleware) *Adapter {
	return &Adapter{middleware: mw}
}

// ProcessActivity runs one turn and returns the replies it produced.
func (a *Adapter) ProcessActivity(ctx context.Context, act *Activity, h Handler) ([]*Message, error) {
	if act == nil || act.ConversationID == "" {
		return nil, ErrNoConversation
	}

	mu, _ := a.locks.LoadOrStore(act.ConversationID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	tc := &turn{activity: act}
	err := a.run(ctx, tc, 0, h)
	return tc.replies, err
}

// run invokes middleware i, or the handler once the chain is exhausted.
func (a *Adapter) run(ctx context.Context, tc *turn, i int, h Handler) error {
	if i == len(a.middleware) {
		if h == nil {
			return nil
		}
		return h(ctx, tc)
	}
	return a.middleware[i].OnTurn(ctx, tc, func(ctx context.Context) error {
		return a.run(ctx, tc, i+1, h)
	})
}

// HandlerFunc serves POST requests carrying a JSON Activity and answers with
// {"replies": [...]}.
func (a *Adapter) HandlerFunc(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var act Activity
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&act); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid activity"})
			return
		}

		replies, err := a.ProcessActivity(r.Context(), &act, h)
		if errors.Is(err, ErrNoConversation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "conversation_id is required"})
			return
		}
		if err != nil {
			slog.Error("turn failed", "conversation_id", act.ConversationID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
			return
		}
		if replies == nil {
			replies = []*Message{}
		}
		writeJSON(w, http.StatusOK, struct {
			Replies []*Message `json:"replies"`
		}{replies})
	}
}

// turn is the TurnContext handed out by Adapter.
type turn struct {
	activity *Activity
	mu       sync.Mutex
	replies  []*Message
}

func (t *turn) Activity() *Activity { return t.activity }

func (t *turn) SendActivities(ctx context.Context, msgs ...*Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		if m != nil {
			t.replies = append(t.replies, m)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
