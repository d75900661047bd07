// provider.go -- Client capability and shared exchange types.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/MGallo-Code/botauth/internal/provider"
)

// ErrProviderDenied is returned when the provider redirects back with an error
// instead of a grant (user pressed cancel, consent refused, ...).
var ErrProviderDenied = errors.New("provider denied authorization")

// ErrMissingCode is returned when a callback carries neither a grant nor an error.
var ErrMissingCode = errors.New("callback missing authorization grant")

// ErrUnknownFlow is returned when a callback cannot be matched to a flow this process started.
var ErrUnknownFlow = errors.New("unknown or expired authorization flow")

// Profile is the identity a provider reported for the authenticated user.
// Fields other than ID and Provider are best-effort and may be empty.
type Profile struct {
	ID          string         `json:"id"`
	Provider    provider.ID    `json:"provider"`
	DisplayName string         `json:"display_name,omitempty"`
	Username    string         `json:"username,omitempty"`
	Email       string         `json:"email,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Exchange is the result of a completed authorization.
// State is the opaque value passed to Initiate, echoed back by the provider.
type Exchange struct {
	Provider    provider.ID
	State       string
	AccessToken string
	Profile     *Profile
}

// Client drives one provider's authorization flow.
// Code-exchange providers and library-driven strategies both satisfy it.
type Client interface {
	// Provider returns the id this client was built for.
	Provider() provider.ID

	// Initiate returns the provider URL the browser is sent to.
	// state is round-tripped and comes back in Exchange.State.
	Initiate(ctx context.Context, state string) (string, error)

	// CompleteExchange turns callback parameters into an access token and profile.
	// Failures are returned as *ExchangeError.
	CompleteExchange(ctx context.Context, params url.Values) (*Exchange, error)
}

// ExchangeError wraps a failure anywhere in a provider round trip.
// Callers use errors.As to read Provider/Op and errors.Is for the cause.
type ExchangeError struct {
	Provider provider.ID
	Op       string // "initiate", "authorize", "token", "profile"
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }
