// strategy.go -- Adapter for library-driven authorization strategies.
package oauth

import (
	"context"
	"errors"
	"net/url"

	"github.com/MGallo-Code/botauth/internal/provider"
)

// VerifyFunc receives the outcome of a strategy's exchange.
type VerifyFunc func(ctx context.Context, accessToken string, profile *Profile) error

// Strategy is a flow where a library owns both the redirect and the exchange
// and reports the result through a verify callback.
type Strategy interface {
	// Begin returns the provider URL for a new flow tagged with state.
	Begin(ctx context.Context, state string) (string, error)

	// Callback completes the flow, calls verify once on success and returns the state given to Begin.
	Callback(ctx context.Context, params url.Values, verify VerifyFunc) (string, error)
}

var errVerifyNotCalled = errors.New("strategy finished without reporting a token")

// StrategyClient adapts a Strategy to Client.
type StrategyClient struct {
	id       provider.ID
	strategy Strategy
}

// NewStrategyClient wraps s for provider id.
func NewStrategyClient(id provider.ID, s Strategy) *StrategyClient {
	return &StrategyClient{id: id, strategy: s}
}

// Provider returns the wrapped provider's id.
func (c *StrategyClient) Provider() provider.ID { return c.id }

// Initiate starts the strategy's flow.
func (c *StrategyClient) Initiate(ctx context.Context, state string) (string, error) {
	u, err := c.strategy.Begin(ctx, state)
	if err != nil {
		return "", &ExchangeError{Provider: c.id, Op: "initiate", Err: err}
	}
	return u, nil
}

// CompleteExchange runs the strategy's callback and collects what verify was given.
func (c *StrategyClient) CompleteExchange(ctx context.Context, params url.Values) (*Exchange, error) {
	var ex Exchange
	called := false
	state, err := c.strategy.Callback(ctx, params, func(_ context.Context, token string, p *Profile) error {
		called = true
		ex.AccessToken = token
		ex.Profile = p
		return nil
	})
	if err != nil {
		var xerr *ExchangeError
		if errors.As(err, &xerr) {
			return nil, xerr
		}
		return nil, &ExchangeError{Provider: c.id, Op: "token", Err: err}
	}
	if !called || ex.AccessToken == "" {
		return nil, &ExchangeError{Provider: c.id, Op: "token", Err: errVerifyNotCalled}
	}
	ex.Provider = c.id
	ex.State = state
	return &ex, nil
}
