// twitter.go -- Twitter OAuth 1.0a strategy built on dghubble/oauth1.
package oauth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/dghubble/oauth1"
)

// pendingRequest is what Begin remembers about one request token.
type pendingRequest struct {
	secret string
	state  string
}

// TwitterStrategy implements Strategy with the three-legged OAuth 1.0a flow.
// Request-token secrets are held in memory until the callback or expiry.
type TwitterStrategy struct {
	config     *oauth1.Config
	profileURL string
	pending    *flowCache
}

// NewTwitterStrategy builds a strategy that returns the browser to callbackURL.
func NewTwitterStrategy(d provider.Descriptor, ep provider.Endpoints, callbackURL string) *TwitterStrategy {
	return &TwitterStrategy{
		config: &oauth1.Config{
			ConsumerKey:    d.Credentials.ClientID,
			ConsumerSecret: d.Credentials.ClientSecret,
			CallbackURL:    callbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: ep.RequestTokenURL,
				AuthorizeURL:    ep.AuthURL,
				AccessTokenURL:  ep.TokenURL,
			},
		},
		profileURL: ep.ProfileURL,
		pending:    newFlowCache(defaultFlowTTL),
	}
}

// Begin obtains a request token and returns the authorization URL for it.
func (s *TwitterStrategy) Begin(ctx context.Context, state string) (string, error) {
	requestToken, requestSecret, err := s.config.RequestToken()
	if err != nil {
		return "", fmt.Errorf("obtaining request token: %w", err)
	}
	s.pending.put(requestToken, pendingRequest{secret: requestSecret, state: state})

	u, err := s.config.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("building authorization url: %w", err)
	}
	return u.String(), nil
}

// Callback exchanges the verifier for an access token and loads the account.
func (s *TwitterStrategy) Callback(ctx context.Context, params url.Values, verify VerifyFunc) (string, error) {
	if denied := params.Get("denied"); denied != "" {
		s.pending.take(denied)
		return "", &ExchangeError{Provider: provider.Twitter, Op: "authorize", Err: ErrProviderDenied}
	}
	requestToken := params.Get("oauth_token")
	verifier := params.Get("oauth_verifier")
	if requestToken == "" || verifier == "" {
		return "", &ExchangeError{Provider: provider.Twitter, Op: "authorize", Err: ErrMissingCode}
	}

	v, ok := s.pending.take(requestToken)
	if !ok {
		return "", &ExchangeError{Provider: provider.Twitter, Op: "authorize", Err: ErrUnknownFlow}
	}
	req := v.(pendingRequest)

	accessToken, accessSecret, err := s.config.AccessToken(requestToken, req.secret, verifier)
	if err != nil {
		return "", &ExchangeError{Provider: provider.Twitter, Op: "token", Err: err}
	}

	var profile *Profile
	if s.profileURL != "" {
		hc := s.config.Client(ctx, oauth1.NewToken(accessToken, accessSecret))
		profile, err = fetchProfile(hc, s.profileURL, provider.Twitter)
		if err != nil {
			return "", &ExchangeError{Provider: provider.Twitter, Op: "profile", Err: err}
		}
	}

	if err := verify(ctx, accessToken, profile); err != nil {
		return "", err
	}
	return req.state, nil
}
