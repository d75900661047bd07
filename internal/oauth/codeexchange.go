// codeexchange.go -- Generic OAuth2 authorization-code client.
//
// Covers Facebook, Google, GitHub and both Azure AD variants. The profile comes
// from a verified id_token when the provider issues one, otherwise from the
// provider's profile endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// defaultFlowTTL bounds how long a started flow's PKCE verifier is kept.
const defaultFlowTTL = 10 * time.Minute

// CodeExchangeConfig holds everything needed to build a CodeExchange.
type CodeExchangeConfig struct {
	Descriptor  provider.Descriptor
	Endpoints   provider.Endpoints
	RedirectURL string
	HTTPClient  *http.Client // nil uses a client with a 10s timeout
	KeySet      oidc.KeySet  // nil fetches Endpoints.KeysURL
	FlowTTL     time.Duration
}

// CodeExchange implements Client for providers using the OAuth2 code grant.
// Uses PKCE (S256) for every provider except Azure AD v1.
type CodeExchange struct {
	desc       provider.Descriptor
	endpoints  provider.Endpoints
	config     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	pkce       bool
	flows      *flowCache // state -> PKCE verifier
}

// NewCodeExchange builds a client. It performs no network I/O.
func NewCodeExchange(cfg CodeExchangeConfig) *CodeExchange {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.FlowTTL
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}

	c := &CodeExchange{
		desc:      cfg.Descriptor,
		endpoints: cfg.Endpoints,
		config: &oauth2.Config{
			ClientID:     cfg.Descriptor.Credentials.ClientID,
			ClientSecret: cfg.Descriptor.Credentials.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Endpoints.AuthURL,
				TokenURL: cfg.Endpoints.TokenURL,
			},
		},
		httpClient: hc,
		pkce:       cfg.Descriptor.ID != provider.AzureADv1,
		flows:      newFlowCache(ttl),
	}

	keySet := cfg.KeySet
	if keySet == nil && cfg.Endpoints.KeysURL != "" {
		keySet = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), hc), cfg.Endpoints.KeysURL)
	}
	if keySet != nil {
		c.verifier = oidc.NewVerifier(cfg.Endpoints.Issuer, keySet, &oidc.Config{
			ClientID:        cfg.Descriptor.Credentials.ClientID,
			SkipIssuerCheck: cfg.Endpoints.Issuer == "",
		})
	}
	return c
}

// Provider returns the descriptor's id.
func (c *CodeExchange) Provider() provider.ID { return c.desc.ID }

// Initiate builds the consent URL with state, serialized scopes and a PKCE challenge.
func (c *CodeExchange) Initiate(ctx context.Context, state string) (string, error) {
	var opts []oauth2.AuthCodeOption
	if scope := c.desc.ScopeParam(); scope != "" {
		opts = append(opts, oauth2.SetAuthURLParam("scope", scope))
	}
	if c.desc.ID.IsAzure() {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", "query"))
	}
	if c.desc.Resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", c.desc.Resource))
	}
	if c.pkce {
		verifier := oauth2.GenerateVerifier()
		c.flows.put(state, verifier)
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return c.config.AuthCodeURL(state, opts...), nil
}

// CompleteExchange trades the callback's code for a token and resolves the profile.
func (c *CodeExchange) CompleteExchange(ctx context.Context, params url.Values) (*Exchange, error) {
	if e := params.Get("error"); e != "" {
		desc := params.Get("error_description")
		return nil, c.fail("authorize", fmt.Errorf("%w: %s %s", ErrProviderDenied, e, desc))
	}
	code := params.Get("code")
	if code == "" {
		return nil, c.fail("authorize", ErrMissingCode)
	}
	state := params.Get("state")

	var opts []oauth2.AuthCodeOption
	if c.desc.Resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", c.desc.Resource))
	}
	if c.pkce {
		// A replayed callback finds no verifier.
		v, ok := c.flows.take(state)
		if !ok {
			return nil, c.fail("authorize", ErrUnknownFlow)
		}
		opts = append(opts, oauth2.VerifierOption(v.(string)))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, c.fail("token", err)
	}

	profile, err := c.profile(ctx, tok)
	if err != nil {
		return nil, c.fail("profile", err)
	}

	return &Exchange{Provider: c.desc.ID, State: state, AccessToken: tok.AccessToken, Profile: profile}, nil
}

// profile prefers a verified id_token and falls back to the profile endpoint.
// Returns nil, nil when the provider offers neither.
func (c *CodeExchange) profile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	if c.verifier != nil {
		if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
			idToken, err := c.verifier.Verify(ctx, raw)
			if err != nil {
				return nil, fmt.Errorf("verifying id token: %w", err)
			}
			var claims map[string]any
			if err := idToken.Claims(&claims); err != nil {
				return nil, fmt.Errorf("extracting id token claims: %w", err)
			}
			p := profileFromMap(c.desc.ID, claims)
			if p.ID == "" {
				p.ID = idToken.Subject
			}
			return p, nil
		}
	}

	if c.endpoints.ProfileURL == "" {
		return nil, nil
	}
	return fetchProfile(c.config.Client(ctx, tok), c.endpoints.ProfileURL, c.desc.ID)
}

func (c *CodeExchange) fail(op string, err error) *ExchangeError {
	return &ExchangeError{Provider: c.desc.ID, Op: op, Err: err}
}

// fetchProfile GETs url with an authorized client and normalizes the JSON body.
func fetchProfile(hc *http.Client, profileURL string, id provider.ID) (*Profile, error) {
	resp, err := hc.Get(profileURL)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetching profile: unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return profileFromMap(id, m), nil
}

// profileFromMap normalizes the field names the supported providers use.
func profileFromMap(id provider.ID, m map[string]any) *Profile {
	return &Profile{
		ID:          firstString(m, "id_str", "id", "sub", "oid"),
		Provider:    id,
		DisplayName: firstString(m, "name"),
		Username:    firstString(m, "login", "screen_name", "preferred_username", "upn"),
		Email:       firstString(m, "email"),
		Raw:         m,
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
