// factory.go -- Builds one Client per registered provider.
package oauth

import (
	"net/http"
	"strings"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Factory selects the adapter for each descriptor. The zero value is ready to use.
type Factory struct {
	HTTPClient *http.Client
	// Endpoints overrides provider.EndpointsFor. Tests point it at httptest servers.
	Endpoints func(provider.Descriptor) provider.Endpoints
	// KeySets overrides id_token key discovery per provider.
	KeySets map[provider.ID]oidc.KeySet
}

// Build constructs clients for every provider in reg, with redirects under baseURL.
func (f *Factory) Build(reg *provider.Registry, baseURL string) map[provider.ID]Client {
	endpoints := f.Endpoints
	if endpoints == nil {
		endpoints = provider.EndpointsFor
	}

	clients := make(map[provider.ID]Client, reg.Len())
	for _, d := range reg.Descriptors() {
		ep := endpoints(d)
		switch d.ID {
		case provider.Twitter:
			clients[d.ID] = NewStrategyClient(d.ID, NewTwitterStrategy(d, ep, CallbackURL(baseURL, d.ID)))
		default:
			clients[d.ID] = NewCodeExchange(CodeExchangeConfig{
				Descriptor:  d,
				Endpoints:   ep,
				RedirectURL: CallbackURL(baseURL, d.ID),
				HTTPClient:  f.HTTPClient,
				KeySet:      f.KeySets[d.ID],
			})
		}
	}
	return clients
}

// CallbackURL is where provider id sends the browser back to.
// Code-grant providers share /auth/callback; strategies get their own route.
func CallbackURL(baseURL string, id provider.ID) string {
	base := strings.TrimRight(baseURL, "/")
	if id == provider.Twitter {
		return base + "/auth/" + id.Path() + "/callback"
	}
	return base + "/auth/callback"
}
