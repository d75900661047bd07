// defaults.go -- Compiled-in defaults and endpoint table.
package provider

import (
	"fmt"

	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// DefaultTenant is used for Azure AD when no tenant is configured.
const DefaultTenant = "common"

// DefaultAzureV1Resource is the resource Azure AD v1 requests a token for by default.
const DefaultAzureV1Resource = "https://graph.windows.net"

// Defaults are the values a provider falls back to when settings leave them empty.
type Defaults struct {
	Scopes     []string
	ButtonText string
	Tenant     string
	Resource   string
}

var defaults = map[ID]Defaults{
	Facebook:  {Scopes: []string{"public_profile"}, ButtonText: "Log in with Facebook"},
	Google:    {Scopes: []string{"openid", "email", "profile"}, ButtonText: "Log in with Google"},
	GitHub:    {Scopes: []string{"user"}, ButtonText: "Log in with GitHub"},
	AzureADv1: {Scopes: []string{"User.Read"}, ButtonText: "Log in with Microsoft", Tenant: DefaultTenant, Resource: DefaultAzureV1Resource},
	AzureADv2: {Scopes: []string{"profile"}, ButtonText: "Log in with Microsoft", Tenant: DefaultTenant},
	Twitter:   {ButtonText: "Log in with Twitter"},
}

// DefaultsFor returns a copy of the compiled-in defaults for id.
func DefaultsFor(id ID) Defaults {
	d := defaults[id]
	d.Scopes = append([]string(nil), d.Scopes...)
	return d
}

// Endpoints are the provider URLs a client talks to.
type Endpoints struct {
	AuthURL         string
	TokenURL        string
	RequestTokenURL string // OAuth 1.0a only
	ProfileURL      string // queried with the access token; empty when the id_token carries the profile
	KeysURL         string // JWKS used to verify id_tokens; empty when the provider issues none
	Issuer          string // expected id_token issuer; empty skips the check
}

const (
	googleKeysURL    = "https://www.googleapis.com/oauth2/v3/certs"
	googleIssuer     = "https://accounts.google.com"
	googleProfileURL = "https://openidconnect.googleapis.com/v1/userinfo"

	facebookProfileURL = "https://graph.facebook.com/me?fields=id,name,email"
	githubProfileURL   = "https://api.github.com/user"

	azureLoginBase       = "https://login.microsoftonline.com/"
	azureGraphProfileURL = "https://graph.microsoft.com/oidc/userinfo"

	twitterRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	twitterAuthenticateURL = "https://api.twitter.com/oauth/authenticate"
	twitterAccessTokenURL  = "https://api.twitter.com/oauth/access_token"
	twitterProfileURL      = "https://api.twitter.com/1.1/account/verify_credentials.json"
)

// EndpointsFor returns the endpoint table for d. Only the Azure tenant is dynamic.
//
// Azure issuers are never pinned: a tenant may be configured by domain name
// while tokens carry the tenant GUID, and "common" has no single issuer.
func EndpointsFor(d Descriptor) Endpoints {
	switch d.ID {
	case Facebook:
		return Endpoints{
			AuthURL:    facebook.Endpoint.AuthURL,
			TokenURL:   facebook.Endpoint.TokenURL,
			ProfileURL: facebookProfileURL,
		}
	case Google:
		return Endpoints{
			AuthURL:    google.Endpoint.AuthURL,
			TokenURL:   google.Endpoint.TokenURL,
			ProfileURL: googleProfileURL,
			KeysURL:    googleKeysURL,
			Issuer:     googleIssuer,
		}
	case GitHub:
		return Endpoints{
			AuthURL:    github.Endpoint.AuthURL,
			TokenURL:   github.Endpoint.TokenURL,
			ProfileURL: githubProfileURL,
		}
	case AzureADv1:
		tenant := tenantOrDefault(d.Tenant)
		return Endpoints{
			AuthURL:  fmt.Sprintf("%s%s/oauth2/authorize", azureLoginBase, tenant),
			TokenURL: fmt.Sprintf("%s%s/oauth2/token", azureLoginBase, tenant),
			KeysURL:  fmt.Sprintf("%s%s/discovery/keys", azureLoginBase, tenant),
		}
	case AzureADv2:
		tenant := tenantOrDefault(d.Tenant)
		ep := microsoft.AzureADEndpoint(tenant)
		return Endpoints{
			AuthURL:    ep.AuthURL,
			TokenURL:   ep.TokenURL,
			ProfileURL: azureGraphProfileURL,
			KeysURL:    fmt.Sprintf("%s%s/discovery/v2.0/keys", azureLoginBase, tenant),
		}
	case Twitter:
		return Endpoints{
			RequestTokenURL: twitterRequestTokenURL,
			AuthURL:         twitterAuthenticateURL,
			TokenURL:        twitterAccessTokenURL,
			ProfileURL:      twitterProfileURL,
		}
	}
	return Endpoints{}
}

func tenantOrDefault(t string) string {
	if t == "" {
		return DefaultTenant
	}
	return t
}
