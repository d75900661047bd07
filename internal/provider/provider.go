// provider.go -- Closed provider set and immutable descriptors.
//
// The set of identity providers is fixed at compile time. Callers pick which
// ones to enable through Settings; Resolve turns that into a Registry.
package provider

import (
	"fmt"
	"strings"
)

// ID names one supported identity provider.
type ID string

const (
	Facebook  ID = "facebook"
	Google    ID = "google"
	GitHub    ID = "github"
	AzureADv1 ID = "azureADv1"
	AzureADv2 ID = "azureADv2"
	Twitter   ID = "twitter"
)

// order is the order providers appear in the authentication prompt.
var order = []ID{Facebook, Google, Twitter, GitHub, AzureADv1, AzureADv2}

// Valid reports whether id is one of the supported providers.
func (id ID) Valid() bool {
	for _, known := range order {
		if id == known {
			return true
		}
	}
	return false
}

// Path returns the route segment used under /auth/.
// Both Azure AD variants share "azureAD"; at most one of them is ever registered.
func (id ID) Path() string {
	if id == AzureADv1 || id == AzureADv2 {
		return "azureAD"
	}
	return string(id)
}

func (id ID) String() string { return string(id) }

// IsAzure reports whether id is either Azure AD variant.
func (id ID) IsAzure() bool { return id == AzureADv1 || id == AzureADv2 }

// Credentials holds the client registration for one provider.
// Twitter's consumer key/secret are stored in the same two fields.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Descriptor is the resolved, immutable configuration of one enabled provider.
type Descriptor struct {
	ID          ID
	Credentials Credentials
	Scopes      []string
	ButtonText  string
	Tenant      string // Azure only
	Resource    string // Azure v1 only
}

// ScopeParam serializes Scopes into the single "scope" query value the provider expects.
// Facebook and GitHub take a comma-separated list; everyone else, Azure included, takes spaces.
func (d Descriptor) ScopeParam() string {
	sep := " "
	if d.ID == Facebook || d.ID == GitHub {
		sep = ","
	}
	return strings.Join(d.Scopes, sep)
}

// ConfigurationError reports a provider that was requested but cannot be enabled.
// Resolve drops the provider and keeps going; callers use errors.As to inspect it.
type ConfigurationError struct {
	Provider ID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
}
