// settings.go -- Caller-supplied provider settings and the resolve step.
package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// OAuthSettings configures a generic OAuth2 provider (Facebook, Google, GitHub).
type OAuthSettings struct {
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	Scopes       []string `yaml:"scopes"`
	ButtonText   string   `yaml:"buttonText"`
}

// AzureSettings configures either Azure AD variant.
type AzureSettings struct {
	OAuthSettings `yaml:",inline"`
	Tenant        string `yaml:"tenant"`
	Resource      string `yaml:"resource"`
}

// TwitterSettings configures the OAuth 1.0a Twitter provider.
type TwitterSettings struct {
	ConsumerKey    string `yaml:"consumerKey"`
	ConsumerSecret string `yaml:"consumerSecret"`
	ButtonText     string `yaml:"buttonText"`
}

// Settings selects which providers to enable. A nil field leaves that provider off.
type Settings struct {
	Facebook  *OAuthSettings   `yaml:"facebook"`
	Google    *OAuthSettings   `yaml:"google"`
	GitHub    *OAuthSettings   `yaml:"github"`
	AzureADv1 *AzureSettings   `yaml:"azureADv1"`
	AzureADv2 *AzureSettings   `yaml:"azureADv2"`
	Twitter   *TwitterSettings `yaml:"twitter"`
}

// LoadSettings reads provider settings from a YAML file.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading provider settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parsing provider settings: %w", err)
	}
	return s, nil
}

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envPair is the pair of variables that override one provider's credentials.
type envPair struct{ id, secret string }

var envKeys = map[ID]envPair{
	Facebook:  {"FACEBOOK_CLIENT_ID", "FACEBOOK_CLIENT_SECRET"},
	Google:    {"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET"},
	GitHub:    {"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET"},
	AzureADv1: {"AZURE_AD_V1_CLIENT_ID", "AZURE_AD_V1_CLIENT_SECRET"},
	AzureADv2: {"AZURE_AD_V2_CLIENT_ID", "AZURE_AD_V2_CLIENT_SECRET"},
	Twitter:   {"TWITTER_CONSUMER_KEY", "TWITTER_CONSUMER_SECRET"},
}

// lookupPair returns the override for id only when both halves are set and non-empty.
func lookupPair(lookup LookupFunc, id ID) (Credentials, bool) {
	if lookup == nil {
		return Credentials{}, false
	}
	p := envKeys[id]
	cid, ok1 := lookup(p.id)
	secret, ok2 := lookup(p.secret)
	if !ok1 || !ok2 || cid == "" || secret == "" {
		return Credentials{}, false
	}
	return Credentials{ClientID: cid, ClientSecret: secret}, true
}

// ApplyEnv returns a copy of s with credentials overridden from the environment.
// A provider with a complete override is enabled even if s left it nil.
func ApplyEnv(s Settings, lookup LookupFunc) Settings {
	out := Settings{}
	out.Facebook = mergeOAuth(s.Facebook, lookup, Facebook)
	out.Google = mergeOAuth(s.Google, lookup, Google)
	out.GitHub = mergeOAuth(s.GitHub, lookup, GitHub)
	out.AzureADv1 = mergeAzure(s.AzureADv1, lookup, AzureADv1)
	out.AzureADv2 = mergeAzure(s.AzureADv2, lookup, AzureADv2)

	out.Twitter = s.Twitter
	if c, ok := lookupPair(lookup, Twitter); ok {
		t := TwitterSettings{}
		if s.Twitter != nil {
			t = *s.Twitter
		}
		t.ConsumerKey, t.ConsumerSecret = c.ClientID, c.ClientSecret
		out.Twitter = &t
	}
	return out
}

func mergeOAuth(in *OAuthSettings, lookup LookupFunc, id ID) *OAuthSettings {
	c, ok := lookupPair(lookup, id)
	if !ok {
		return in
	}
	o := OAuthSettings{}
	if in != nil {
		o = *in
	}
	o.ClientID, o.ClientSecret = c.ClientID, c.ClientSecret
	return &o
}

func mergeAzure(in *AzureSettings, lookup LookupFunc, id ID) *AzureSettings {
	c, ok := lookupPair(lookup, id)
	if !ok {
		return in
	}
	a := AzureSettings{}
	if in != nil {
		a = *in
	}
	a.ClientID, a.ClientSecret = c.ClientID, c.ClientSecret
	return &a
}

// Resolve merges the environment into s, fills defaults, validates each provider
// and returns the registry of everything that could be enabled.
//
// Invalid providers are left out and reported as *ConfigurationError values
// joined with errors.Join; the returned registry is usable either way.
// When both Azure AD variants are configured only v2 is kept.
func Resolve(s Settings, lookup LookupFunc) (*Registry, error) {
	s = ApplyEnv(s, lookup)

	var (
		descs []Descriptor
		errs  []error
	)
	add := func(d Descriptor, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		descs = append(descs, d)
	}

	for _, id := range order {
		switch id {
		case Facebook:
			if s.Facebook != nil {
				add(fromOAuth(id, *s.Facebook))
			}
		case Google:
			if s.Google != nil {
				add(fromOAuth(id, *s.Google))
			}
		case GitHub:
			if s.GitHub != nil {
				add(fromOAuth(id, *s.GitHub))
			}
		case AzureADv1:
			if s.AzureADv1 != nil {
				add(fromAzure(id, *s.AzureADv1))
			}
		case AzureADv2:
			if s.AzureADv2 != nil {
				add(fromAzure(id, *s.AzureADv2))
			}
		case Twitter:
			if s.Twitter != nil {
				add(fromTwitter(*s.Twitter))
			}
		}
	}

	return NewRegistry(descs...), errors.Join(errs...)
}

func fromOAuth(id ID, o OAuthSettings) (Descriptor, error) {
	if err := requireCredentials(id, o.ClientID, o.ClientSecret); err != nil {
		return Descriptor{}, err
	}
	def := DefaultsFor(id)
	d := Descriptor{
		ID:          id,
		Credentials: Credentials{ClientID: o.ClientID, ClientSecret: o.ClientSecret},
		Scopes:      def.Scopes,
		ButtonText:  def.ButtonText,
	}
	if len(o.Scopes) > 0 {
		d.Scopes = append([]string(nil), o.Scopes...)
	}
	if o.ButtonText != "" {
		d.ButtonText = o.ButtonText
	}
	return d, nil
}

func fromAzure(id ID, a AzureSettings) (Descriptor, error) {
	d, err := fromOAuth(id, a.OAuthSettings)
	if err != nil {
		return d, err
	}
	def := DefaultsFor(id)
	d.Tenant, d.Resource = def.Tenant, def.Resource
	if a.Tenant != "" {
		d.Tenant = a.Tenant
	}
	// v2 requests scopes, not resources.
	if a.Resource != "" && id == AzureADv1 {
		d.Resource = a.Resource
	}
	return d, nil
}

func fromTwitter(t TwitterSettings) (Descriptor, error) {
	if t.ConsumerKey == "" || t.ConsumerSecret == "" {
		return Descriptor{}, &ConfigurationError{Provider: Twitter, Reason: "consumer key and consumer secret are required"}
	}
	d := Descriptor{
		ID:          Twitter,
		Credentials: Credentials{ClientID: t.ConsumerKey, ClientSecret: t.ConsumerSecret},
		ButtonText:  DefaultsFor(Twitter).ButtonText,
	}
	if t.ButtonText != "" {
		d.ButtonText = t.ButtonText
	}
	return d, nil
}

func requireCredentials(id ID, clientID, secret string) error {
	switch {
	case clientID == "" && secret == "":
		return &ConfigurationError{Provider: id, Reason: "client id and client secret are required"}
	case clientID == "":
		return &ConfigurationError{Provider: id, Reason: "client id is required"}
	case secret == "":
		return &ConfigurationError{Provider: id, Reason: "client secret is required"}
	}
	return nil
}

// logDropped notes an Azure v1 descriptor discarded in favour of v2.
func logDropped(d Descriptor) {
	slog.Debug("azure ad v1 ignored, v2 configured", "provider", d.ID, "tenant", d.Tenant)
}
