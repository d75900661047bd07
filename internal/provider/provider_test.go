package provider

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// envMap returns a LookupFunc backed by a map.
func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// --- Resolve ---

func TestResolve(t *testing.T) {
	t.Run("fills defaults for facebook", func(t *testing.T) {
		reg, err := Resolve(Settings{Facebook: &OAuthSettings{ClientID: "id", ClientSecret: "secret"}}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d, ok := reg.Get(Facebook)
		if !ok {
			t.Fatal("expected facebook to be registered")
		}
		if d.ButtonText != "Log in with Facebook" {
			t.Errorf("ButtonText: expected %q, got %q", "Log in with Facebook", d.ButtonText)
		}
		if len(d.Scopes) != 1 || d.Scopes[0] != "public_profile" {
			t.Errorf("Scopes: expected [public_profile], got %v", d.Scopes)
		}
	})

	t.Run("explicit settings override defaults", func(t *testing.T) {
		reg, err := Resolve(Settings{GitHub: &OAuthSettings{
			ClientID: "id", ClientSecret: "secret", Scopes: []string{"read:user"}, ButtonText: "GitHub please",
		}}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d, _ := reg.Get(GitHub)
		if d.ButtonText != "GitHub please" {
			t.Errorf("ButtonText: expected override, got %q", d.ButtonText)
		}
		if d.ScopeParam() != "read:user" {
			t.Errorf("ScopeParam: expected read:user, got %q", d.ScopeParam())
		}
	})

	t.Run("missing secret drops only that provider", func(t *testing.T) {
		reg, err := Resolve(Settings{
			Facebook: &OAuthSettings{ClientID: "id"},
			Google:   &OAuthSettings{ClientID: "gid", ClientSecret: "gsecret"},
		}, nil)
		if err == nil {
			t.Fatal("expected configuration error, got nil")
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *ConfigurationError, got %T", err)
		}
		if cfgErr.Provider != Facebook {
			t.Errorf("Provider: expected facebook, got %s", cfgErr.Provider)
		}
		if _, ok := reg.Get(Facebook); ok {
			t.Error("facebook should have been dropped")
		}
		if _, ok := reg.Get(Google); !ok {
			t.Error("google should still be registered")
		}
	})

	t.Run("reports every invalid provider", func(t *testing.T) {
		_, err := Resolve(Settings{
			Facebook: &OAuthSettings{},
			Twitter:  &TwitterSettings{ConsumerKey: "k"},
		}, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		for _, want := range []string{"provider facebook", "provider twitter"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q: expected to mention %q", err, want)
			}
		}
	})

	t.Run("both azure variants keep only v2", func(t *testing.T) {
		reg, err := Resolve(Settings{
			AzureADv1: &AzureSettings{OAuthSettings: OAuthSettings{ClientID: "v1", ClientSecret: "s1"}},
			AzureADv2: &AzureSettings{OAuthSettings: OAuthSettings{ClientID: "v2", ClientSecret: "s2"}},
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reg.Len() != 1 {
			t.Fatalf("Len: expected 1, got %d", reg.Len())
		}
		d, ok := reg.ByPath("azureAD")
		if !ok {
			t.Fatal("expected azureAD path to resolve")
		}
		if d.ID != AzureADv2 {
			t.Errorf("ID: expected azureADv2, got %s", d.ID)
		}
	})

	t.Run("azure v1 gets tenant and resource defaults", func(t *testing.T) {
		reg, _ := Resolve(Settings{AzureADv1: &AzureSettings{OAuthSettings: OAuthSettings{ClientID: "v1", ClientSecret: "s1"}}}, nil)
		d, _ := reg.Get(AzureADv1)
		if d.Tenant != "common" {
			t.Errorf("Tenant: expected common, got %q", d.Tenant)
		}
		if d.Resource != "https://graph.windows.net" {
			t.Errorf("Resource: expected graph.windows.net, got %q", d.Resource)
		}
	})

	t.Run("nil settings resolve to an empty registry", func(t *testing.T) {
		reg, err := Resolve(Settings{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reg.Len() != 0 {
			t.Errorf("Len: expected 0, got %d", reg.Len())
		}
	})
}

// --- Environment overrides ---

func TestResolveEnvOverride(t *testing.T) {
	t.Run("complete pair overrides explicit credentials", func(t *testing.T) {
		env := envMap(map[string]string{"GOOGLE_CLIENT_ID": "env-id", "GOOGLE_CLIENT_SECRET": "env-secret"})
		reg, err := Resolve(Settings{Google: &OAuthSettings{ClientID: "cfg-id", ClientSecret: "cfg-secret"}}, env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d, _ := reg.Get(Google)
		if d.Credentials.ClientID != "env-id" || d.Credentials.ClientSecret != "env-secret" {
			t.Errorf("Credentials: expected env values, got %+v", d.Credentials)
		}
	})

	t.Run("half a pair is ignored", func(t *testing.T) {
		env := envMap(map[string]string{"GOOGLE_CLIENT_ID": "env-id"})
		reg, _ := Resolve(Settings{Google: &OAuthSettings{ClientID: "cfg-id", ClientSecret: "cfg-secret"}}, env)
		d, _ := reg.Get(Google)
		if d.Credentials.ClientID != "cfg-id" {
			t.Errorf("ClientID: expected cfg-id, got %q", d.Credentials.ClientID)
		}
	})

	t.Run("env alone enables a provider", func(t *testing.T) {
		env := envMap(map[string]string{"TWITTER_CONSUMER_KEY": "k", "TWITTER_CONSUMER_SECRET": "s"})
		reg, err := Resolve(Settings{}, env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d, ok := reg.Get(Twitter)
		if !ok {
			t.Fatal("expected twitter to be enabled from env")
		}
		if d.ButtonText != "Log in with Twitter" {
			t.Errorf("ButtonText: expected default, got %q", d.ButtonText)
		}
	})

	t.Run("azure env keeps explicit tenant", func(t *testing.T) {
		env := envMap(map[string]string{"AZURE_AD_V2_CLIENT_ID": "id", "AZURE_AD_V2_CLIENT_SECRET": "s"})
		reg, _ := Resolve(Settings{AzureADv2: &AzureSettings{Tenant: "contoso.onmicrosoft.com"}}, env)
		d, ok := reg.Get(AzureADv2)
		if !ok {
			t.Fatal("expected azure v2 to be enabled")
		}
		if d.Tenant != "contoso.onmicrosoft.com" {
			t.Errorf("Tenant: expected contoso, got %q", d.Tenant)
		}
	})
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	t.Run("keeps prompt order", func(t *testing.T) {
		reg, _ := Resolve(Settings{
			GitHub:   &OAuthSettings{ClientID: "a", ClientSecret: "b"},
			Facebook: &OAuthSettings{ClientID: "a", ClientSecret: "b"},
			Google:   &OAuthSettings{ClientID: "a", ClientSecret: "b"},
		}, nil)
		var got []ID
		for _, d := range reg.Descriptors() {
			got = append(got, d.ID)
		}
		want := []ID{Facebook, Google, GitHub}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("button text falls back to id", func(t *testing.T) {
		reg := NewRegistry()
		if got := reg.ButtonText(Google); got != "google" {
			t.Errorf("expected google, got %q", got)
		}
	})

	t.Run("duplicate ids keep the first", func(t *testing.T) {
		reg := NewRegistry(
			Descriptor{ID: GitHub, ButtonText: "first"},
			Descriptor{ID: GitHub, ButtonText: "second"},
		)
		if reg.Len() != 1 || reg.ButtonText(GitHub) != "first" {
			t.Errorf("expected single first entry, got len=%d text=%q", reg.Len(), reg.ButtonText(GitHub))
		}
	})
}

// --- Scope serialization and endpoints ---

func TestScopeParam(t *testing.T) {
	cases := []struct {
		name string
		d    Descriptor
		want string
	}{
		{"azure joins with spaces", Descriptor{ID: AzureADv2, Scopes: []string{"openid", "profile", "User.Read"}}, "openid profile User.Read"},
		{"github joins with commas", Descriptor{ID: GitHub, Scopes: []string{"user", "repo"}}, "user,repo"},
		{"empty scopes", Descriptor{ID: Google}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.ScopeParam(); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEndpointsFor(t *testing.T) {
	t.Run("azure substitutes tenant", func(t *testing.T) {
		ep := EndpointsFor(Descriptor{ID: AzureADv1, Tenant: "contoso"})
		if ep.AuthURL != "https://login.microsoftonline.com/contoso/oauth2/authorize" {
			t.Errorf("AuthURL: got %q", ep.AuthURL)
		}
		if ep.Issuer != "" {
			t.Errorf("Issuer: expected empty, got %q", ep.Issuer)
		}
	})

	t.Run("azure v2 defaults to common", func(t *testing.T) {
		ep := EndpointsFor(Descriptor{ID: AzureADv2})
		if !strings.Contains(ep.AuthURL, "/common/oauth2/v2.0/authorize") {
			t.Errorf("AuthURL: got %q", ep.AuthURL)
		}
	})

	t.Run("twitter has a request token url", func(t *testing.T) {
		ep := EndpointsFor(Descriptor{ID: Twitter})
		if ep.RequestTokenURL == "" {
			t.Error("expected RequestTokenURL to be set")
		}
	})

	t.Run("google pins issuer and keys", func(t *testing.T) {
		ep := EndpointsFor(Descriptor{ID: Google})
		if ep.Issuer != "https://accounts.google.com" || ep.KeysURL == "" {
			t.Errorf("unexpected google endpoints: %+v", ep)
		}
	})
}

func TestIDPath(t *testing.T) {
	if AzureADv1.Path() != "azureAD" || AzureADv2.Path() != "azureAD" {
		t.Error("azure variants should share the azureAD path")
	}
	if Facebook.Path() != "facebook" {
		t.Errorf("expected facebook, got %q", Facebook.Path())
	}
	if ID("myspace").Valid() {
		t.Error("unknown id should not be valid")
	}
}

// --- LoadSettings ---

func TestLoadSettings(t *testing.T) {
	t.Run("parses yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "providers.yaml")
		body := `
facebook:
  clientId: fb-id
  clientSecret: fb-secret
azureADv2:
  clientId: az-id
  clientSecret: az-secret
  tenant: contoso
  scopes: [openid, profile]
twitter:
  consumerKey: tw-key
  consumerSecret: tw-secret
`
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		s, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if s.Facebook == nil || s.Facebook.ClientID != "fb-id" {
			t.Errorf("Facebook: got %+v", s.Facebook)
		}
		if s.AzureADv2 == nil || s.AzureADv2.Tenant != "contoso" || s.AzureADv2.ClientID != "az-id" {
			t.Errorf("AzureADv2: got %+v", s.AzureADv2)
		}
		if s.Twitter == nil || s.Twitter.ConsumerKey != "tw-key" {
			t.Errorf("Twitter: got %+v", s.Twitter)
		}
		if s.Google != nil {
			t.Error("Google: expected nil")
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
