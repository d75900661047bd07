package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHost(t *testing.T) {
	t.Run("unsupported kind", func(t *testing.T) {
		if _, err := NewHost("express", ""); !errors.Is(err, ErrUnsupportedHost) {
			t.Errorf("expected ErrUnsupportedHost, got %v", err)
		}
	})

	for _, kind := range []HostKind{HostChi, HostMux} {
		t.Run(string(kind)+" routes path params and query", func(t *testing.T) {
			h, err := NewHost(kind, "https://bot.example.com")
			if err != nil {
				t.Fatalf("NewHost: %v", err)
			}
			var gotParam, gotQuery string
			h.Handle(http.MethodGet, "/auth/{provider}", func(w http.ResponseWriter, r *Request) {
				gotParam = r.Param("provider")
				gotQuery = r.Query.Get("ticket")
				w.WriteHeader(http.StatusNoContent)
			})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/github?ticket=tk-1", nil))

			if rec.Code != http.StatusNoContent {
				t.Fatalf("status: expected 204, got %d", rec.Code)
			}
			if gotParam != "github" {
				t.Errorf("provider: expected %q, got %q", "github", gotParam)
			}
			if gotQuery != "tk-1" {
				t.Errorf("ticket: expected %q, got %q", "tk-1", gotQuery)
			}
		})

		t.Run(string(kind)+" rejects wrong method", func(t *testing.T) {
			h, _ := NewHost(kind, "https://bot.example.com")
			h.Handle(http.MethodGet, "/only-get", func(w http.ResponseWriter, r *Request) {})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/only-get", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status: expected 405, got %d", rec.Code)
			}
		})
	}
}

func TestChiHostBaseURL(t *testing.T) {
	h, _ := NewHost(HostChi, "https://bot.example.com/")
	got, ok := h.BaseURL()
	if !ok || got != "https://bot.example.com" {
		t.Errorf("base url: expected %q, got %q (ok=%v)", "https://bot.example.com", got, ok)
	}
}

func TestMuxHostBaseURL(t *testing.T) {
	t.Run("unknown before traffic", func(t *testing.T) {
		h := NewMuxHost(http.NewServeMux())
		if _, ok := h.BaseURL(); ok {
			t.Error("expected base url to be unknown")
		}
	})

	t.Run("learned from first request", func(t *testing.T) {
		h := NewMuxHost(http.NewServeMux())
		r := httptest.NewRequest("GET", "/anything", nil)
		r.Host = "bot.local:3978"
		h.ServeHTTP(httptest.NewRecorder(), r)

		got, ok := h.BaseURL()
		if !ok || got != "http://bot.local:3978" {
			t.Errorf("base url: expected %q, got %q", "http://bot.local:3978", got)
		}
	})

	t.Run("honours X-Forwarded-Proto", func(t *testing.T) {
		h := NewMuxHost(http.NewServeMux())
		r := httptest.NewRequest("GET", "/anything", nil)
		r.Host = "bot.example.com"
		r.Header.Set("X-Forwarded-Proto", "HTTPS, http")
		h.ServeHTTP(httptest.NewRecorder(), r)

		if got, _ := h.BaseURL(); got != "https://bot.example.com" {
			t.Errorf("base url: expected %q, got %q", "https://bot.example.com", got)
		}
	})

	t.Run("first request wins", func(t *testing.T) {
		h := NewMuxHost(http.NewServeMux())
		for _, host := range []string{"first.example.com", "second.example.com"} {
			r := httptest.NewRequest("GET", "/", nil)
			r.Host = host
			h.ServeHTTP(httptest.NewRecorder(), r)
		}
		if got, _ := h.BaseURL(); got != "http://first.example.com" {
			t.Errorf("base url: expected first host, got %q", got)
		}
	})

	t.Run("ignores requests without Host", func(t *testing.T) {
		h := NewMuxHost(http.NewServeMux())
		r := httptest.NewRequest("GET", "/", nil)
		r.Host = ""
		h.ServeHTTP(httptest.NewRecorder(), r)
		if _, ok := h.BaseURL(); ok {
			t.Error("expected base url to stay unknown")
		}
	})
}
