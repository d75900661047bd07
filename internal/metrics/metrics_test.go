package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("counts handshakes by outcome and provider", func(t *testing.T) {
		m, err := New(prometheus.NewRegistry())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		m.Handshake("succeeded", provider.GitHub)
		m.Handshake("succeeded", provider.GitHub)
		m.Handshake("mismatch", provider.GitHub)

		if got := testutil.ToFloat64(m.handshakes.WithLabelValues("succeeded", "github")); got != 2 {
			t.Errorf("succeeded: expected 2, got %v", got)
		}
		if got := testutil.ToFloat64(m.handshakes.WithLabelValues("mismatch", "github")); got != 1 {
			t.Errorf("mismatch: expected 1, got %v", got)
		}
	})

	t.Run("splits exchanges by result", func(t *testing.T) {
		m, _ := New(prometheus.NewRegistry())
		m.Exchange(provider.Google, nil, 10*time.Millisecond)
		m.Exchange(provider.Google, errors.New("x"), 5*time.Millisecond)

		if got := testutil.ToFloat64(m.exchanges.WithLabelValues("google", "ok")); got != 1 {
			t.Errorf("ok: expected 1, got %v", got)
		}
		if got := testutil.ToFloat64(m.exchanges.WithLabelValues("google", "error")); got != 1 {
			t.Errorf("error: expected 1, got %v", got)
		}
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var m *Metrics
		m.Handshake("prompted", provider.Facebook)
		m.Exchange(provider.Facebook, nil, time.Second)
	})

	t.Run("registering twice reuses collectors", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if _, err := New(reg); err != nil {
			t.Fatalf("first New: %v", err)
		}
		if _, err := New(reg); err != nil {
			t.Errorf("second New: expected nil, got %v", err)
		}
	})

	t.Run("handler exposes counters", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m, _ := New(reg)
		m.Handshake("prompted", provider.Twitter)

		w := httptest.NewRecorder()
		Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `botauth_handshake_events_total{outcome="prompted",provider="twitter"} 1`) {
			t.Errorf("expected counter in output, got:\n%s", w.Body.String())
		}
	})
}
