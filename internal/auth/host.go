// host.go -- Host server adapters.
//
// The callback routes are registered on a host the caller already runs.
// Two flavours are supported and chosen explicitly: a chi router, whose base
// URL is known when it is built, and a net/http ServeMux, whose base URL is
// learned from the first request it serves.
package auth

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrUnsupportedHost is returned by NewHost for an unknown host flavour.
var ErrUnsupportedHost = errors.New("unsupported host server")

// HostKind names a host flavour.
type HostKind string

const (
	HostChi HostKind = "chi"
	HostMux HostKind = "mux"
)

// Request is an inbound request normalised the same way on every host.
type Request struct {
	*http.Request
	Params map[string]string // path parameters, e.g. "provider"
	Query  url.Values
}

// Param returns a path parameter or "".
func (r *Request) Param(name string) string { return r.Params[name] }

// HandlerFunc handles a normalised request.
type HandlerFunc func(w http.ResponseWriter, r *Request)

// Host is a server the callback routes can be mounted on.
type Host interface {
	http.Handler

	// Handle registers fn for method and path. Path parameters use {name}.
	Handle(method, path string, fn HandlerFunc)

	// HandleHTTP registers a plain http.Handler.
	HandleHTTP(method, path string, h http.Handler)

	// BaseURL returns the public scheme://host the server is reachable at, once known.
	BaseURL() (string, bool)
}

// NewHost builds a fresh host of the given kind. baseURL is required for chi
// and ignored for mux, which learns it from traffic.
func NewHost(kind HostKind, baseURL string) (Host, error) {
	switch kind {
	case HostChi:
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(30 * time.Second))
		return NewChiHost(r, baseURL), nil
	case HostMux:
		return NewMuxHost(http.NewServeMux()), nil
	}
	return nil, ErrUnsupportedHost
}

// --- chi ---

// ChiHost mounts routes on a chi router.
type ChiHost struct {
	router  chi.Router
	baseURL string
}

// NewChiHost wraps r. baseURL is the address the router is served on.
func NewChiHost(r chi.Router, baseURL string) *ChiHost {
	return &ChiHost{router: r, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *ChiHost) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.router.ServeHTTP(w, r) }

func (h *ChiHost) Handle(method, path string, fn HandlerFunc) {
	h.router.MethodFunc(method, path, func(w http.ResponseWriter, r *http.Request) {
		params := map[string]string{}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, k := range rctx.URLParams.Keys {
				params[k] = rctx.URLParams.Values[i]
			}
		}
		fn(w, &Request{Request: r, Params: params, Query: requestQuery(r)})
	})
}

func (h *ChiHost) HandleHTTP(method, path string, handler http.Handler) {
	h.router.Method(method, path, handler)
}

func (h *ChiHost) BaseURL() (string, bool) { return h.baseURL, h.baseURL != "" }

// --- net/http ServeMux ---

// MuxHost mounts routes on a ServeMux and learns its base URL from traffic.
type MuxHost struct {
	mux *http.ServeMux

	mu      sync.RWMutex
	baseURL string
}

// NewMuxHost wraps mux. Serve the returned host, not mux, so the base URL is captured.
func NewMuxHost(mux *http.ServeMux) *MuxHost {
	return &MuxHost{mux: mux}
}

func (h *MuxHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.observe(r)
	h.mux.ServeHTTP(w, r)
}

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

func (h *MuxHost) Handle(method, path string, fn HandlerFunc) {
	var names []string
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		names = append(names, strings.TrimSuffix(m[1], "..."))
	}
	h.mux.HandleFunc(method+" "+path, func(w http.ResponseWriter, r *http.Request) {
		h.observe(r)
		params := make(map[string]string, len(names))
		for _, n := range names {
			params[n] = r.PathValue(n)
		}
		fn(w, &Request{Request: r, Params: params, Query: requestQuery(r)})
	})
}

func (h *MuxHost) HandleHTTP(method, path string, handler http.Handler) {
	h.mux.Handle(method+" "+path, handler)
}

func (h *MuxHost) BaseURL() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.baseURL, h.baseURL != ""
}

// observe records scheme://host from the first request that carries a Host.
func (h *MuxHost) observe(r *http.Request) {
	if _, ok := h.BaseURL(); ok || r.Host == "" {
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.baseURL == "" {
		h.baseURL = scheme + "://" + r.Host
	}
}
