// router.go -- /auth/* routes bridging provider callbacks to the coordinator.
//
// Provider-specific logic lives in internal/oauth; binding to a conversation
// and code issuance live in internal/handshake.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/MGallo-Code/botauth/internal/handshake"
)

// Handshaker is the coordinator surface the routes need.
// Satisfied by *handshake.Coordinator -- defined here (at consumer) per Go convention.
type Handshaker interface {
	// Begin returns the provider consent URL for a ticket.
	Begin(ctx context.Context, ticketID, providerPath string) (string, error)

	// Finish completes a callback and returns the ticket id and magic code.
	Finish(ctx context.Context, providerPath string, params url.Values) (string, string, error)

	// MagicCodeRedirect returns the custom code page, or "".
	MagicCodeRedirect() string

	// CheckHealth reports the backing store's health.
	CheckHealth(ctx context.Context) error
}

// HealthChecker reports whether a backing service is reachable.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go convention.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CallbackRouter serves the browser half of the handshake.
type CallbackRouter struct {
	HS    Handshaker
	Audit HealthChecker // nil when the audit trail is disabled
}

// Register mounts the callback routes on host. audit may be nil.
func Register(host Host, hs Handshaker, audit HealthChecker) *CallbackRouter {
	cr := &CallbackRouter{HS: hs, Audit: audit}
	host.Handle(http.MethodGet, "/auth/failure", cr.Failure)
	host.Handle(http.MethodGet, "/auth/callback", cr.Callback)
	host.Handle(http.MethodPost, "/auth/callback", cr.Callback)
	host.Handle(http.MethodGet, "/auth/{provider}", cr.Begin)
	host.Handle(http.MethodGet, "/auth/{provider}/callback", cr.ProviderCallback)
	host.Handle(http.MethodPost, "/auth/{provider}/callback", cr.ProviderCallback)
	host.Handle(http.MethodGet, "/health", cr.CheckHealth)
	return cr
}

// Begin handles GET /auth/{provider}?ticket=... -- records the choice and
// redirects the browser to the provider's consent page.
func (cr *CallbackRouter) Begin(w http.ResponseWriter, r *Request) {
	ticket := r.Query.Get("ticket")
	if ticket == "" {
		logWarn(r.Request, "auth begin: missing ticket")
		RedirectToFailure(w, r.Request)
		return
	}

	authURL, err := cr.HS.Begin(r.Context(), ticket, r.Param("provider"))
	if err != nil {
		cr.fail(w, r, "auth begin", err)
		return
	}
	http.Redirect(w, r.Request, authURL, http.StatusFound)
}

// ProviderCallback handles GET and POST /auth/{provider}/callback -- completes
// the exchange and shows the code in the same response.
func (cr *CallbackRouter) ProviderCallback(w http.ResponseWriter, r *Request) {
	params, err := callbackParams(r)
	if err != nil {
		logWarn(r.Request, "provider callback: bad form body", "error", err)
		RedirectToFailure(w, r.Request)
		return
	}

	_, code, err := cr.HS.Finish(r.Context(), r.Param("provider"), params)
	if err != nil {
		cr.fail(w, r, "provider callback", err)
		return
	}
	logInfo(r.Request, "provider callback completed", "provider", r.Param("provider"))
	cr.showCode(w, r, code)
}

// Callback handles GET and POST /auth/callback -- completes the exchange for
// the ticket in "state" and shows the code. The code is only ever shown to the
// browser that brought the grant back; a bare ticket shows nothing.
func (cr *CallbackRouter) Callback(w http.ResponseWriter, r *Request) {
	params, err := callbackParams(r)
	if err != nil {
		logWarn(r.Request, "auth callback: bad form body", "error", err)
		RedirectToFailure(w, r.Request)
		return
	}
	if !params.Has("code") && !params.Has("error") {
		logWarn(r.Request, "auth callback: no provider grant")
		RedirectToFailure(w, r.Request)
		return
	}

	_, code, err := cr.HS.Finish(r.Context(), "", params)
	if err != nil {
		cr.fail(w, r, "auth callback", err)
		return
	}
	cr.showCode(w, r, code)
}

// showCode renders code on the plain text page or hands it to the custom endpoint.
func (cr *CallbackRouter) showCode(w http.ResponseWriter, r *Request, code string) {
	if endpoint := cr.HS.MagicCodeRedirect(); endpoint != "" {
		RedirectWithMagicCode(w, r.Request, endpoint, code)
		return
	}
	MagicCodePage(w, code)
}

// Failure handles GET /auth/failure.
func (cr *CallbackRouter) Failure(w http.ResponseWriter, r *Request) {
	Unauthorized(w, FailureMessage)
}

// fail logs err and ends the flow: 404 for unknown providers, the failure page otherwise.
func (cr *CallbackRouter) fail(w http.ResponseWriter, r *Request, op string, err error) {
	switch {
	case errors.Is(err, handshake.ErrUnknownProvider):
		logWarn(r.Request, op+": unknown provider", "provider", r.Param("provider"))
		NotFound(w)
		return
	case errors.Is(err, handshake.ErrInvalidTicket):
		logWarn(r.Request, op+": no usable ticket", "error", err)
	default:
		logError(r.Request, op+": failed", "error", err)
	}
	RedirectToFailure(w, r.Request)
}

// callbackParams returns the query, plus the form body for POST callbacks
// (Azure AD form_post, Twitter).
func callbackParams(r *Request) (url.Values, error) {
	if r.Method != http.MethodPost {
		return r.Query, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return mergeValues(r.Query, r.PostForm), nil
}

func mergeValues(a, b url.Values) url.Values {
	out := make(url.Values, len(a)+len(b))
	for k, vs := range a {
		out[k] = append([]string(nil), vs...)
	}
	for k, vs := range b {
		out[k] = append(out[k], vs...)
	}
	return out
}
