// responses.go -- Package-wide HTTP response helpers.
//
// All JSON messages are fixed ASCII; no user-controlled input is interpolated.
package auth

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// FailurePath is where every failed browser flow ends up.
const FailurePath = "/auth/failure"

// FailureMessage is the body of the failure page.
const FailureMessage = "Authentication Failed"

// MagicCodePrompt precedes the code on the plain text callback page.
const MagicCodePrompt = "Please enter the code into the bot: "

// Unauthorized returns a 401 JSON response with the given message.
func Unauthorized(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusUnauthorized, message)
}

// NotFound returns a 404 JSON response.
func NotFound(w http.ResponseWriter) {
	writeMessage(w, http.StatusNotFound, "not found")
}

// RedirectToFailure sends the browser to the failure page.
func RedirectToFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, FailurePath, http.StatusFound)
}

// MagicCodePage shows the code as plain text.
func MagicCodePage(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, MagicCodePrompt+code)
}

// RedirectWithMagicCode sends the browser to endpoint with ?magicCode= appended.
func RedirectWithMagicCode(w http.ResponseWriter, r *http.Request, endpoint, code string) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, endpoint+sep+"magicCode="+url.QueryEscape(code), http.StatusFound)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"message":"` + message + `"}`))
}
