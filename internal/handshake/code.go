// code.go -- Magic code and ticket generation.
package handshake

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// MinMagicCodeBytes is the smallest accepted code length: 4 bytes, 8 hex characters.
const MinMagicCodeBytes = 4

// GenerateMagicCode returns n random bytes as lower-case hex.
func GenerateMagicCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating magic code with rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateTicketID returns a 128-bit random URL-safe id.
func GenerateTicketID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating ticket id with rand: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// CheckCode compares submitted text against the issued code, ignoring case.
// Returns ErrCodeMismatch on any difference, including empty or padded input.
func CheckCode(submitted, issued string) error {
	if issued == "" {
		return ErrCodeMismatch
	}
	a := []byte(strings.ToLower(submitted))
	b := []byte(strings.ToLower(issued))
	if subtle.ConstantTimeCompare(a, b) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
