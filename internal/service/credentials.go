package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	alnumRegex    = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	resetTokenHex = regexp.MustCompile(`^[0-9a-f]{64}$`)
	lowerCaser    = cases.Lower(language.Und)
)

const minPasswordLength = 5

// NormalizeEmail trims, applies NFC and lower-cases an address so lookups
// are case-insensitive.
func NormalizeEmail(email string) string {
	return lowerCaser.String(norm.NFC.String(strings.TrimSpace(email)))
}

// ValidEmail reports whether email looks like a deliverable address.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(email)
}

// passwordProblem returns the first password rule violated, or "".
func passwordProblem(password string) string {
	if len(password) < minPasswordLength {
		return "Password must be at least 5 characters long"
	}
	if !alnumRegex.MatchString(password) {
		return "Password should contain only letters and numbers"
	}
	return ""
}

// newOpaqueToken returns 32 random bytes encoded as unpadded base64url.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newResetToken returns 32 random bytes hex-encoded.
func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SessionKey derives the storage key for a session token, so a leaked
// session table does not yield usable cookies.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
