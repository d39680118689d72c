package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// NewCodeVerifier returns a 43-character PKCE code verifier built from
// 32 bytes of crypto/rand output, base64url-encoded without padding.
func NewCodeVerifier() (string, error) {
	return randomURLSafe(32)
}

// CodeChallengeS256 derives the S256 code challenge for a verifier:
// the base64url encoding, without padding, of the verifier's SHA-256 hash.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewState returns a random value round-tripped through the authorize URL
// to bind the callback to the login attempt that started it.
func NewState() (string, error) {
	return randomURLSafe(24)
}

// NewNonce returns a random OIDC nonce expected back in the ID token.
func NewNonce() (string, error) {
	return randomURLSafe(24)
}

// randomURLSafe returns n random bytes base64url-encoded without padding.
func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
