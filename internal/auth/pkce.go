package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// MinVerifierLength and MaxVerifierLength bound the PKCE code verifier (RFC 7636).
	MinVerifierLength = 43
	MaxVerifierLength = 128

	DefaultVerifierLength = 64

	stateLength = 32
)

const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// PKCE holds the code verifier, its S256 challenge and the CSRF state of one login attempt.
type PKCE struct {
	Verifier  string
	Challenge string
	State     string
}

// NewPKCE generates a verifier of the given length. Lengths outside
// [MinVerifierLength, MaxVerifierLength] are rejected; zero selects the default.
func NewPKCE(length int) (*PKCE, error) {
	if length == 0 {
		length = DefaultVerifierLength
	}
	if length < MinVerifierLength || length > MaxVerifierLength {
		return nil, fmt.Errorf("verifier length %d outside %d-%d", length, MinVerifierLength, MaxVerifierLength)
	}

	verifier, err := randomString(length)
	if err != nil {
		return nil, err
	}
	state, err := randomString(stateLength)
	if err != nil {
		return nil, err
	}

	return &PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		State:     state,
	}, nil
}

// randomString draws length characters from the unreserved URL alphabet.
func randomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = verifierAlphabet[int(b)%len(verifierAlphabet)]
	}
	return string(buf), nil
}
