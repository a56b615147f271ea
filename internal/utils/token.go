package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy of verification and reset tokens (256 bits).
const TokenBytes = 32

// NewToken returns a 64-character hex string from 32 random bytes.
func NewToken() (string, error) {
	return randomHex(TokenBytes)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
