package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const sessionTokenBytes = 32

// GenerateSessionToken returns 32 random bytes encoded base64url without padding.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type TokenHasher struct {
	pepper []byte
}

func NewTokenHasher(pepper string) *TokenHasher {
	return &TokenHasher{pepper: []byte(pepper)}
}

// Hash returns the hex HMAC-SHA256 of raw. Only this value is persisted.
func (h *TokenHasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
