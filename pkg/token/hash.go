package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Sign computes the Base64 HMAC-SHA256 of token keyed by key.
func Sign(key []byte, token string) string {
	return base64.StdEncoding.EncodeToString(mac(key, token))
}

// VerifySignature reports whether signature is the valid HMAC of token under key.
//
// The signature must be canonical padded Base64: encodings with non-zero
// trailing bits decode to the same bytes and are rejected, so every
// altered character fails. Uses constant-time comparison.
func VerifySignature(key []byte, token, signature string) bool {
	got, err := base64.StdEncoding.Strict().DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(key, token))
}

func mac(key []byte, token string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(token))
	return m.Sum(nil)
}

// HashPassword computes the Base64 SHA-256 hash of a password.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(h[:])
}

// VerifyPassword verifies a password against an expected Base64 SHA-256 hash.
//
// Uses constant-time comparison to prevent timing attacks.
func VerifyPassword(password, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(expectedHash)) == 1
}
