// Package token provides session token generation and signing utilities.
//
// Token Format:
//
//   - Body: 32 random bytes from crypto/rand
//   - Encoding: standard Base64 with padding (44 characters)
//
// Signature Format:
//
//   - HMAC-SHA256 over the encoded token string, keyed by a
//     connection-bound secret
//   - Encoding: standard Base64 with padding (44 characters)
//
// Password Hash Format:
//
//   - SHA-256 of the UTF-8 password, standard Base64 encoded
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - All comparisons are constant-time
package token
