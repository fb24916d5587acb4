// Package adaptive provides authenticated encryption for data at rest.
//
// Supported Algorithms:
//
//   - AES-256-GCM: preferred when hardware AES support is available
//   - ChaCha20-Poly1305: fallback for systems without AES instructions
//
// Keys are derived from an operator-supplied passphrase with HKDF-SHA256
// (DeriveKey), so the configured value never touches the cipher directly.
//
// Ciphertext layout: nonce || sealed(plaintext, aad).
//
// Usage:
//
//	key, err := adaptive.DeriveKey(passphrase, "tokgate-uploads")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
