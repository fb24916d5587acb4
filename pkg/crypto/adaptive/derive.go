package adaptive

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of keys produced by DeriveKey.
const KeySize = 32

// ErrEmptyPassphrase is returned when DeriveKey is given no input material.
var ErrEmptyPassphrase = errors.New("adaptive: empty passphrase")

// DeriveKey expands passphrase into a KeySize key bound to info.
func DeriveKey(passphrase, info string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
