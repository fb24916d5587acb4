package domain

import (
	"log/slog"
	"sync/atomic"
)

// SecretSize is the size of the per-connection binding secret.
const SecretSize = 32

// Secret is the key material exported from a connection's TLS key schedule.
// It is derived once per connection and copied by value into every stream
// task. It must never be logged or transmitted.
type Secret [SecretSize]byte

const redactedSecret = "***REDACTED***"

// String implements fmt.Stringer without revealing the secret.
func (s Secret) String() string { return redactedSecret }

// GoString implements fmt.GoStringer without revealing the secret.
func (s Secret) GoString() string { return redactedSecret }

// LogValue implements slog.LogValuer without revealing the secret.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redactedSecret) }

// Bytes returns a copy of the secret as a slice.
func (s Secret) Bytes() []byte {
	b := make([]byte, SecretSize)
	copy(b, s[:])
	return b
}

// SecretFromBytes copies exported key material into a Secret.
// ok is false when b is not exactly SecretSize bytes.
func SecretFromBytes(b []byte) (s Secret, ok bool) {
	if len(b) != SecretSize {
		return s, false
	}
	copy(s[:], b)
	return s, true
}

// Login is the body of a login request.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LogValue implements slog.LogValuer and omits the password.
func (l Login) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", l.Username))
}

// Session is the bearer credential issued after a successful login.
//
// Token is a Base64 random value; Signature is the Base64 HMAC-SHA256 of
// Token keyed by the issuing connection's Secret. Sessions are stateless and
// are only valid on the connection that issued them.
type Session struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// ConnState is the lifecycle state of an accepted connection.
type ConnState int32

const (
	ConnActive ConnState = iota
	ConnClosing
	ConnClosed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case ConnActive:
		return "active"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AtomicConnState is a ConnState safe for concurrent use.
type AtomicConnState struct {
	v atomic.Int32
}

// Load returns the current state.
func (a *AtomicConnState) Load() ConnState { return ConnState(a.v.Load()) }

// Advance moves the state forward to next. States never move backwards;
// it reports whether the state changed.
func (a *AtomicConnState) Advance(next ConnState) bool {
	for {
		cur := a.v.Load()
		if ConnState(cur) >= next {
			return false
		}
		if a.v.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}
