// Package transport defines the connection abstraction tokgate runs on.
//
// A Conn is a secure, authenticated, multiplexed connection carrying
// bidirectional streams, unidirectional streams and unreliable datagrams,
// plus a way to derive key material bound to that connection. Adapters live
// in subpackages: quictransport (QUIC via quic-go) and memtransport
// (in-process, for tests and embedding).
package transport

import (
	"context"
	"io"
	"net"
)

// Listener accepts inbound connections.
type Listener interface {
	// Accept blocks until a connection is established or ctx is done.
	// After Close it returns ErrListenerClosed.
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// Conn is the server side of an established connection.
type Conn interface {
	AcceptStream(ctx context.Context) (Stream, error)
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	SendDatagram(b []byte) error

	// ExportKeyingMaterial derives length bytes from the connection's key
	// schedule (RFC 5705 / RFC 8446 §7.5). Both endpoints obtain the same value.
	ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error)

	RemoteAddr() net.Addr
	CloseWithError(code uint64, reason string) error
}

// ClientConn is the dialing side of an established connection.
type ClientConn interface {
	OpenStream(ctx context.Context) (Stream, error)
	OpenUniStream(ctx context.Context) (SendStream, error)
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	SendDatagram(b []byte) error
	ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error)
	RemoteAddr() net.Addr
	CloseWithError(code uint64, reason string) error
}

// Stream is a bidirectional byte stream.
//
// Read returns io.EOF once the peer finished its send side. Close finishes
// the local send side only. Reset aborts both directions with code; the peer
// observes a *StreamResetError.
type Stream interface {
	io.Reader
	io.Writer
	Close() error
	Reset(code uint64)
}

// ReceiveStream is the accepting side of a unidirectional stream.
type ReceiveStream interface {
	io.Reader
	Reset(code uint64)
}

// SendStream is the opening side of a unidirectional stream.
type SendStream interface {
	io.Writer
	Close() error
	Reset(code uint64)
}

// Connection close codes.
const (
	CloseCodeDone          uint64 = 0x0
	CloseCodeProtocolError uint64 = 0x1
	CloseCodeInternalError uint64 = 0x2
)
