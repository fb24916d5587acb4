// Package quictransport adapts quic-go connections to the transport interfaces.
package quictransport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/yndnr/tokgate/internal/transport"
)

// ALPN is the application protocol negotiated on every tokgate connection.
const ALPN = "tokgate/1"

// Config holds transport parameters shared by listeners and dialers.
type Config struct {
	// IdleTimeout closes a connection after this long without activity.
	IdleTimeout time.Duration

	// KeepAlive sends keep-alive packets at this period. Zero disables them.
	KeepAlive time.Duration

	// MaxStreams bounds concurrently open incoming streams per direction kind.
	MaxStreams int64
}

// DefaultConfig returns default transport parameters.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Second,
		MaxStreams:  100,
	}
}

func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        c.IdleTimeout,
		KeepAlivePeriod:       c.KeepAlive,
		MaxIncomingStreams:    c.MaxStreams,
		MaxIncomingUniStreams: c.MaxStreams,
		EnableDatagrams:       true,
	}
}

// withALPN returns a copy of tlsConf that offers only ALPN, whatever the
// caller set, and requires TLS 1.3.
func withALPN(tlsConf *tls.Config) *tls.Config {
	conf := tlsConf.Clone()
	conf.NextProtos = []string{ALPN}
	if conf.MinVersion < tls.VersionTLS13 {
		conf.MinVersion = tls.VersionTLS13
	}
	return conf
}

// Listener accepts QUIC connections.
type Listener struct {
	ln     *quic.Listener
	closed atomic.Bool
}

// Listen starts listening for QUIC connections on the UDP address addr.
func Listen(addr string, tlsConf *tls.Config, cfg Config) (*Listener, error) {
	if tlsConf == nil {
		return nil, errors.New("quictransport: tls config is required")
	}
	ln, err := quic.ListenAddr(addr, withALPN(tlsConf), cfg.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quictransport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept implements transport.Listener.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	c, err := l.ln.Accept(ctx)
	if err != nil {
		if l.closed.Load() {
			return nil, transport.ErrListenerClosed
		}
		return nil, mapErr(err)
	}
	return &conn{c: c}, nil
}

// Close implements transport.Listener.
func (l *Listener) Close() error {
	l.closed.Store(true)
	return l.ln.Close()
}

// Addr implements transport.Listener.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Dial establishes a QUIC connection to addr.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, cfg Config) (transport.ClientConn, error) {
	if tlsConf == nil {
		return nil, errors.New("quictransport: tls config is required")
	}
	c, err := quic.DialAddr(ctx, addr, withALPN(tlsConf), cfg.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quictransport: dial %s: %w", addr, mapErr(err))
	}
	return &conn{c: c}, nil
}

// conn serves as both transport.Conn and transport.ClientConn.
type conn struct {
	c quic.Connection
}

func (c *conn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	s, err := c.c.AcceptStream(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &stream{s: s}, nil
}

func (c *conn) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	s, err := c.c.AcceptUniStream(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &receiveStream{s: s}, nil
}

func (c *conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	s, err := c.c.OpenStreamSync(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &stream{s: s}, nil
}

func (c *conn) OpenUniStream(ctx context.Context) (transport.SendStream, error) {
	s, err := c.c.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sendStream{s: s}, nil
}

func (c *conn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	b, err := c.c.ReceiveDatagram(ctx)
	return b, mapErr(err)
}

func (c *conn) SendDatagram(b []byte) error {
	return mapErr(c.c.SendDatagram(b))
}

func (c *conn) ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error) {
	state := c.c.ConnectionState().TLS
	return state.ExportKeyingMaterial(label, context, length)
}

func (c *conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

func (c *conn) CloseWithError(code uint64, reason string) error {
	return c.c.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

type stream struct {
	s quic.Stream
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.s.Read(p)
	return n, mapErr(err)
}

func (s *stream) Write(p []byte) (int, error) {
	n, err := s.s.Write(p)
	return n, mapErr(err)
}

func (s *stream) Close() error {
	return mapErr(s.s.Close())
}

func (s *stream) Reset(code uint64) {
	s.s.CancelRead(quic.StreamErrorCode(code))
	s.s.CancelWrite(quic.StreamErrorCode(code))
}

type receiveStream struct {
	s quic.ReceiveStream
}

func (s *receiveStream) Read(p []byte) (int, error) {
	n, err := s.s.Read(p)
	return n, mapErr(err)
}

func (s *receiveStream) Reset(code uint64) {
	s.s.CancelRead(quic.StreamErrorCode(code))
}

type sendStream struct {
	s quic.SendStream
}

func (s *sendStream) Write(p []byte) (int, error) {
	n, err := s.s.Write(p)
	return n, mapErr(err)
}

func (s *sendStream) Close() error {
	return mapErr(s.s.Close())
}

func (s *sendStream) Reset(code uint64) {
	s.s.CancelWrite(quic.StreamErrorCode(code))
}

// mapErr translates quic-go errors into the transport error vocabulary.
// io.EOF and context errors pass through unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return &transport.ConnectionError{
			Code:   uint64(appErr.ErrorCode),
			Reason: appErr.ErrorMessage,
			Remote: appErr.Remote,
		}
	}

	var idleErr *quic.IdleTimeoutError
	if errors.As(err, &idleErr) {
		return fmt.Errorf("%w: %v", transport.ErrTimedOut, err)
	}

	var hsErr *quic.HandshakeTimeoutError
	if errors.As(err, &hsErr) {
		return fmt.Errorf("%w: %v", transport.ErrTimedOut, err)
	}

	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) {
		return &transport.StreamResetError{
			Code:   uint64(streamErr.ErrorCode),
			Remote: streamErr.Remote,
		}
	}

	return err
}
