// Package client implements the tokgate request protocol on the dialing side.
//
// A Client wraps one transport.ClientConn. Login opens a bidirectional stream
// and returns a Session that carries the issued credential; every Get on the
// session presents it again. Anonymous GETs, uploads and datagram pings use
// their own streams and never need a login.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/transport"
	"github.com/yndnr/tokgate/internal/transport/quictransport"
)

// DefaultMaxResponse bounds the bytes accepted for one response.
const DefaultMaxResponse = 16 << 20

// Option configures a Client.
type Option func(*Client)

// WithMaxResponse sets the largest response a Get accepts.
func WithMaxResponse(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponse = n
		}
	}
}

// Client issues requests over one established connection.
type Client struct {
	conn        transport.ClientConn
	maxResponse int
}

// New wraps an established connection.
func New(conn transport.ClientConn, opts ...Option) *Client {
	c := &Client{conn: conn, maxResponse: DefaultMaxResponse}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to a tokgate server over QUIC.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, cfg quictransport.Config, opts ...Option) (*Client, error) {
	conn, err := quictransport.Dial(ctx, addr, tlsConf, cfg)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() transport.ClientConn {
	return c.conn
}

// Close ends the connection with the graceful close code.
func (c *Client) Close() error {
	return c.conn.CloseWithError(transport.CloseCodeDone, "")
}

// Login opens a stream and authenticates on it.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	s, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { s.Reset(domain.StreamCodeNone) })
	defer stop()

	body, err := json.Marshal(domain.Login{Username: username, Password: password})
	if err != nil {
		s.Reset(domain.StreamCodeInternal)
		return nil, err
	}
	req := make([]byte, 0, len(body)+32)
	req = append(req, "POST /login\r\n"...)
	req = strconv.AppendInt(req, int64(len(body)), 10)
	req = append(req, "\r\n"...)
	req = append(req, body...)
	if _, err := s.Write(req); err != nil {
		return nil, ctxErr(ctx, streamError(err))
	}

	var session domain.Session
	if err := json.NewDecoder(s).Decode(&session); err != nil {
		s.Reset(domain.StreamCodeNone)
		return nil, ctxErr(ctx, streamError(err))
	}

	return &Session{
		client:  c,
		stream:  s,
		session: session,
		buf:     make([]byte, c.maxResponse),
	}, nil
}

// Get fetches name on a fresh stream without logging in. The server must
// allow anonymous requests.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	s, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { s.Reset(domain.StreamCodeNone) })
	defer stop()

	if _, err := s.Write([]byte("GET " + name + "\r\n")); err != nil {
		return nil, ctxErr(ctx, streamError(err))
	}
	if err := s.Close(); err != nil {
		return nil, ctxErr(ctx, streamError(err))
	}

	data, err := io.ReadAll(io.LimitReader(s, int64(c.maxResponse)+1))
	if err != nil {
		return nil, ctxErr(ctx, streamError(err))
	}
	if len(data) > c.maxResponse {
		s.Reset(domain.StreamCodeNone)
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxResponse)
	}
	return data, nil
}

// Upload sends data on a unidirectional stream.
//
// The server acknowledges nothing, so a rejected upload is only reported
// when the reset arrives before the write completes.
func (c *Client) Upload(ctx context.Context, data []byte) error {
	s, err := c.conn.OpenUniStream(ctx)
	if err != nil {
		return fmt.Errorf("open uni stream: %w", err)
	}
	if _, err := s.Write(data); err != nil {
		return streamError(err)
	}
	return streamError(s.Close())
}

// Ping sends msg as a datagram and waits for the reply.
func (c *Client) Ping(ctx context.Context, msg string) (string, error) {
	if err := c.conn.SendDatagram([]byte(msg)); err != nil {
		return "", fmt.Errorf("send datagram: %w", err)
	}
	reply, err := c.conn.ReceiveDatagram(ctx)
	if err != nil {
		return "", fmt.Errorf("receive datagram: %w", err)
	}
	return string(reply), nil
}

// Session is an authenticated stream.
type Session struct {
	client  *Client
	stream  transport.Stream
	session domain.Session
	buf     []byte
}

// Credential returns the session issued at login.
func (s *Session) Credential() domain.Session {
	return s.session
}

// Get presents the session and fetches name.
//
// Responses are not framed: the reply is the payload of a single read, so a
// file larger than one transport read is truncated, and an empty file shows
// up as the context expiring.
func (s *Session) Get(ctx context.Context, name string) ([]byte, error) {
	return s.Present(ctx, s.session, name)
}

// Present fetches name presenting cred instead of the login credential.
func (s *Session) Present(ctx context.Context, cred domain.Session, name string) ([]byte, error) {
	header, err := json.Marshal(cred)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { s.stream.Reset(domain.StreamCodeNone) })
	defer stop()

	req := make([]byte, 0, len(header)+len(name)+32)
	req = append(req, "Authentication Bearer "...)
	req = append(req, header...)
	req = append(req, "\r\nGET "...)
	req = append(req, name...)
	req = append(req, "\r\n"...)
	if _, err := s.stream.Write(req); err != nil {
		return nil, ctxErr(ctx, streamError(err))
	}

	n, err := s.stream.Read(s.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return out, nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, ctxErr(ctx, streamError(err))
}

// Close finishes the stream. The server then ends it as well.
func (s *Session) Close() error {
	return s.stream.Close()
}

// streamError maps a reset received from the server to its domain error.
func streamError(err error) error {
	if err == nil {
		return nil
	}
	var se *transport.StreamResetError
	if errors.As(err, &se) && se.Remote {
		return domain.ErrorForStreamCode(se.Code).WithCause(err)
	}
	return err
}

// ctxErr prefers the context error when ctx ended the operation.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
