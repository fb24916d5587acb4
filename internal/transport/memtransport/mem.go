// Package memtransport is an in-process implementation of the transport
// interfaces. Each connected pair derives its own exporter key material,
// so sessions bound on one pair never verify on another.
package memtransport

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/tokgate/internal/transport"
)

const (
	sideServer = 0
	sideClient = 1

	acceptBacklog   = 64
	datagramBacklog = 64
)

// Addr is the address of an in-process endpoint.
type Addr string

// Network implements net.Addr.
func (a Addr) Network() string { return "mem" }

func (a Addr) String() string { return string(a) }

var pairSeq atomic.Uint64

// link is the state shared by both endpoints of a pair.
type link struct {
	key []byte

	mu       sync.Mutex
	closed   bool
	closer   int
	code     uint64
	reason   string
	timedOut bool
	pipes    []*pipe

	done   chan struct{}
	bidi   [2]chan *stream
	uni    [2]chan *receiveStream
	dgrams [2]chan []byte
	addrs  [2]net.Addr
}

// Conn is one endpoint of an in-process connection. It implements both
// transport.Conn and transport.ClientConn.
type Conn struct {
	l    *link
	side int
}

var (
	_ transport.Conn       = (*Conn)(nil)
	_ transport.ClientConn = (*Conn)(nil)
)

// Pair returns two connected endpoints.
func Pair() (server, client *Conn) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("memtransport: random source: %v", err))
	}

	n := pairSeq.Add(1)
	l := &link{
		key:  key,
		done: make(chan struct{}),
		addrs: [2]net.Addr{
			Addr(fmt.Sprintf("mem-server:%d", n)),
			Addr(fmt.Sprintf("mem-client:%d", n)),
		},
	}
	for i := 0; i < 2; i++ {
		l.bidi[i] = make(chan *stream, acceptBacklog)
		l.uni[i] = make(chan *receiveStream, acceptBacklog)
		l.dgrams[i] = make(chan []byte, datagramBacklog)
	}
	return &Conn{l: l, side: sideServer}, &Conn{l: l, side: sideClient}
}

func (c *Conn) peer() int { return 1 - c.side }

// closeErr returns the error observed by side after the link closed.
func (l *link) closeErr(side int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timedOut {
		return fmt.Errorf("%w: no recent network activity", transport.ErrTimedOut)
	}
	return &transport.ConnectionError{Code: l.code, Reason: l.reason, Remote: side != l.closer}
}

func (l *link) register(ps ...*pipe) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errClosed
	}
	l.pipes = append(l.pipes, ps...)
	return nil
}

var errClosed = fmt.Errorf("memtransport: connection closed")

func (l *link) close(closer int, code uint64, reason string, timedOut bool) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.closer = closer
	l.code = code
	l.reason = reason
	l.timedOut = timedOut
	pipes := l.pipes
	l.pipes = nil
	l.mu.Unlock()

	close(l.done)
	for _, p := range pipes {
		writer := 1 - p.reader
		p.abort(l.closeErr(p.reader), l.closeErr(writer))
	}
	return nil
}

// OpenStream implements transport.ClientConn. Streams may be opened from
// either endpoint; the other endpoint accepts them with AcceptStream.
func (c *Conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	toPeer := newPipe(c.peer())
	fromPeer := newPipe(c.side)
	if err := c.l.register(toPeer, fromPeer); err != nil {
		return nil, c.l.closeErr(c.side)
	}

	local := &stream{in: fromPeer, out: toPeer}
	remote := &stream{in: toPeer, out: fromPeer}

	select {
	case c.l.bidi[c.peer()] <- remote:
		return local, nil
	case <-c.l.done:
		return nil, c.l.closeErr(c.side)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OpenUniStream implements transport.ClientConn.
func (c *Conn) OpenUniStream(ctx context.Context) (transport.SendStream, error) {
	p := newPipe(c.peer())
	if err := c.l.register(p); err != nil {
		return nil, c.l.closeErr(c.side)
	}

	select {
	case c.l.uni[c.peer()] <- &receiveStream{in: p}:
		return &sendStream{out: p}, nil
	case <-c.l.done:
		return nil, c.l.closeErr(c.side)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcceptStream implements transport.Conn.
func (c *Conn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-c.l.bidi[c.side]:
		return s, nil
	case <-c.l.done:
		return nil, c.l.closeErr(c.side)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcceptUniStream implements transport.Conn.
func (c *Conn) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case s := <-c.l.uni[c.side]:
		return s, nil
	case <-c.l.done:
		return nil, c.l.closeErr(c.side)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendDatagram implements transport.Conn. Datagrams are dropped when the
// peer's queue is full.
func (c *Conn) SendDatagram(b []byte) error {
	select {
	case <-c.l.done:
		return c.l.closeErr(c.side)
	default:
	}

	msg := append([]byte(nil), b...)
	select {
	case c.l.dgrams[c.peer()] <- msg:
	default:
	}
	return nil
}

// ReceiveDatagram implements transport.Conn.
func (c *Conn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.l.dgrams[c.side]:
		return b, nil
	case <-c.l.done:
		return nil, c.l.closeErr(c.side)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExportKeyingMaterial implements transport.Conn. Both endpoints of a pair
// derive identical output for identical inputs.
func (c *Conn) ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error) {
	info := make([]byte, 0, len(label)+1+len(context))
	info = append(info, label...)
	info = append(info, 0)
	info = append(info, context...)

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.l.key, nil, info), out); err != nil {
		return nil, fmt.Errorf("memtransport: export keying material: %w", err)
	}
	return out, nil
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() net.Addr {
	return c.l.addrs[c.peer()]
}

// CloseWithError implements transport.Conn.
func (c *Conn) CloseWithError(code uint64, reason string) error {
	return c.l.close(c.side, code, reason, false)
}

// ExpireIdle closes the connection as if its idle timeout had elapsed.
func (c *Conn) ExpireIdle() {
	c.l.close(c.side, 0, "", true)
}

// Done is closed once the connection is closed by either endpoint.
func (c *Conn) Done() <-chan struct{} {
	return c.l.done
}

// CloseInfo reports how the connection was closed. ok is false while the
// connection is open.
func (c *Conn) CloseInfo() (code uint64, reason string, ok bool) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	return c.l.code, c.l.reason, c.l.closed
}

func resetErrs(code uint64) (local, remote error) {
	return &transport.StreamResetError{Code: code}, &transport.StreamResetError{Code: code, Remote: true}
}

type stream struct {
	in  *pipe
	out *pipe
}

func (s *stream) Read(b []byte) (int, error)  { return s.in.read(b) }
func (s *stream) Write(b []byte) (int, error) { return s.out.write(b) }
func (s *stream) Close() error                { return s.out.finish() }

func (s *stream) Reset(code uint64) {
	local, remote := resetErrs(code)
	s.in.abort(local, remote)
	s.out.abort(remote, local)
}

type receiveStream struct {
	in *pipe
}

func (s *receiveStream) Read(b []byte) (int, error) { return s.in.read(b) }

func (s *receiveStream) Reset(code uint64) {
	local, remote := resetErrs(code)
	s.in.abort(local, remote)
}

type sendStream struct {
	out *pipe
}

func (s *sendStream) Write(b []byte) (int, error) { return s.out.write(b) }
func (s *sendStream) Close() error                { return s.out.finish() }

func (s *sendStream) Reset(code uint64) {
	local, remote := resetErrs(code)
	s.out.abort(remote, local)
}

// Listener hands out server endpoints of pairs created with Dial.
type Listener struct {
	conns chan *Conn
	done  chan struct{}
	once  sync.Once
	addr  Addr
}

var _ transport.Listener = (*Listener)(nil)

// NewListener creates an in-process listener.
func NewListener() *Listener {
	return &Listener{
		conns: make(chan *Conn),
		done:  make(chan struct{}),
		addr:  Addr("mem-listener"),
	}
}

// Dial connects to the listener and returns the client endpoint.
func (l *Listener) Dial(ctx context.Context) (*Conn, error) {
	server, client := Pair()
	select {
	case l.conns <- server:
		return client, nil
	case <-l.done:
		return nil, transport.ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Accept implements transport.Listener.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, transport.ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements transport.Listener.
func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// Addr implements transport.Listener.
func (l *Listener) Addr() net.Addr {
	return l.addr
}
