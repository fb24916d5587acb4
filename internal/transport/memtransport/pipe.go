package memtransport

import (
	"errors"
	"io"
	"sync"
)

var errWriteAfterClose = errors.New("memtransport: write on finished stream")

// pipeCapacity bounds the unread bytes of one pipe. A write that would
// exceed it waits for the reader; a write into an empty pipe is always
// accepted whole, so one Write stays one chunk.
const pipeCapacity = 1 << 20

// pipe is one direction of a stream. A single Write is delivered to the
// reader as one contiguous chunk, so a reader with a large enough buffer
// sees each write in a single Read.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	// side of the endpoint that reads from this pipe
	reader   int
	capacity int

	buf      []byte
	fin      bool
	readErr  error
	writeErr error
}

func newPipe(reader int) *pipe {
	p := &pipe{reader: reader, capacity: pipeCapacity}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.buf) == 0 && !p.fin && p.readErr == nil {
		p.cond.Wait()
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	p.cond.Broadcast()
	return n, nil
}

func (p *pipe) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.buf) > 0 && len(p.buf)+len(b) > p.capacity && p.writeErr == nil && !p.fin {
		p.cond.Wait()
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.fin {
		return 0, errWriteAfterClose
	}
	p.buf = append(p.buf, b...)
	p.cond.Broadcast()
	return len(b), nil
}

func (p *pipe) finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return p.writeErr
	}
	p.fin = true
	p.cond.Broadcast()
	return nil
}

// abort terminates the pipe. Buffered data is discarded. The first abort wins.
func (p *pipe) abort(readErr, writeErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr == nil {
		p.readErr = readErr
		p.buf = nil
	}
	if p.writeErr == nil {
		p.writeErr = writeErr
	}
	p.cond.Broadcast()
}
