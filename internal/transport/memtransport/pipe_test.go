package memtransport

import (
	"bytes"
	"testing"
	"time"
)

func TestPipe_WriteWaitsForCapacity(t *testing.T) {
	p := newPipe(sideServer)
	p.capacity = 8

	if _, err := p.write([]byte("12345678")); err != nil {
		t.Fatalf("first write error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.write([]byte("abc"))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("write over capacity returned early, err = %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 4)
	if n, err := p.read(buf); err != nil || n != 4 {
		t.Fatalf("read = %d, %v", n, err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked write error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write still blocked after the reader drained")
	}

	rest := make([]byte, 16)
	n, _ := p.read(rest)
	if !bytes.Equal(rest[:n], []byte("5678abc")) {
		t.Errorf("remaining = %q, want %q", rest[:n], "5678abc")
	}
}

func TestPipe_LargeWriteIntoEmptyPipe(t *testing.T) {
	p := newPipe(sideServer)
	p.capacity = 4

	data := bytes.Repeat([]byte("x"), 64)
	if n, err := p.write(data); err != nil || n != len(data) {
		t.Fatalf("write = %d, %v; want whole chunk accepted", n, err)
	}

	buf := make([]byte, 128)
	if n, _ := p.read(buf); n != len(data) {
		t.Errorf("read = %d bytes, want %d in one chunk", n, len(data))
	}
}

func TestPipe_AbortUnblocksWriter(t *testing.T) {
	p := newPipe(sideServer)
	p.capacity = 2
	p.write([]byte("ab"))

	errAborted := &testError{"aborted"}
	done := make(chan error, 1)
	go func() {
		_, err := p.write([]byte("c"))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.abort(errAborted, errAborted)

	select {
	case err := <-done:
		if err != errAborted {
			t.Errorf("write error = %v, want %v", err, errAborted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write still blocked after abort")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
