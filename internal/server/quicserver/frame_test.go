package quicserver

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/yndnr/tokgate/internal/core/domain"
)

func TestFrameReader_ReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantNil bool
		wantErr error
	}{
		{name: "single line", input: "GET a.txt\r\n", want: []string{"GET a.txt"}, wantNil: true},
		{name: "two lines", input: "POST /login\r\n27\r\n", want: []string{"POST /login", "27"}, wantNil: true},
		{name: "empty stream", input: "", wantNil: true},
		{name: "empty line", input: "\r\n", want: []string{""}, wantNil: true},
		{name: "bare newline is content", input: "a\nb\r\n", want: []string{"a\nb"}, wantNil: true},
		{name: "bare carriage return is content", input: "a\rb\r\n", want: []string{"a\rb"}, wantNil: true},
		{name: "truncated", input: "GET a.txt", wantErr: ErrTruncated},
		{name: "truncated after line", input: "GET a\r\nGET", want: []string{"GET a"}, wantErr: ErrTruncated},
		{name: "cr without lf", input: "GET a.txt\r", wantErr: ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := newFrameReader(strings.NewReader(tt.input))

			for i, want := range tt.want {
				got, err := fr.ReadLine()
				if err != nil {
					t.Fatalf("ReadLine() #%d error = %v", i, err)
				}
				if got == nil || string(got) != want {
					t.Fatalf("ReadLine() #%d = %q, want %q", i, got, want)
				}
			}

			got, err := fr.ReadLine()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, domain.ErrProtocolViolation) {
					t.Fatalf("ReadLine() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != nil {
				t.Fatalf("final ReadLine() = %q, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestFrameReader_ReadLineOneByteAtATime(t *testing.T) {
	fr := newFrameReader(iotest.OneByteReader(strings.NewReader("Authentication Bearer {}\r\nGET a.txt\r\n")))

	for _, want := range []string{"Authentication Bearer {}", "GET a.txt"} {
		got, err := fr.ReadLine()
		if err != nil || string(got) != want {
			t.Fatalf("ReadLine() = %q, %v; want %q", got, err, want)
		}
	}
}

func TestFrameReader_LineTooLong(t *testing.T) {
	t.Run("at limit", func(t *testing.T) {
		line := strings.Repeat("a", MaxLineLen)
		fr := newFrameReader(strings.NewReader(line + "\r\n"))
		got, err := fr.ReadLine()
		if err != nil || len(got) != MaxLineLen {
			t.Fatalf("ReadLine() len = %d, err = %v", len(got), err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		line := strings.Repeat("a", MaxLineLen+1)
		fr := newFrameReader(strings.NewReader(line + "\r\n"))
		_, err := fr.ReadLine()
		if !errors.Is(err, ErrLineTooLong) || !errors.Is(err, domain.ErrProtocolViolation) {
			t.Fatalf("ReadLine() error = %v, want ErrLineTooLong", err)
		}
	})

	t.Run("unterminated flood", func(t *testing.T) {
		fr := newFrameReader(io.LimitReader(repeatReader('x'), 1<<20))
		_, err := fr.ReadLine()
		if !errors.Is(err, ErrLineTooLong) {
			t.Fatalf("ReadLine() error = %v, want ErrLineTooLong", err)
		}
	})
}

type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func TestFrameReader_TransportError(t *testing.T) {
	boom := errors.New("stream reset")
	fr := newFrameReader(iotest.ErrReader(boom))

	if _, err := fr.ReadLine(); !errors.Is(err, boom) {
		t.Errorf("ReadLine() error = %v, want %v", err, boom)
	}
}

func TestFrameReader_ReadExact(t *testing.T) {
	body := `{"username":"admin","password":"admin_password"}`
	input := "POST /login\r\n" + "48\r\n" + body + "GET"

	fr := newFrameReader(strings.NewReader(input))
	fr.ReadLine()
	fr.ReadLine()

	got, err := fr.ReadExact(len(body))
	if err != nil || string(got) != body {
		t.Fatalf("ReadExact() = %q, %v", got, err)
	}

	t.Run("short", func(t *testing.T) {
		_, err := fr.ReadExact(10)
		if !errors.Is(err, io.ErrUnexpectedEOF) || !errors.Is(err, domain.ErrProtocolViolation) {
			t.Errorf("ReadExact() error = %v, want unexpected EOF", err)
		}
	})

	t.Run("zero", func(t *testing.T) {
		got, err := newFrameReader(strings.NewReader("")).ReadExact(0)
		if err != nil || len(got) != 0 {
			t.Errorf("ReadExact(0) = %q, %v", got, err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := newFrameReader(strings.NewReader("")).ReadExact(MaxBodyLen + 1)
		if !errors.Is(err, ErrLimitExceeded) {
			t.Errorf("ReadExact() error = %v, want ErrLimitExceeded", err)
		}
	})
}

func TestReadToEnd(t *testing.T) {
	got, err := readToEnd(strings.NewReader("upload"), 6)
	if err != nil || string(got) != "upload" {
		t.Fatalf("readToEnd() = %q, %v", got, err)
	}

	_, err = readToEnd(strings.NewReader("upload!"), 6)
	if !errors.Is(err, ErrLimitExceeded) || domain.StreamCode(err) != domain.StreamCodeProtocolViolation {
		t.Errorf("readToEnd() error = %v, want ErrLimitExceeded", err)
	}
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriteFrame(t *testing.T) {
	var w countingWriter
	if err := writeFrame(&w, []byte(`{"token":"t","signature":"s"}`)); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}
	if w.writes != 1 {
		t.Errorf("writes = %d, want 1", w.writes)
	}
	if w.String() != `{"token":"t","signature":"s"}` {
		t.Errorf("written = %q", w.String())
	}
}
