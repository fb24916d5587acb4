package quicserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/yndnr/tokgate/internal/core/domain"
)

// Protocol limits.
const (
	// MaxLineLen limits a request or header line, terminator excluded (8KB).
	// A bearer header carries a session of ~110 bytes.
	MaxLineLen = 8 * 1024

	// MaxBodyLen limits the declared length of a login body (64KB).
	MaxBodyLen = 64 * 1024

	// MaxUploadLen limits the payload of one unidirectional stream (64KB).
	MaxUploadLen = 64 * 1024
)

var crlf = []byte("\r\n")

// Framing errors. Each is returned joined with domain.ErrProtocolViolation.
var (
	ErrLineTooLong   = errors.New("frame: line exceeds limit")
	ErrLimitExceeded = errors.New("frame: length exceeds limit")
	ErrTruncated     = errors.New("frame: stream ended mid-frame")
)

func protocolError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", domain.ErrProtocolViolation, err, fmt.Sprintf(format, args...))
}

// frameReader reads CRLF lines and fixed-length bodies from one stream.
// It owns the buffered reader for the stream's whole life, so bytes read
// ahead of one frame are kept for the next.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the bytes up to the next "\r\n", terminator excluded.
//
// A stream that ends before any byte is read yields (nil, nil): the peer
// finished. A stream that ends inside a line yields ErrTruncated; a line
// longer than MaxLineLen yields ErrLineTooLong. An empty line yields a
// non-nil empty slice. Transport errors are returned unchanged.
func (f *frameReader) ReadLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := f.r.ReadSlice('\n')
		line = append(line, frag...)

		if len(line) > MaxLineLen+len(crlf) {
			return nil, protocolError(ErrLineTooLong, "limit %d", MaxLineLen)
		}

		switch {
		case err == nil:
			if bytes.HasSuffix(line, crlf) {
				return line[:len(line)-len(crlf)], nil
			}
			// a bare '\n' is line content
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, nil
			}
			return nil, protocolError(ErrTruncated, "%d bytes without terminator", len(line))
		default:
			return nil, err
		}
	}
}

// ReadExact returns exactly n bytes.
func (f *frameReader) ReadExact(n int) ([]byte, error) {
	if n < 0 || n > MaxBodyLen {
		return nil, protocolError(ErrLimitExceeded, "body length %d, limit %d", n, MaxBodyLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, protocolError(io.ErrUnexpectedEOF, "body shorter than %d bytes", n)
		}
		return nil, err
	}
	return buf, nil
}

// readToEnd reads r until the peer finishes, failing with ErrLimitExceeded
// once more than limit bytes arrive.
func readToEnd(r io.Reader, limit int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limit {
		return nil, protocolError(ErrLimitExceeded, "payload exceeds %d bytes", limit)
	}
	return data, nil
}

// writeFrame sends b in a single write. No terminator is appended.
func writeFrame(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}
