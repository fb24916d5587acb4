package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrApplicationClosed is matched by errors reporting that either endpoint
	// closed the connection with CloseWithError.
	ErrApplicationClosed = errors.New("transport: connection closed by application")

	// ErrTimedOut is matched by errors reporting the idle timeout expired.
	ErrTimedOut = errors.New("transport: idle timeout")

	// ErrListenerClosed is returned by Accept after the listener was closed.
	ErrListenerClosed = errors.New("transport: listener closed")
)

// ConnectionError reports an application close of the connection.
// It matches ErrApplicationClosed with errors.Is.
type ConnectionError struct {
	Code   uint64
	Reason string
	Remote bool
}

func (e *ConnectionError) Error() string {
	side := "local"
	if e.Remote {
		side = "remote"
	}
	if e.Reason == "" {
		return fmt.Sprintf("transport: connection closed (%s, code %#x)", side, e.Code)
	}
	return fmt.Sprintf("transport: connection closed (%s, code %#x): %s", side, e.Code, e.Reason)
}

// Is implements errors.Is.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrApplicationClosed
}

// StreamResetError reports that a stream was aborted with a reset code.
type StreamResetError struct {
	Code   uint64
	Remote bool
}

func (e *StreamResetError) Error() string {
	if e.Remote {
		return fmt.Sprintf("transport: stream reset by peer (code %#x)", e.Code)
	}
	return fmt.Sprintf("transport: stream reset (code %#x)", e.Code)
}

// ResetCode extracts the reset code from err.
func ResetCode(err error) (uint64, bool) {
	var se *StreamResetError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
