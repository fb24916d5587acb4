package logger

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const (
	loggerKey   contextKey = "tokgate.logger"
	connIDKey   contextKey = "tokgate.conn_id"
	streamIDKey contextKey = "tokgate.stream_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// NewConnID returns a new time-ordered connection identifier.
func NewConnID() string {
	return ulid.Make().String()
}

// WithConnID tags the context with a connection identifier.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromContext extracts the connection identifier from context.
func ConnIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(connIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStreamID tags the context with a stream sequence number.
func WithStreamID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, streamIDKey, id)
}

// StreamIDFromContext extracts the stream sequence number from context.
func StreamIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(streamIDKey).(uint64)
	return id, ok
}

// L is a shorthand for FromContext that also adds the connection and
// stream identifiers carried by ctx.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if connID := ConnIDFromContext(ctx); connID != "" {
		l = l.With("conn_id", connID)
	}
	if streamID, ok := StreamIDFromContext(ctx); ok {
		l = l.With("stream_id", streamID)
	}

	return l
}
