package storage

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokgate/internal/core/domain"
)

// Upload is one payload received on a unidirectional stream.
type Upload struct {
	ID         string    `json:"id"`
	ConnID     string    `json:"conn_id"`
	Remote     string    `json:"remote"`
	ReceivedAt time.Time `json:"received_at"`
	Data       []byte    `json:"data"`
}

// UploadSink stores uploads.
type UploadSink interface {
	// Put stores u, assigning u.ID when empty, and returns the ID.
	Put(ctx context.Context, u *Upload) (string, error)

	// Get returns the upload with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Upload, error)
}

func newUploadID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// DefaultMemorySinkCapacity is the number of uploads MemorySink retains.
const DefaultMemorySinkCapacity = 128

// MemorySink keeps the most recent uploads in memory.
type MemorySink struct {
	mu   sync.Mutex
	ring []*Upload
	next int
	byID map[string]*Upload
}

// NewMemorySink creates a sink retaining the last capacity uploads.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultMemorySinkCapacity
	}
	return &MemorySink{
		ring: make([]*Upload, capacity),
		byID: make(map[string]*Upload, capacity),
	}
}

// Put implements UploadSink. The oldest upload is evicted when full.
func (s *MemorySink) Put(_ context.Context, u *Upload) (string, error) {
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = time.Now()
	}
	if u.ID == "" {
		u.ID = newUploadID(u.ReceivedAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.ring[s.next]; old != nil {
		delete(s.byID, old.ID)
	}
	s.ring[s.next] = u
	s.byID[u.ID] = u
	s.next = (s.next + 1) % len(s.ring)
	return u.ID, nil
}

// Get implements UploadSink.
func (s *MemorySink) Get(_ context.Context, id string) (*Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound.WithDetails("upload " + id)
	}
	return u, nil
}

// Len returns the number of retained uploads.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
