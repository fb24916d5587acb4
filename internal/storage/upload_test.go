package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/pkg/crypto/adaptive"
)

// ============================================================================
// MemorySink
// ============================================================================

func TestMemorySink_PutGet(t *testing.T) {
	s := NewMemorySink(4)
	ctx := context.Background()

	id, err := s.Put(ctx, &Upload{Remote: "mem-client:1", Data: []byte("hello")})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if len(id) != 26 {
		t.Errorf("Put() id = %q, want a ULID", id)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(u.Data) != "hello" || u.ReceivedAt.IsZero() {
		t.Errorf("Get() = %+v", u)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemorySink_Evicts(t *testing.T) {
	s := NewMemorySink(2)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := s.Put(ctx, &Upload{Data: []byte(fmt.Sprint(i))})
		ids = append(ids, id)
	}

	if n := s.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Error("oldest upload was not evicted")
	}
	if _, err := s.Get(ctx, ids[2]); err != nil {
		t.Errorf("newest upload missing: %v", err)
	}
}

// ============================================================================
// BadgerSink
// ============================================================================

func openTestBadgerSink(t *testing.T, cfg BadgerSinkConfig) *BadgerSink {
	t.Helper()
	cfg.GCInterval = time.Hour
	s, err := OpenBadgerSink(cfg, nil)
	if err != nil {
		t.Fatalf("OpenBadgerSink() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerSink_PutGetScan(t *testing.T) {
	s := openTestBadgerSink(t, DefaultBadgerSinkConfig(t.TempDir()))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Put(ctx, &Upload{ConnID: "c1", Data: []byte(fmt.Sprintf("payload-%d", i))})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		ids = append(ids, id)
	}

	u, err := s.Get(ctx, ids[1])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(u.Data) != "payload-1" || u.ConnID != "c1" {
		t.Errorf("Get() = %+v", u)
	}

	var scanned []string
	if err := s.Scan(ctx, func(u *Upload) bool {
		scanned = append(scanned, string(u.Data))
		return true
	}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(scanned) != 3 || scanned[0] != "payload-0" || scanned[2] != "payload-2" {
		t.Errorf("Scan() = %v", scanned)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestBadgerSink_Encrypted(t *testing.T) {
	key, err := adaptive.DeriveKey([]byte("upload passphrase"), []byte("tokgate uploads"))
	if err != nil {
		t.Fatal(err)
	}
	cipher, err := adaptive.New(key)
	if err != nil {
		t.Fatal(err)
	}

	cfg := BadgerSinkConfig{InMemory: true, Cipher: cipher}
	s := openTestBadgerSink(t, cfg)
	ctx := context.Background()

	id, err := s.Put(ctx, &Upload{Data: []byte("top secret")})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(uploadKeyPrefix + id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		t.Fatalf("raw read error = %v", err)
	}
	if bytes.Contains(raw, []byte("top secret")) || bytes.Contains(raw, []byte("dG9wIHNlY3JldA")) || bytes.Contains(raw, []byte(`"data"`)) {
		t.Error("payload stored in plaintext")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(u.Data) != "top secret" {
		t.Errorf("Get() data = %q", u.Data)
	}
}

func TestBadgerSink_Closed(t *testing.T) {
	s, err := OpenBadgerSink(BadgerSinkConfig{InMemory: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.Put(context.Background(), &Upload{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() after Close error = %v, want ErrClosed", err)
	}
}

func TestOpenBadgerSink_RequiresDir(t *testing.T) {
	if _, err := OpenBadgerSink(BadgerSinkConfig{}, nil); err == nil {
		t.Error("OpenBadgerSink() without dir succeeded")
	}
}
