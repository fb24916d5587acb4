package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/pkg/crypto/adaptive"
)

const uploadKeyPrefix = "upload/"

// ErrClosed is returned by BadgerSink after Close.
var ErrClosed = errors.New("storage: upload store closed")

// BadgerSinkConfig configures BadgerSink.
type BadgerSinkConfig struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// GCInterval is the period of value-log garbage collection.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Cipher encrypts payloads at rest when set.
	Cipher adaptive.Cipher
}

// DefaultBadgerSinkConfig returns defaults for dir.
func DefaultBadgerSinkConfig(dir string) BadgerSinkConfig {
	return BadgerSinkConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// BadgerSink persists uploads in Badger under "upload/<ulid>".
type BadgerSink struct {
	db     *badger.DB
	cfg    BadgerSinkConfig
	logger logger.Logger

	closed     atomic.Bool
	lastGCTime atomic.Int64
	gcRuns     atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenBadgerSink opens (or creates) the upload database.
func OpenBadgerSink(cfg BadgerSinkConfig, log logger.Logger) (*BadgerSink, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: log}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerSink{
		db:     db,
		cfg:    cfg,
		logger: log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	log.Info("upload store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"encrypted", cfg.Cipher != nil,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Put implements UploadSink.
func (s *BadgerSink) Put(ctx context.Context, u *Upload) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = time.Now()
	}
	if u.ID == "" {
		u.ID = newUploadID(u.ReceivedAt)
	}

	value, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("badger: encode upload: %w", err)
	}
	key := []byte(uploadKeyPrefix + u.ID)
	if s.cfg.Cipher != nil {
		// the key is bound as additional data so records cannot be swapped
		value, err = s.cfg.Cipher.Encrypt(value, key)
		if err != nil {
			return "", fmt.Errorf("badger: encrypt upload: %w", err)
		}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return "", domain.ErrIO.WithDetails("store upload").WithCause(err)
	}
	return u.ID, nil
}

// Get implements UploadSink.
func (s *BadgerSink) Get(ctx context.Context, id string) (*Upload, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	key := []byte(uploadKeyPrefix + id)

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrNotFound.WithDetails("upload " + id)
		}
		return nil, domain.ErrIO.WithDetails("read upload").WithCause(err)
	}

	return s.decode(key, value)
}

func (s *BadgerSink) decode(key, value []byte) (*Upload, error) {
	if s.cfg.Cipher != nil {
		plain, err := s.cfg.Cipher.Decrypt(value, key)
		if err != nil {
			return nil, domain.ErrIO.WithDetails("decrypt upload").WithCause(err)
		}
		value = plain
	}

	var u Upload
	if err := json.Unmarshal(value, &u); err != nil {
		return nil, domain.ErrIO.WithDetails("decode upload").WithCause(err)
	}
	return &u, nil
}

// Scan calls fn for every stored upload in ID (arrival) order until fn
// returns false.
func (s *BadgerSink) Scan(ctx context.Context, fn func(*Upload) bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(uploadKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			u, err := s.decode(item.KeyCopy(nil), value)
			if err != nil {
				return err
			}
			if !fn(u) {
				break
			}
		}
		return nil
	})
}

// GC runs value-log garbage collection until nothing is left to rewrite.
// Returns the number of rewritten log files.
func (s *BadgerSink) GC() (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	start := time.Now()

	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(uint64(runs))

	s.logger.Debug("upload store gc completed",
		"rewrites", runs,
		"elapsed", time.Since(start))

	return runs, nil
}

// Size returns the LSM tree and value log sizes in bytes.
func (s *BadgerSink) Size() (lsm, vlog int64) {
	if s.closed.Load() {
		return 0, 0
	}
	return s.db.Size()
}

// Close stops garbage collection and closes the database.
func (s *BadgerSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	s.logger.Info("upload store closed")
	return nil
}

func (s *BadgerSink) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.GC(); err != nil {
				s.logger.Error("upload store gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
