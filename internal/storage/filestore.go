package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/yndnr/tokgate/internal/core/domain"
)

// MaxNameLen bounds the length of a requested file name.
const MaxNameLen = 255

// FileStore resolves file names to their content.
type FileStore interface {
	// ReadFile returns the content of name.
	// Errors: ErrMalformedRequest for an invalid name, ErrNotFound, ErrIO.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// ValidateName checks that name is a plain file name inside the serving
// directory: non-empty UTF-8, no path separators, no "." or ".." and no NUL.
func ValidateName(name string) error {
	switch {
	case name == "":
		return domain.ErrMalformedRequest.WithDetails("empty file name")
	case len(name) > MaxNameLen:
		return domain.ErrMalformedRequest.WithDetails("file name too long")
	case !utf8.ValidString(name):
		return domain.ErrMalformedRequest.WithDetails("file name is not valid UTF-8")
	case name == "." || name == "..":
		return domain.ErrMalformedRequest.WithDetails("file name refers to a directory")
	case strings.ContainsAny(name, "/\\\x00"):
		return domain.ErrMalformedRequest.WithDetails("file name contains a separator or NUL")
	}
	return nil
}

// DirStore serves files from a single directory.
type DirStore struct {
	root    *os.Root
	maxSize int64
}

// OpenDirStore opens dir for serving. Files larger than maxSize bytes are
// refused with ErrIO; maxSize <= 0 disables the limit.
func OpenDirStore(dir string, maxSize int64) (*DirStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: open serve dir %s: %w", dir, err)
	}
	return &DirStore{root: root, maxSize: maxSize}, nil
}

// ReadFile implements FileStore.
func (s *DirStore) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrIO.WithCause(err)
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound.WithDetails(name)
		}
		return nil, domain.ErrIO.WithDetails(name).WithCause(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, domain.ErrIO.WithDetails(name).WithCause(err)
	}
	if !info.Mode().IsRegular() {
		return nil, domain.ErrNotFound.WithDetails(name + " is not a regular file")
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, domain.ErrIO.WithDetails(fmt.Sprintf("%s exceeds %d bytes", name, s.maxSize))
	}

	r := io.Reader(f)
	if s.maxSize > 0 {
		// the file may grow between Stat and Read
		r = io.LimitReader(f, s.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ErrIO.WithDetails(name).WithCause(err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, domain.ErrIO.WithDetails(fmt.Sprintf("%s exceeds %d bytes", name, s.maxSize))
	}
	return data, nil
}

// Close releases the directory handle.
func (s *DirStore) Close() error {
	return s.root.Close()
}

// MapStore is a FileStore over an in-memory map, for tests and embedding.
type MapStore map[string][]byte

// ReadFile implements FileStore.
func (m MapStore) ReadFile(_ context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, ok := m[name]
	if !ok {
		return nil, domain.ErrNotFound.WithDetails(name)
	}
	return data, nil
}
