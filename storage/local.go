package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage stores files under a single root directory on the local
// filesystem. It is safe for concurrent use; callers are expected to
// save under unique names.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a local store rooted at dir. The directory is
// created if it does not exist and resolved to canonical absolute form.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, ErrInvalidConfig
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	return &LocalStorage{root: root}, nil
}

// Root returns the canonical absolute storage root.
func (s *LocalStorage) Root() string {
	return s.root
}

// Resolve maps a file name to its absolute on-disk path, confined to the
// storage root. Names resolving outside the root, including via ".."
// segments or absolute prefixes, fail closed with ErrInvalidPath.
func (s *LocalStorage) Resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	// Join resolves ".." segments, so a traversal name escapes the root
	// here and fails the prefix check below.
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.Clean(name)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if abs == s.root || !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	return abs, nil
}

// Save streams r to a new file under name and returns its absolute path
// and the number of bytes written. Saving over an existing file is
// refused; storage names are never reused. The partial file is removed
// on any write error or context cancellation.
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	abs, err := s.Resolve(name)
	if err != nil {
		return "", 0, err
	}

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		return "", 0, fmt.Errorf("%w: %v", ErrFailedToCreateFile, err)
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			_ = dst.Close()
			_ = os.Remove(abs)
			return "", 0, ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			if writeErr != nil {
				_ = dst.Close()
				_ = os.Remove(abs)
				return "", 0, fmt.Errorf("%w: %v", ErrFailedToWriteFile, writeErr)
			}
			written += int64(nw)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = dst.Close()
			_ = os.Remove(abs)
			return "", 0, fmt.Errorf("%w: %v", ErrFailedToReadFile, readErr)
		}
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(abs)
		return "", 0, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	return abs, written, nil
}

// Open returns a reader for the named file. The caller must close it.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	abs, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}
	return f, nil
}

// Size re-measures the named file on disk.
func (s *LocalStorage) Size(name string) (int64, error) {
	abs, err := s.Resolve(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return 0, fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}
	return info.Size(), nil
}

// Exists reports whether the named file exists within the root.
func (s *LocalStorage) Exists(name string) bool {
	abs, err := s.Resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Delete removes the named file. Deleting a file that is already gone
// is not an error.
func (s *LocalStorage) Delete(name string) error {
	abs, err := s.Resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}
	return nil
}
