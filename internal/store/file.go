package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gobengali/internal/quota"
)

// FileStore keeps one JSON document per user under a directory. Writes go
// through a temp file and rename so a crash never leaves a torn record, and
// every access holds a lock on the directory shared with other processes.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// OpenFile returns a FileStore rooted at baseDir, creating it if needed.
func OpenFile(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create quota directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(user string) string {
	return filepath.Join(s.baseDir, filepath.Base(user)+".json")
}

// locked runs fn holding both the in-process mutex and the directory lock.
func (s *FileStore) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.baseDir, ".lock"), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open quota lock: %w", err)
	}
	defer f.Close()
	if err := lockFile(f); err != nil {
		return fmt.Errorf("lock quota directory: %w", err)
	}
	defer unlockFile(f)
	return fn()
}

// Load implements quota.Store.
func (s *FileStore) Load(_ context.Context, user string) (st quota.State, ok bool, err error) {
	err = s.locked(func() error {
		data, err := os.ReadFile(s.path(user))
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read quota for %s: %w", user, err)
		}
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode quota for %s: %w", user, err)
		}
		ok = true
		return nil
	})
	if err != nil {
		return quota.State{}, false, err
	}
	return st, ok, nil
}

// Save implements quota.Store.
func (s *FileStore) Save(_ context.Context, user string, st quota.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return s.locked(func() error {
		target := s.path(user)
		tmp := target + ".tmp"
		if err := os.WriteFile(tmp, data, 0600); err != nil {
			return fmt.Errorf("write quota for %s: %w", user, err)
		}
		return os.Rename(tmp, target)
	})
}
