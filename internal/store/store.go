// Package store provides durable backends for the quota counters.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gobengali/internal/quota"
)

// Backend is a quota.Store that holds resources until closed.
type Backend interface {
	quota.Store
	io.Closer
}

// Open returns the backend named by kind: "sqlite", "file" or "memory".
// An empty path selects the platform data directory.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", "sqlite":
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "quota.db")
		}
		return OpenSQLite(path)
	case "file":
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "quota")
		}
		return OpenFile(path)
	case "memory":
		return nopCloser{quota.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", kind)
	}
}

type nopCloser struct{ quota.Store }

func (nopCloser) Close() error { return nil }

// Close is a no-op for FileStore.
func (s *FileStore) Close() error { return nil }

// DefaultDir returns the platform-specific data directory.
func DefaultDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "GoBengali"), nil

	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "gobengali"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "gobengali"), nil

	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA not set")
		}
		return filepath.Join(localAppData, "GoBengali"), nil

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".gobengali"), nil
	}
}
