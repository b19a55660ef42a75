package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	content := []byte("আমি তোমাকে")
	require.NoError(t, os.WriteFile(testFile, content, 0600))

	hash1, size, err := HashFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	hash2, _, err := HashFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)

	require.NoError(t, os.WriteFile(testFile, []byte("different content"), 0600))
	hash3, _, err := HashFile(testFile)
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash3)
}

func TestHashFileNotFound(t *testing.T) {
	_, _, err := HashFile("/nonexistent/file.txt")
	assert.Error(t, err)
}

func TestStartRequiresExistingFile(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing.txt"), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Error(t, w.Start())
}

func startWatcher(t *testing.T, initial string) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0600))

	w, err := New(path, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w, path
}

func TestExternalWriteIsReported(t *testing.T) {
	w, path := startWatcher(t, "first")
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, w.Path())

	require.NoError(t, os.WriteFile(path, []byte("second"), 0600))

	select {
	case ev := <-w.Events():
		assert.Equal(t, "second", string(ev.Content))
		assert.Equal(t, abs, ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for external write")
	}
}

func TestKnownContentIsNotReported(t *testing.T) {
	w, path := startWatcher(t, "first")

	own := []byte("written by us")
	w.SetKnown(own)
	require.NoError(t, os.WriteFile(path, own, 0600))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event: %q", ev.Content)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("typed elsewhere"), 0600))
	select {
	case ev := <-w.Events():
		assert.Equal(t, "typed elsewhere", string(ev.Content))
	case <-time.After(5 * time.Second):
		t.Fatal("no event after known write")
	}
}
