// Package watcher follows a document on disk and reports settled content
// changes made by other programs.
package watcher

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a settled change of the watched document.
type Event struct {
	Path      string
	Content   []byte
	Hash      [32]byte
	Timestamp time.Time
}

// Watcher monitors one file. Writes are reported once the file has been
// quiet for the settle interval, and only when the content differs from the
// last known content.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	settle    time.Duration

	mu      sync.Mutex
	known   [32]byte
	lastMod time.Time
	dirty   bool

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for path.
func New(path string, settle time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = 200 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		path:      abs,
		settle:    settle,
		events:    make(chan Event, 16),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of content changes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The current content becomes the known baseline.
func (w *Watcher) Start() error {
	if _, err := os.Stat(w.path); err != nil {
		return err
	}
	hash, _, err := HashFile(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.known = hash
	w.mu.Unlock()

	// Watch the directory so editors that replace the file by rename are
	// still followed.
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.settleLoop()
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// SetKnown records content written by this process so the resulting file
// events are not reported back.
func (w *Watcher) SetKnown(content []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known = sha256.Sum256(content)
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.lastMod = time.Now()
			w.dirty = true
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) settleLoop() {
	defer w.wg.Done()

	tick := max(w.settle/2, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkSettled(now)
		}
	}
}

func (w *Watcher) checkSettled(now time.Time) {
	w.mu.Lock()
	if !w.dirty || now.Sub(w.lastMod) < w.settle {
		w.mu.Unlock()
		return
	}
	lastMod := w.lastMod
	w.mu.Unlock()

	// Read without holding the lock.
	content, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.report(err)
		}
		return
	}
	hash := sha256.Sum256(content)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastMod != lastMod {
		// Modified while reading; let it settle again.
		return
	}
	w.dirty = false
	if hash == w.known {
		return
	}

	select {
	case w.events <- Event{Path: w.path, Content: content, Hash: hash, Timestamp: now}:
		w.known = hash
	default:
		w.dirty = true
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile computes the SHA-256 of a file by streaming it.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}
