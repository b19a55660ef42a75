package view

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gobengali/internal/text"
	"gobengali/internal/watcher"
)

// File is an editor backed by a document on disk. Edits made by other
// programs arrive as change events; content set by this process is written
// back and, unless emit is requested, not reported.
type File struct {
	mu      sync.Mutex
	path    string
	content string
	caret   int
	subs    map[int]func(string)
	nextSub int

	w    *watcher.Watcher
	log  *slog.Logger
	done chan struct{}
	once sync.Once
}

// OpenFile loads path and starts following it.
func OpenFile(path string, settle time.Duration, log *slog.Logger) (*File, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	w, err := watcher.New(path, settle)
	if err != nil {
		return nil, fmt.Errorf("watch document: %w", err)
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("watch document: %w", err)
	}

	f := &File{
		path:    w.Path(),
		content: string(data),
		caret:   text.Len(string(data)),
		subs:    make(map[int]func(string)),
		w:       w,
		log:     log.With("component", "view", "path", w.Path()),
		done:    make(chan struct{}),
	}
	go f.follow()
	return f, nil
}

func (f *File) follow() {
	defer close(f.done)
	for {
		select {
		case ev, ok := <-f.w.Events():
			if !ok {
				return
			}
			s := string(ev.Content)
			f.mu.Lock()
			f.content = s
			f.caret = text.Len(s)
			f.mu.Unlock()
			f.log.Debug("document changed on disk", "content", s)
			f.emit(s)
		case err, ok := <-f.w.Errors():
			if !ok {
				return
			}
			f.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops following the document.
func (f *File) Close() error {
	var err error
	f.once.Do(func() {
		err = f.w.Stop()
		<-f.done
	})
	return err
}

// Path returns the absolute document path.
func (f *File) Path() string { return f.path }

func (f *File) PlainText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

func (f *File) SetContent(s string, emit bool) error {
	f.mu.Lock()
	f.content = s
	f.caret = clampOffset(s, f.caret)
	err := f.writeLocked(s)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if emit {
		f.emit(s)
	}
	return nil
}

func (f *File) FocusEnd() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caret = text.Len(f.content)
}

func (f *File) CaretOffset() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caret
}

func (f *File) CoordsAtOffset(offset int) Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lineCol(f.content, offset)
}

func (f *File) ReplaceRange(from, to int, s string) error {
	f.mu.Lock()
	from = clampOffset(f.content, from)
	to = max(clampOffset(f.content, to), from)
	f.content = text.Splice(f.content, from, to-from, s)
	f.caret = from + text.Len(s)
	content := f.content
	err := f.writeLocked(content)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emit(content)
	return nil
}

func (f *File) OnChange(fn func(string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *File) writeLocked(s string) error {
	data := []byte(s)
	f.w.SetKnown(data)
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (f *File) emit(s string) {
	f.mu.Lock()
	fns := make([]func(string), 0, len(f.subs))
	for i := 0; i < f.nextSub; i++ {
		if fn, ok := f.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
