package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/attachly/go-attach-client/internal/errors"
)

const stateFileName = "attachly-state.json"

// File is a Store backed by a single JSON file in the data folder.
// Writes go through a temp file and rename, so another process reading
// the file observes either the previous or the new state, never a torn
// one. A polling watcher turns external modifications into Subscribe
// callbacks; this stands in for the storage-change events the browser
// surfaces get for free.
type File struct {
	path     string
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	values  map[string]string
	modTime time.Time
	closed  bool

	subMu   sync.Mutex
	subs    map[int]func(string)
	nextSub int

	done      chan struct{}
	closeOnce sync.Once
}

// FileOption configures a File store.
type FileOption func(*File)

// WithWatchInterval sets how often the store polls for modifications
// made by other processes.
func WithWatchInterval(d time.Duration) FileOption {
	return func(f *File) {
		f.interval = d
	}
}

// WithFileLogger sets the logger used for watcher diagnostics.
func WithFileLogger(log zerolog.Logger) FileOption {
	return func(f *File) {
		f.log = log
	}
}

// NewFile opens (creating if necessary) the shared state file inside
// folder and starts the modification watcher.
func NewFile(folder string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errs.Wrapf(err, "kvstore.NewFile create folder")
	}

	f := &File{
		path:     filepath.Join(folder, stateFileName),
		interval: 500 * time.Millisecond,
		log:      zerolog.Nop(),
		values:   make(map[string]string),
		subs:     make(map[int]func(string)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.mu.Lock()
	_, err := f.refresh()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go f.watch()
	return f, nil
}

// Get returns the current value of key, re-reading the file first if
// another process has modified it.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, errs.ErrClosed
	}
	if _, err := f.refresh(); err != nil {
		return "", false, err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// SetMany writes all keys in one file replacement.
func (f *File) SetMany(values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errs.ErrClosed
	}
	if _, err := f.refresh(); err != nil {
		return err
	}
	next := make(map[string]string, len(f.values)+len(values))
	for k, v := range f.values {
		next[k] = v
	}
	for k, v := range values {
		next[k] = v
	}
	return f.write(next)
}

// DeleteMany removes all keys in one file replacement.
func (f *File) DeleteMany(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errs.ErrClosed
	}
	if _, err := f.refresh(); err != nil {
		return err
	}
	next := make(map[string]string, len(f.values))
	for k, v := range f.values {
		next[k] = v
	}
	for _, k := range keys {
		delete(next, k)
	}
	return f.write(next)
}

// Subscribe registers fn for changes detected in the file. Own writes
// are not reported, mirroring how browser storage events fire only in
// other execution contexts.
func (f *File) Subscribe(fn func(key string)) (cancel func()) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		delete(f.subs, id)
	}
}

// Close stops the watcher. The file itself is left in place for the
// other surfaces.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
	})
	return nil
}

// refresh reloads the file if its modification time moved and returns
// the keys whose values differ from the in-memory copy. Callers must
// hold f.mu.
func (f *File) refresh() ([]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			if len(f.values) == 0 {
				return nil, nil
			}
			changed := keysOf(f.values)
			f.values = make(map[string]string)
			f.modTime = time.Time{}
			return changed, nil
		}
		return nil, errs.Wrapf(err, "kvstore.File stat")
	}
	if info.ModTime().Equal(f.modTime) {
		return nil, nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errs.Wrapf(err, "kvstore.File read")
	}
	loaded := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return nil, errs.Wrapf(err, "kvstore.File decode")
		}
	}

	changed := diffKeys(f.values, loaded)
	f.values = loaded
	f.modTime = info.ModTime()
	return changed, nil
}

// write replaces the state file atomically. Callers must hold f.mu.
func (f *File) write(next map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".attachly-state-*")
	if err != nil {
		return errs.Wrapf(err, "kvstore.File temp file")
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(next); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.Wrapf(err, "kvstore.File encode")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrapf(err, "kvstore.File close temp")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrapf(err, "kvstore.File rename")
	}

	f.values = next
	if info, err := os.Stat(f.path); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}

func (f *File) watch() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.closed {
				f.mu.Unlock()
				return
			}
			changed, err := f.refresh()
			f.mu.Unlock()
			if err != nil {
				f.log.Debug().Err(err).Msg("state file watch failed")
				continue
			}
			f.notify(changed)
		}
	}
}

func (f *File) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	f.subMu.Lock()
	fns := make([]func(string), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.Unlock()
	for _, fn := range fns {
		for _, k := range keys {
			fn(k)
		}
	}
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func diffKeys(old, next map[string]string) []string {
	var changed []string
	for k, v := range next {
		if ov, ok := old[k]; !ok || ov != v {
			changed = append(changed, k)
		}
	}
	for k := range old {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	return changed
}
