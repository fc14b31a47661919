package kvstore

import (
	"sync"
)

// Memory is an in-memory Store for tests and for surfaces embedded in a
// host that supplies its own persistence. Unlike File, it delivers
// change notifications synchronously, including for its own writes,
// since its writers are goroutines in the same process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string

	subMu   sync.Mutex
	subs    map[int]func(string)
	nextSub int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
		subs:   make(map[int]func(string)),
	}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) SetMany(values map[string]string) error {
	changed := make([]string, 0, len(values))
	m.mu.Lock()
	for k, v := range values {
		if old, ok := m.values[k]; !ok || old != v {
			changed = append(changed, k)
		}
		m.values[k] = v
	}
	m.mu.Unlock()
	m.notify(changed)
	return nil
}

func (m *Memory) DeleteMany(keys ...string) error {
	changed := make([]string, 0, len(keys))
	m.mu.Lock()
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			changed = append(changed, k)
		}
		delete(m.values, k)
	}
	m.mu.Unlock()
	m.notify(changed)
	return nil
}

func (m *Memory) Subscribe(fn func(key string)) (cancel func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.subMu.Lock()
	fns := make([]func(string), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		for _, k := range keys {
			fn(k)
		}
	}
}

var _ Store = (*Memory)(nil)
var _ Store = (*File)(nil)
