package recovery

import (
	"sort"
	"sync"
	"sync/atomic"
)

// MemoryKV is the in-memory key-value store persistence switches to after a
// storage fault. Contents are lost on exit.
type MemoryKV struct {
	data   map[string]string
	mu     sync.RWMutex
	active atomic.Bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Activate marks the store as the live persistence backend.
func (kv *MemoryKV) Activate() { kv.active.Store(true) }

// Active reports whether persistence has been switched to memory.
func (kv *MemoryKV) Active() bool { return kv.active.Load() }

func (kv *MemoryKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *MemoryKV) Set(key, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
}

func (kv *MemoryKV) Delete(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
}

// Keys returns the stored keys in sorted order.
func (kv *MemoryKV) Keys() []string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (kv *MemoryKV) Clear() {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	clear(kv.data)
}
