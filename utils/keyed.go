package utils

import "sync"

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes work per key while letting distinct keys run in
// parallel. Entries are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() (k *KeyedMutex) {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock locks key and returns the function releasing it
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, found := k.entries[key]
	if !found {
		entry = &keyedEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited
func (k *KeyedMutex) Len() (n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
