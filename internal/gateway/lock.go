package gateway

import (
	"sort"
	"sync"

	"github.com/sadopc/prodhub/internal/model"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes writers per (collection, id). Entries are dropped
// once no goroutine holds or waits on them. A writer that needs a task and
// its projects locks the task first; projects are only ever taken in
// sorted order.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

func lockKey(c model.Collection, id string) string {
	return string(c) + "/" + id
}

// lock acquires the key and returns its release function.
func (k *keyedMutex) lock(c model.Collection, id string) func() {
	key := lockKey(c, id)

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// lockAll acquires the given ids of c in sorted order, skipping empty and
// repeated ids, and releases them in reverse.
func (k *keyedMutex) lockAll(c model.Collection, ids ...string) func() {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, id)
	}
	sort.Strings(keys)

	unlocks := make([]func(), 0, len(keys))
	for _, id := range keys {
		unlocks = append(unlocks, k.lock(c, id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
