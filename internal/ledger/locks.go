package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// lockTable hands out one exclusive lock per key. Keys are acquired in
// ascending byte order so two callers locking overlapping sets can never
// deadlock. Entries are reference counted and dropped when idle.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*keyLock)}
}

func (t *lockTable) ref(key uuid.UUID) *keyLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(key uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

// orderedKeys dedupes keys and sorts them into acquisition order.
func orderedKeys(keys []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(keys))
	out := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		if k == uuid.Nil {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// acquire blocks until every key is held or ctx is done. On success the
// returned func releases all keys.
func (t *lockTable) acquire(ctx context.Context, keys []uuid.UUID) (func(), error) {
	type heldLock struct {
		key  uuid.UUID
		lock *keyLock
	}
	ordered := orderedKeys(keys)
	held := make([]heldLock, 0, len(ordered))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i].lock.ch
			t.unref(held[i].key)
		}
	}

	for _, key := range ordered {
		l := t.ref(key)
		select {
		case l.ch <- struct{}{}:
			held = append(held, heldLock{key: key, lock: l})
		case <-ctx.Done():
			t.unref(key)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
