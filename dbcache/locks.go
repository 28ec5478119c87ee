package dbcache

import (
	"hash/maphash"
	"sync"
)

const lockStripes = 64

// keyLocks serializes writers of the same key without a lock per key.
type keyLocks struct {
	seed    maphash.Seed
	stripes [lockStripes]sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{seed: maphash.MakeSeed()}
}

func (l *keyLocks) lock(key string) func() {
	mu := &l.stripes[maphash.String(l.seed, key)%lockStripes]
	mu.Lock()
	return mu.Unlock
}
