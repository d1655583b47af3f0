package util

import (
	"math/rand"
	"sync"
)

// LockedSource is a random source that is uses a mutex to ensure it is threadsafe
type LockedSource struct {
	lk  sync.Mutex
	src rand.Source
}

// NewLockedSource returns a threadsafe source seeded with seed.
func NewLockedSource(seed int64) *LockedSource {
	return &LockedSource{src: rand.NewSource(seed)}
}

func (r *LockedSource) Int63() (n int64) {
	r.lk.Lock()
	n = r.src.Int63()
	r.lk.Unlock()
	return
}

func (r *LockedSource) Seed(seed int64) {
	r.lk.Lock()
	r.src.Seed(seed)
	r.lk.Unlock()
}
