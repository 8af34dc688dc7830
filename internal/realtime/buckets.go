package realtime

import "sync"

// buckets is a map of per-setlist values, each behind its own mutex, so traffic on
// one setlist never waits for another. The top-level lock is only held to look up,
// create or drop a bucket, never while a bucket lock is being acquired.
type buckets[T any] struct {
	mu     sync.RWMutex
	m      map[string]*bucket[T]
	newVal func() T
}

type bucket[T any] struct {
	mu   sync.Mutex
	dead bool // dropped from the map; callers must look the key up again
	val  T
}

func newBuckets[T any](newVal func() T) *buckets[T] {
	return &buckets[T]{
		m:      make(map[string]*bucket[T]),
		newVal: newVal,
	}
}

func (b *buckets[T]) lookup(key string, create bool) *bucket[T] {
	b.mu.RLock()
	bk := b.m[key]
	b.mu.RUnlock()
	if bk != nil || !create {
		return bk
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if bk = b.m[key]; bk == nil {
		bk = &bucket[T]{val: b.newVal()}
		b.m[key] = bk
	}
	return bk
}

// with runs fn on the value for key while holding its bucket lock. Without create a
// missing key is skipped and with reports false. When fn returns true the bucket is
// dropped.
func (b *buckets[T]) with(key string, create bool, fn func(v T) (drop bool)) bool {
	for {
		bk := b.lookup(key, create)
		if bk == nil {
			return false
		}

		bk.mu.Lock()
		if bk.dead {
			bk.mu.Unlock()
			continue
		}
		if fn(bk.val) {
			bk.dead = true
			b.mu.Lock()
			if b.m[key] == bk {
				delete(b.m, key)
			}
			b.mu.Unlock()
		}
		bk.mu.Unlock()
		return true
	}
}

func (b *buckets[T]) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}
