package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// versionDedupe remembers the highest applied version per layer.
type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{lru: c}
}

// isNew reports whether v is greater than the last recorded version.
func (d *versionDedupe) isNew(key string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return !ok || v > last
}

func (d *versionDedupe) record(key string, v uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && last >= v {
		return
	}
	d.lru.Add(key, v)
}
