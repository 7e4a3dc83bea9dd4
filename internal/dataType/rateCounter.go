package dataType

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// slot counts events that happened during one second.
type slot struct {
	second int64
	count  int64
}

// window is a ring of one-second slots covering the last len(slots) seconds.
type window struct {
	slots    []slot
	lastSeen int64
}

func newWindow(seconds int64) *window {
	return &window{slots: make([]slot, seconds)}
}

func (w *window) add(now, n int64) {
	idx := now % int64(len(w.slots))
	if w.slots[idx].second != now {
		w.slots[idx] = slot{second: now, count: n}
	} else {
		w.slots[idx].count += n
	}
	w.lastSeen = now
}

func (w *window) sum(now int64) int64 {
	size := int64(len(w.slots))
	var total int64
	for _, s := range w.slots {
		if s.second > now-size && s.second <= now {
			total += s.count
		}
	}
	return total
}

type counterBucket struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Counter is a sharded sliding-window event counter keyed by string.
type Counter struct {
	buckets []*counterBucket
	seconds int64
	now     func() int64
}

// NewCounter counts over the last windowSeconds seconds.
func NewCounter(bucketCount int, windowSeconds int64) *Counter {
	if bucketCount <= 0 {
		bucketCount = DefaultPeerCacheBuckets
	}
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	c := &Counter{
		buckets: make([]*counterBucket, bucketCount),
		seconds: windowSeconds,
		now:     func() int64 { return time.Now().Unix() },
	}
	for i := range c.buckets {
		c.buckets[i] = &counterBucket{windows: make(map[string]*window)}
	}
	return c
}

func (c *Counter) getBucket(key string) *counterBucket {
	return c.buckets[xxhash.Sum64String(key)%uint64(len(c.buckets))]
}

// Add records n events for key and returns the total inside the window.
func (c *Counter) Add(key string, n int64) int64 {
	now := c.now()
	b := c.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[key]
	if !ok {
		w = newWindow(c.seconds)
		b.windows[key] = w
	}
	w.add(now, n)
	return w.sum(now)
}

func (c *Counter) Query(key string) int64 {
	b := c.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[key]; ok {
		return w.sum(c.now())
	}
	return 0
}

func (c *Counter) Reset(key string) {
	b := c.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, key)
}

// GC drops keys with no events inside the window.
func (c *Counter) GC() {
	expire := c.now() - c.seconds
	for _, b := range c.buckets {
		b.mu.Lock()
		for key, w := range b.windows {
			if w.lastSeen <= expire {
				delete(b.windows, key)
			}
		}
		b.mu.Unlock()
	}
}

func (c *Counter) Len() int {
	n := 0
	for _, b := range c.buckets {
		b.mu.Lock()
		n += len(b.windows)
		b.mu.Unlock()
	}
	return n
}

// RunGC calls GC every interval until ctx is done.
func (c *Counter) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.GC()
		case <-ctx.Done():
			return
		}
	}
}
