package dataType

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
)

const DefaultPeerCacheBuckets = 16

type peerBucket struct {
	mu        sync.RWMutex
	connected map[peer.ID]struct{}
	entries   map[peer.ID]*PolicyView
}

func newPeerBucket() *peerBucket {
	return &peerBucket{
		connected: make(map[peer.ID]struct{}),
		entries:   make(map[peer.ID]*PolicyView),
	}
}

// PeerPolicyCache holds the lists most recently advertised by each connected
// peer. Entries are whole PolicyView values swapped under the bucket lock, so
// a reader never sees a half-applied message.
type PeerPolicyCache struct {
	buckets     []*peerBucket
	bucketCount uint64
}

func NewPeerPolicyCache(bucketCount int) *PeerPolicyCache {
	if bucketCount <= 0 {
		bucketCount = DefaultPeerCacheBuckets
	}
	c := &PeerPolicyCache{
		buckets:     make([]*peerBucket, bucketCount),
		bucketCount: uint64(bucketCount),
	}
	for i := 0; i < bucketCount; i++ {
		c.buckets[i] = newPeerBucket()
	}
	return c
}

func (c *PeerPolicyCache) getBucket(id peer.ID) *peerBucket {
	h := xxhash.Sum64String(string(id))
	return c.buckets[h%c.bucketCount]
}

// OnPeerConnected registers id so its messages are accepted. No entry is
// created until the first message arrives.
func (c *PeerPolicyCache) OnPeerConnected(id peer.ID) {
	bucket := c.getBucket(id)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.connected[id] = struct{}{}
}

// OnPeerDisconnected forgets everything about id. Safe to call repeatedly.
func (c *PeerPolicyCache) OnPeerDisconnected(id peer.ID) {
	bucket := c.getBucket(id)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	delete(bucket.connected, id)
	delete(bucket.entries, id)
}

// OnPeerMessage replaces the cached kind list for id with addrs. Messages
// from peers that are not registered as connected are dropped and false is
// returned.
func (c *PeerPolicyCache) OnPeerMessage(id peer.ID, kind ListKind, addrs []common.Address) bool {
	if !kind.Valid() {
		return false
	}
	set := NewAddressSet(addrs...)

	bucket := c.getBucket(id)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	if _, ok := bucket.connected[id]; !ok {
		return false
	}
	current, exists := bucket.entries[id]
	if !exists {
		current = EmptyPolicyView
	}
	bucket.entries[id] = current.With(kind, set)
	return true
}

// Get never returns nil; an unknown peer yields an empty set.
func (c *PeerPolicyCache) Get(id peer.ID, kind ListKind) *AddressSet {
	return c.View(id).List(kind)
}

func (c *PeerPolicyCache) View(id peer.ID) *PolicyView {
	bucket := c.getBucket(id)
	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	if view, ok := bucket.entries[id]; ok {
		return view
	}
	return EmptyPolicyView
}

func (c *PeerPolicyCache) IsConnected(id peer.ID) bool {
	bucket := c.getBucket(id)
	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	_, ok := bucket.connected[id]
	return ok
}

// Len returns the number of peers with a cached entry.
func (c *PeerPolicyCache) Len() int {
	n := 0
	for _, bucket := range c.buckets {
		bucket.mu.RLock()
		n += len(bucket.entries)
		bucket.mu.RUnlock()
	}
	return n
}
