package check

import (
	"context"
	"errors"
	"time"

	"contract_gate/internal/dataType"
	"contract_gate/internal/utils"

	"github.com/libp2p/go-libp2p/core/peer"
)

var ErrPeerRateLimited = errors.New("peer message rate exceeded")

// PeerFlood limits how many list messages one peer may send per window.
// A nil *PeerFlood allows everything.
type PeerFlood struct {
	rate    utils.Rate
	counter *dataType.Counter
}

// NewPeerFlood returns nil for the zero Rate.
func NewPeerFlood(rate utils.Rate, buckets int) *PeerFlood {
	if rate.IsZero() {
		return nil
	}
	return &PeerFlood{
		rate:    rate,
		counter: dataType.NewCounter(buckets, int64(rate.Window/time.Second)),
	}
}

// Allow reports whether id is still under the rate and, if it is, counts
// one message. Refused messages are not counted, so a peer that backs off
// is admitted again once its window slides.
func (f *PeerFlood) Allow(id peer.ID) bool {
	if f == nil {
		return true
	}
	key := string(id)
	if f.counter.Query(key) >= f.rate.Limit {
		return false
	}
	return f.counter.Add(key, 1) <= f.rate.Limit
}

// Forget drops the history of id, e.g. after it disconnects.
func (f *PeerFlood) Forget(id peer.ID) {
	if f == nil {
		return
	}
	f.counter.Reset(string(id))
}

// Run expires idle counters until ctx is done.
func (f *PeerFlood) Run(ctx context.Context) {
	if f == nil {
		return
	}
	f.counter.RunGC(ctx, f.rate.Window)
}
