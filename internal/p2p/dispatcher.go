package p2p

import (
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
)

// maxQueuedFrames bounds the inbound frames waiting for one peer.
const maxQueuedFrames = 8

// dispatcher runs tasks for one peer strictly in submission order, on at
// most one goroutine per peer. Different peers run independently.
type dispatcher struct {
	mu     sync.Mutex
	room   *sync.Cond
	limit  int
	queues map[peer.ID][]func()
	wg     sync.WaitGroup
}

func newDispatcher(limit int) *dispatcher {
	if limit <= 0 {
		limit = maxQueuedFrames
	}
	d := &dispatcher{limit: limit, queues: make(map[peer.ID][]func())}
	d.room = sync.NewCond(&d.mu)
	return d
}

// enqueue never blocks. Used for connection events, which must not be lost.
func (d *dispatcher) enqueue(id peer.ID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.push(id, fn)
}

// enqueueWait blocks while id already has limit tasks waiting. The stream
// reader calls it, so a fast sender is held back by stream flow control.
func (d *dispatcher) enqueueWait(id peer.ID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queues[id]) >= d.limit {
		d.room.Wait()
	}
	d.push(id, fn)
}

func (d *dispatcher) push(id peer.ID, fn func()) {
	q, running := d.queues[id]
	d.queues[id] = append(q, fn)
	if !running {
		d.wg.Add(1)
		go d.drain(id)
	}
}

func (d *dispatcher) drain(id peer.ID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[id]
		if len(q) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		fn := q[0]
		q[0] = nil
		d.queues[id] = q[1:]
		d.room.Broadcast()
		d.mu.Unlock()

		fn()
	}
}

// wait blocks until every queued task has run.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
