package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"contract_gate/internal/check"
	"contract_gate/internal/codec"
	"contract_gate/internal/dataType"
	"contract_gate/internal/metrics"
	"contract_gate/internal/policy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

type peerSession struct {
	peer   dataType.Peer
	sendMu sync.Mutex
}

// GossipChannel pushes the local lists to peers on connect and on every
// local change, and feeds what peers advertise into the PeerPolicyCache.
// Lists arriving over the per-peer rate are held back, newest per (peer,
// kind), and applied by FlushDeferred once the peer is under the rate.
type GossipChannel struct {
	store   *policy.Store
	cache   *dataType.PeerPolicyCache
	logger  *zap.Logger
	metrics *metrics.Metrics
	flood   *check.PeerFlood

	mu       sync.RWMutex
	sessions map[peer.ID]*peerSession
	closed   bool
	inflight sync.WaitGroup

	pendMu   sync.Mutex
	deferred map[peer.ID]map[dataType.ListKind][]common.Address
}

// NewGossipChannel subscribes the channel to store changes. A nil flood
// guard admits every message.
func NewGossipChannel(store *policy.Store, cache *dataType.PeerPolicyCache, flood *check.PeerFlood, logger *zap.Logger, m *metrics.Metrics) *GossipChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	gc := &GossipChannel{
		store:    store,
		cache:    cache,
		logger:   logger,
		metrics:  m,
		flood:    flood,
		sessions: make(map[peer.ID]*peerSession),
		deferred: make(map[peer.ID]map[dataType.ListKind][]common.Address),
	}
	store.Subscribe(gc)
	return gc
}

// HandleNewConnection registers p and sends it the whitelist followed by
// the blacklist before returning.
func (gc *GossipChannel) HandleNewConnection(p dataType.Peer) {
	id := p.ID()
	session := &peerSession{peer: p}

	gc.mu.Lock()
	if gc.closed {
		gc.mu.Unlock()
		return
	}
	gc.cache.OnPeerConnected(id)
	gc.sessions[id] = session
	count := len(gc.sessions)
	gc.mu.Unlock()

	gc.metrics.SetConnectedPeers(count)
	gc.logger.Info("peer connected", zap.Stringer("peer", id))

	for _, kind := range dataType.ListKinds {
		gc.send(session, kind)
	}
}

func (gc *GossipChannel) HandleDisconnect(id peer.ID) {
	gc.mu.Lock()
	delete(gc.sessions, id)
	gc.cache.OnPeerDisconnected(id)
	count := len(gc.sessions)
	gc.mu.Unlock()

	gc.pendMu.Lock()
	delete(gc.deferred, id)
	gc.pendMu.Unlock()
	gc.flood.Forget(id)

	gc.metrics.SetConnectedPeers(count)
	gc.logger.Info("peer disconnected", zap.Stringer("peer", id))
}

// ProcessMessage applies one inbound frame. Malformed or unexpected
// messages are dropped and reported; the connection is left alone. A list
// over the peer's rate replaces any list of the same kind still held back
// for that peer and returns ErrPeerRateLimited.
func (gc *GossipChannel) ProcessMessage(id peer.ID, code uint8, payload []byte) error {
	if code != dataType.ContractAddressListCode {
		gc.metrics.GossipDropped("unknown_code")
		gc.logger.Debug("dropped message with unknown code", zap.Stringer("peer", id), zap.Uint8("code", code))
		return fmt.Errorf("%w: unknown message code 0x%02x", codec.ErrMalformedMessage, code)
	}

	msg, err := codec.Decode(payload)
	if err != nil {
		gc.metrics.GossipDropped("malformed")
		gc.logger.Warn("dropped malformed list message", zap.Stringer("peer", id), zap.Error(err))
		return err
	}

	gc.pendMu.Lock()
	defer gc.pendMu.Unlock()

	if !gc.flood.Allow(id) {
		if !gc.cache.IsConnected(id) {
			gc.metrics.GossipDropped("not_connected")
			return dataType.ErrPeerNotConnected
		}
		kinds, ok := gc.deferred[id]
		if !ok {
			kinds = make(map[dataType.ListKind][]common.Address, len(dataType.ListKinds))
			gc.deferred[id] = kinds
		}
		kinds[msg.Kind] = msg.Addresses
		gc.metrics.GossipDeferred()
		gc.logger.Debug("deferred list message over rate", zap.Stringer("peer", id), zap.Stringer("kind", msg.Kind))
		return check.ErrPeerRateLimited
	}

	if kinds, ok := gc.deferred[id]; ok {
		delete(kinds, msg.Kind)
		if len(kinds) == 0 {
			delete(gc.deferred, id)
		}
	}
	return gc.apply(id, msg)
}

// apply must be called with pendMu held.
func (gc *GossipChannel) apply(id peer.ID, msg dataType.GossipMessage) error {
	if !gc.cache.OnPeerMessage(id, msg.Kind, msg.Addresses) {
		gc.metrics.GossipDropped("not_connected")
		gc.logger.Debug("dropped list from unregistered peer", zap.Stringer("peer", id), zap.Stringer("kind", msg.Kind))
		return dataType.ErrPeerNotConnected
	}

	gc.metrics.GossipReceived(msg.Kind.String())
	gc.logger.Debug("peer list updated",
		zap.Stringer("peer", id),
		zap.Stringer("kind", msg.Kind),
		zap.Int("size", len(msg.Addresses)),
	)
	return nil
}

// FlushDeferred applies held-back lists of peers that are back under the
// rate and returns how many were applied.
func (gc *GossipChannel) FlushDeferred() int {
	gc.pendMu.Lock()
	defer gc.pendMu.Unlock()

	applied := 0
	for id, kinds := range gc.deferred {
		for _, kind := range dataType.ListKinds {
			addrs, ok := kinds[kind]
			if !ok {
				continue
			}
			if !gc.flood.Allow(id) {
				break
			}
			delete(kinds, kind)
			if gc.apply(id, dataType.GossipMessage{Kind: kind, Addresses: addrs}) == nil {
				applied++
			}
		}
		if len(kinds) == 0 {
			delete(gc.deferred, id)
		}
	}
	return applied
}

// RunDeferred calls FlushDeferred every interval until ctx is done.
func (gc *GossipChannel) RunDeferred(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			gc.FlushDeferred()
		case <-ctx.Done():
			return
		}
	}
}

// PolicyChanged re-broadcasts the full list of kind to every connected
// peer. Each peer is sent to on its own goroutine.
func (gc *GossipChannel) PolicyChanged(kind dataType.ListKind) {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	if gc.closed {
		return
	}
	for _, session := range gc.sessions {
		gc.inflight.Add(1)
		go func(s *peerSession) {
			defer gc.inflight.Done()
			gc.send(s, kind)
		}(session)
	}
}

// send encodes the list as it is now, under the session's send lock, so a
// later send to the same peer never carries an older list.
func (gc *GossipChannel) send(s *peerSession, kind dataType.ListKind) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	id := s.peer.ID()
	payload, err := codec.Encode(kind, gc.store.List(kind))
	if err != nil {
		gc.logger.Error("failed to encode list", zap.Stringer("kind", kind), zap.Error(err))
		return
	}
	if err := s.peer.Send(dataType.ContractAddressListCode, payload); err != nil {
		gc.metrics.GossipSendFailed()
		if errors.Is(err, dataType.ErrPeerNotConnected) {
			gc.logger.Debug("peer gone before list send", zap.Stringer("peer", id), zap.Stringer("kind", kind))
			return
		}
		gc.logger.Warn("failed to send list", zap.Stringer("peer", id), zap.Stringer("kind", kind), zap.Error(err))
		return
	}
	gc.metrics.GossipSent(kind.String())
}

func (gc *GossipChannel) ConnectedPeers() []peer.ID {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	ids := make([]peer.ID, 0, len(gc.sessions))
	for id := range gc.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close stops accepting new work and waits for in-flight broadcasts.
func (gc *GossipChannel) Close() {
	gc.mu.Lock()
	gc.closed = true
	gc.mu.Unlock()
	gc.inflight.Wait()
}
