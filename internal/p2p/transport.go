package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"contract_gate/internal/dataType"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const DefaultSendTimeout = 5 * time.Second

// Handler receives sub-protocol events. Events for one peer are delivered
// in order: connect, messages, disconnect.
type Handler interface {
	HandleNewConnection(p dataType.Peer)
	HandleDisconnect(id peer.ID)
	ProcessMessage(id peer.ID, code uint8, payload []byte) error
}

type Transport struct {
	host        host.Host
	handler     Handler
	logger      *zap.Logger
	sendTimeout time.Duration
	dispatch    *dispatcher
	notifiee    *network.NotifyBundle

	mu     sync.Mutex
	peers  map[peer.ID]*streamPeer
	closed bool
}

func NewTransport(h host.Host, handler Handler, logger *zap.Logger, sendTimeout time.Duration) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	t := &Transport{
		host:        h,
		handler:     handler,
		logger:      logger,
		sendTimeout: sendTimeout,
		dispatch:    newDispatcher(maxQueuedFrames),
		peers:       make(map[peer.ID]*streamPeer),
	}
	t.notifiee = &network.NotifyBundle{
		ConnectedF:    t.onConnected,
		DisconnectedF: t.onDisconnected,
	}
	return t
}

// Start installs the stream handler and connection notifications, and
// attaches peers that are already connected.
func (t *Transport) Start() {
	t.host.SetStreamHandler(ProtocolID, t.handleStream)
	t.host.Network().Notify(t.notifiee)
	for _, id := range t.host.Network().Peers() {
		t.attach(id)
	}
	t.logger.Info("policy transport started",
		zap.Stringer("peerID", t.host.ID()),
		zap.Any("addrs", t.host.Addrs()),
	)
}

// Bootstrap dials each multiaddr (with a /p2p/ component). Failures are
// logged and skipped.
func (t *Transport) Bootstrap(ctx context.Context, addrs []string) int {
	connected := 0
	for _, s := range addrs {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			t.logger.Warn("invalid bootstrap address", zap.String("addr", s), zap.Error(err))
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			t.logger.Warn("bootstrap address has no peer id", zap.String("addr", s), zap.Error(err))
			continue
		}
		if info.ID == t.host.ID() {
			continue
		}
		if err := t.host.Connect(ctx, *info); err != nil {
			t.logger.Warn("failed to dial bootstrap peer", zap.Stringer("peer", info.ID), zap.Error(err))
			continue
		}
		connected++
	}
	return connected
}

// Close detaches every peer and waits for queued events to finish.
func (t *Transport) Close() error {
	t.host.RemoveStreamHandler(ProtocolID)
	t.host.Network().StopNotify(t.notifiee)

	t.mu.Lock()
	t.closed = true
	peers := t.peers
	t.peers = make(map[peer.ID]*streamPeer)
	t.mu.Unlock()

	for id, sp := range peers {
		sp.close()
		t.dispatch.enqueue(id, func() { t.handler.HandleDisconnect(id) })
	}
	t.dispatch.wait()
	return nil
}

func (t *Transport) onConnected(_ network.Network, c network.Conn) {
	t.attach(c.RemotePeer())
}

func (t *Transport) onDisconnected(n network.Network, c network.Conn) {
	id := c.RemotePeer()

	t.mu.Lock()
	sp, ok := t.peers[id]
	if !ok || n.Connectedness(id) == network.Connected {
		t.mu.Unlock()
		return
	}
	delete(t.peers, id)
	t.mu.Unlock()

	sp.close()
	t.dispatch.enqueue(id, func() { t.handler.HandleDisconnect(id) })
}

// attach fires HandleNewConnection on the first connection to id.
func (t *Transport) attach(id peer.ID) {
	if id == t.host.ID() {
		return
	}
	t.mu.Lock()
	if _, ok := t.peers[id]; ok || t.closed {
		t.mu.Unlock()
		return
	}
	sp := &streamPeer{transport: t, id: id}
	t.peers[id] = sp
	t.mu.Unlock()

	t.dispatch.enqueue(id, func() { t.handler.HandleNewConnection(sp) })
}

func (t *Transport) handleStream(s network.Stream) {
	id := s.Conn().RemotePeer()
	// a stream can beat the connection notification
	t.attach(id)
	for {
		code, payload, err := ReadFrame(s)
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = s.Close()
				return
			}
			t.logger.Debug("policy stream closed", zap.Stringer("peer", id), zap.Error(err))
			_ = s.Reset()
			return
		}
		t.dispatch.enqueueWait(id, func() {
			if err := t.handler.ProcessMessage(id, code, payload); err != nil {
				t.logger.Debug("inbound message rejected", zap.Stringer("peer", id), zap.Error(err))
			}
		})
	}
}

// streamPeer writes frames to one peer over a single lazily opened stream.
type streamPeer struct {
	transport *Transport
	id        peer.ID

	mu     sync.Mutex
	stream network.Stream
	closed bool
}

func (p *streamPeer) ID() peer.ID { return p.id }

func (p *streamPeer) Send(code uint8, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: %s", dataType.ErrPeerNotConnected, p.id)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	timeout := p.transport.sendTimeout
	if p.stream == nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s, err := p.transport.host.NewStream(network.WithNoDial(ctx, "policy push"), p.id, ProtocolID)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", dataType.ErrPeerNotConnected, p.id, err)
		}
		p.stream = s
	}

	_ = p.stream.SetWriteDeadline(time.Now().Add(timeout))
	if err := WriteFrame(p.stream, code, payload); err != nil {
		_ = p.stream.Reset()
		p.stream = nil
		return fmt.Errorf("%w: %s: %v", dataType.ErrPeerNotConnected, p.id, err)
	}
	return nil
}

func (p *streamPeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.stream != nil {
		_ = p.stream.Close()
		p.stream = nil
	}
}
