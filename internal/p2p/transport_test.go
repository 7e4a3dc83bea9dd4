package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"contract_gate/internal/dataType"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type event struct {
	kind    string
	peer    peer.ID
	code    uint8
	payload string
}

// recorder logs every handler call and greets new peers with one frame.
type recorder struct {
	greeting string

	mu     sync.Mutex
	events []event
}

func (r *recorder) HandleNewConnection(p dataType.Peer) {
	r.record(event{kind: "connect", peer: p.ID()})
	if r.greeting != "" {
		_ = p.Send(0x01, []byte(r.greeting))
	}
}

func (r *recorder) HandleDisconnect(id peer.ID) {
	r.record(event{kind: "disconnect", peer: id})
}

func (r *recorder) ProcessMessage(id peer.ID, code uint8, payload []byte) error {
	r.record(event{kind: "message", peer: id, code: code, payload: string(payload)})
	return nil
}

func (r *recorder) record(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) kinds(id peer.ID) []string {
	var out []string
	for _, e := range r.snapshot() {
		if e.peer == id {
			out = append(out, e.kind)
		}
	}
	return out
}

func newMockPair(t *testing.T) (mocknet.Mocknet, host.Host, host.Host) {
	mn := mocknet.New()
	t.Cleanup(func() { _ = mn.Close() })
	a, err := mn.GenPeer()
	require.NoError(t, err)
	b, err := mn.GenPeer()
	require.NoError(t, err)
	require.NoError(t, mn.LinkAll())
	return mn, a, b
}

func TestTransport_HandshakeAndDisconnect(t *testing.T) {
	mn, hostA, hostB := newMockPair(t)
	logger := zaptest.NewLogger(t)

	recA := &recorder{greeting: "from-a"}
	recB := &recorder{greeting: "from-b"}
	ta := NewTransport(hostA, recA, logger.Named("a"), time.Second)
	tb := NewTransport(hostB, recB, logger.Named("b"), time.Second)
	ta.Start()
	tb.Start()

	_, err := mn.ConnectPeers(hostA.ID(), hostB.ID())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recB.kinds(hostA.ID())) == 2 && len(recA.kinds(hostB.ID())) == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"connect", "message"}, recB.kinds(hostA.ID()))
	assert.Equal(t, []string{"connect", "message"}, recA.kinds(hostB.ID()))
	msg := recB.snapshot()[1]
	assert.Equal(t, uint8(0x01), msg.code)
	assert.Equal(t, "from-a", msg.payload)

	require.NoError(t, mn.DisconnectPeers(hostA.ID(), hostB.ID()))
	require.Eventually(t, func() bool {
		k := recB.kinds(hostA.ID())
		return len(k) == 3 && k[2] == "disconnect"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, ta.Close())
	require.NoError(t, tb.Close())
}

func TestTransport_SendAfterDisconnectFails(t *testing.T) {
	mn, hostA, hostB := newMockPair(t)
	logger := zaptest.NewLogger(t)

	var (
		mu     sync.Mutex
		remote dataType.Peer
	)
	capture := &captureHandler{onConnect: func(p dataType.Peer) {
		mu.Lock()
		remote = p
		mu.Unlock()
	}}
	ta := NewTransport(hostA, capture, logger, time.Second)
	ta.Start()
	tb := NewTransport(hostB, &recorder{}, logger, time.Second)
	tb.Start()

	_, err := mn.ConnectPeers(hostA.ID(), hostB.ID())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return remote != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, mn.DisconnectPeers(hostA.ID(), hostB.ID()))
	require.Eventually(t, capture.disconnected, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	err = remote.Send(0x01, []byte("late"))
	mu.Unlock()
	assert.ErrorIs(t, err, dataType.ErrPeerNotConnected)

	require.NoError(t, ta.Close())
	require.NoError(t, tb.Close())
}

func TestTransport_BootstrapSkipsBadAddresses(t *testing.T) {
	_, hostA, hostB := newMockPair(t)
	ta := NewTransport(hostA, &recorder{}, zaptest.NewLogger(t), time.Second)

	good := hostB.Addrs()[0].String() + "/p2p/" + hostB.ID().String()
	n := ta.Bootstrap(context.Background(), []string{"not-a-multiaddr", hostB.Addrs()[0].String(), good})
	assert.Equal(t, 1, n)
}

type captureHandler struct {
	onConnect func(p dataType.Peer)

	mu   sync.Mutex
	gone bool
}

func (c *captureHandler) HandleNewConnection(p dataType.Peer) { c.onConnect(p) }

func (c *captureHandler) HandleDisconnect(peer.ID) {
	c.mu.Lock()
	c.gone = true
	c.mu.Unlock()
}

func (c *captureHandler) ProcessMessage(peer.ID, uint8, []byte) error { return nil }

func (c *captureHandler) disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gone
}
