package broadcast

import (
	"fmt"
	"math/big"
	"testing"

	"contract_gate/internal/check"
	"contract_gate/internal/dataType"
	"contract_gate/internal/policy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	contractA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	contractB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	account   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type codeMap map[common.Address]int

func (m codeMap) GetCodeSize(addr common.Address) int { return m[addr] }

var state = codeMap{contractA: 32, contractB: 32}

type testPeer struct {
	id          peer.ID
	hashCapable bool
}

func (p testPeer) ID() peer.ID { return p.id }
func (p testPeer) SupportsHashAnnouncements() bool { return p.hashCapable }

func legacyTx(nonce uint64, to common.Address) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func blobTx(nonce uint64, to common.Address) *types.Transaction {
	return types.NewTx(&types.BlobTx{
		ChainID:    uint256.NewInt(1),
		Nonce:      nonce,
		GasTipCap:  uint256.NewInt(1),
		GasFeeCap:  uint256.NewInt(1),
		Gas:        21000,
		To:         to,
		Value:      uint256.NewInt(0),
		BlobFeeCap: uint256.NewInt(1),
		BlobHashes: []common.Hash{{0x01}},
		V:          uint256.NewInt(0),
		R:          uint256.NewInt(0),
		S:          uint256.NewInt(0),
	})
}

func makePeers(n int, hashCapable bool, prefix string) []TxPeer {
	peers := make([]TxPeer, n)
	for i := range peers {
		peers[i] = testPeer{id: peer.ID(fmt.Sprintf("%s-%d", prefix, i)), hashCapable: hashCapable}
	}
	return peers
}

func newPlanner(t *testing.T) (*Planner, *dataType.PeerPolicyCache) {
	logger := zaptest.NewLogger(t)
	store := policy.NewStore(nil, nil, logger)
	cache := dataType.NewPeerPolicyCache(4)
	eval := check.NewEvaluator(store, cache, nil)
	return NewPlannerWithSeed(NewFilter(eval, logger), logger, 1), cache
}

func TestPlan_NoPeersOrTxs(t *testing.T) {
	p, _ := newPlanner(t)
	assert.Empty(t, p.Plan(nil, makePeers(3, false, "p"), state))
	assert.Empty(t, p.Plan([]*types.Transaction{legacyTx(0, account)}, nil, state))
}

func TestPlan_FullOnlyPeersGetNonBlobInFull(t *testing.T) {
	p, _ := newPlanner(t)
	txs := []*types.Transaction{legacyTx(0, contractA), blobTx(1, contractB)}
	plan := p.Plan(txs, makePeers(4, false, "full"), state)

	require.Len(t, plan, 4)
	for id, batch := range plan {
		require.Len(t, batch.Full, 1, id)
		assert.Equal(t, txs[0].Hash(), batch.Full[0].Hash())
		assert.Empty(t, batch.Hashes, "full-only peers never get announcements")
	}
}

func TestPlan_MixedGroupToppedUpFromHashPeers(t *testing.T) {
	p, _ := newPlanner(t)
	txs := []*types.Transaction{legacyTx(0, contractA), blobTx(1, contractB)}
	plan := p.Plan(txs, makePeers(9, true, "hash"), state)

	require.Len(t, plan, 9)
	mixed, hashOnly := 0, 0
	for _, batch := range plan {
		for _, tx := range batch.Full {
			assert.NotEqual(t, uint8(types.BlobTxType), tx.Type(), "blob txs are never sent in full")
		}
		switch {
		case len(batch.Full) == 1 && len(batch.Hashes) == 1:
			assert.Equal(t, txs[1].Hash(), batch.Hashes[0])
			mixed++
		case len(batch.Full) == 0 && len(batch.Hashes) == 2:
			hashOnly++
		default:
			t.Fatalf("unexpected batch %+v", batch)
		}
	}
	assert.Equal(t, 3, mixed, "ceil(sqrt(9)) peers get full transactions")
	assert.Equal(t, 6, hashOnly)
}

func TestPlan_EnoughFullPeersLeavesHashPeersAlone(t *testing.T) {
	p, _ := newPlanner(t)
	txs := []*types.Transaction{legacyTx(0, account)}
	peers := append(makePeers(2, false, "full"), makePeers(2, true, "hash")...)
	plan := p.Plan(txs, peers, state)

	require.Len(t, plan, 4)
	for _, tp := range peers {
		batch := plan[tp.ID()]
		if tp.SupportsHashAnnouncements() {
			assert.Empty(t, batch.Full)
			assert.Len(t, batch.Hashes, 1)
		} else {
			assert.Len(t, batch.Full, 1)
			assert.Empty(t, batch.Hashes)
		}
	}
}

func TestPlan_FiltersByPeerLists(t *testing.T) {
	p, cache := newPlanner(t)
	strict := peer.ID("full-0")
	cache.OnPeerConnected(strict)
	cache.OnPeerMessage(strict, dataType.Blacklist, []common.Address{contractA})

	txs := []*types.Transaction{legacyTx(0, contractA), legacyTx(1, account)}
	plan := p.Plan(txs, makePeers(2, false, "full"), state)

	require.Len(t, plan[strict].Full, 1)
	assert.Equal(t, txs[1].Hash(), plan[strict].Full[0].Hash())
	assert.Len(t, plan["full-1"].Full, 2)
}

func TestPlan_FullyFilteredPeerIsOmitted(t *testing.T) {
	p, cache := newPlanner(t)
	strict := peer.ID("full-0")
	cache.OnPeerConnected(strict)
	cache.OnPeerMessage(strict, dataType.Whitelist, []common.Address{contractB})

	plan := p.Plan([]*types.Transaction{legacyTx(0, contractA)}, makePeers(1, false, "full"), state)
	assert.NotContains(t, plan, strict)
}

func TestFilter_SkipsNonContractTargets(t *testing.T) {
	p, cache := newPlanner(t)
	strict := peer.ID("x")
	cache.OnPeerConnected(strict)
	cache.OnPeerMessage(strict, dataType.Whitelist, []common.Address{contractB})

	create := types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
	assert.True(t, p.filter.AllowForPeer(strict, create, state))
	assert.True(t, p.filter.AllowForPeer(strict, legacyTx(0, account), state))
	assert.False(t, p.filter.AllowForPeer(strict, legacyTx(0, contractA), state))
	assert.True(t, p.filter.AllowForPeer(strict, legacyTx(0, contractB), state))
}
