package broadcast

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"contract_gate/internal/check"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// TxPeer is a connected peer as seen by the transaction broadcaster.
type TxPeer interface {
	ID() peer.ID
	// SupportsHashAnnouncements is true when the peer understands pooled
	// transaction hash announcements.
	SupportsHashAnnouncements() bool
}

// Batch is what one peer should receive.
type Batch struct {
	Full   []*types.Transaction
	Hashes []common.Hash
}

func (b Batch) IsEmpty() bool {
	return len(b.Full) == 0 && len(b.Hashes) == 0
}

type Planner struct {
	filter *Filter
	logger *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewPlanner(filter *Filter, logger *zap.Logger) *Planner {
	return NewPlannerWithSeed(filter, logger, time.Now().UnixNano())
}

func NewPlannerWithSeed(filter *Filter, logger *zap.Logger, seed int64) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		filter: filter,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// hashOnly reports whether tx may only be announced, never pushed.
func hashOnly(tx *types.Transaction) bool {
	return tx.Type() == types.BlobTxType
}

// Plan splits txs over peers. At least ceil(sqrt(len(peers))) peers get
// non-blob transactions in full; peers are topped up from the hash-capable
// group at random. Blob transactions only ever travel as hashes. Peers with
// nothing to receive are absent from the result.
func (p *Planner) Plan(txs []*types.Transaction, peers []TxPeer, state check.CodeReader) map[peer.ID]Batch {
	plan := make(map[peer.ID]Batch)
	if len(peers) == 0 || len(txs) == 0 {
		return plan
	}

	var fullTxs, hashTxs []*types.Transaction
	for _, tx := range txs {
		if hashOnly(tx) {
			hashTxs = append(hashTxs, tx)
		} else {
			fullTxs = append(fullTxs, tx)
		}
	}

	var fullPeers, hashPeers, mixedPeers []TxPeer
	for _, tp := range peers {
		if tp.SupportsHashAnnouncements() {
			hashPeers = append(hashPeers, tp)
		} else {
			fullPeers = append(fullPeers, tp)
		}
	}

	want := int(math.Ceil(math.Sqrt(float64(len(peers)))))
	if len(fullPeers) < want {
		delta := min(want-len(fullPeers), len(hashPeers))
		p.shuffle(hashPeers)
		cut := len(hashPeers) - delta
		mixedPeers = append(mixedPeers, hashPeers[cut:]...)
		hashPeers = hashPeers[:cut]
	}

	p.logger.Debug("broadcast plan",
		zap.Int("full", len(fullPeers)),
		zap.Int("hashOnly", len(hashPeers)),
		zap.Int("mixed", len(mixedPeers)),
	)

	for _, tp := range fullPeers {
		p.assign(plan, tp.ID(), fullTxs, nil, state)
	}
	for _, tp := range hashPeers {
		p.assign(plan, tp.ID(), nil, txs, state)
	}
	for _, tp := range mixedPeers {
		p.assign(plan, tp.ID(), fullTxs, hashTxs, state)
	}
	return plan
}

func (p *Planner) assign(plan map[peer.ID]Batch, id peer.ID, full, hashes []*types.Transaction, state check.CodeReader) {
	var batch Batch
	for _, tx := range full {
		if p.filter.AllowForPeer(id, tx, state) {
			batch.Full = append(batch.Full, tx)
		}
	}
	for _, tx := range hashes {
		if p.filter.AllowForPeer(id, tx, state) {
			batch.Hashes = append(batch.Hashes, tx.Hash())
		}
	}
	if !batch.IsEmpty() {
		plan[id] = batch
	}
}

func (p *Planner) shuffle(peers []TxPeer) {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	p.rng.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
}
