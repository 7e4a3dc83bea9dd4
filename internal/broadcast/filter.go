// Package broadcast decides which connected peers receive which pending
// transactions.
package broadcast

import (
	"contract_gate/internal/check"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// Filter drops (peer, tx) pairs the peer would reject under its own
// advertised lists. It only affects routing, never validity.
type Filter struct {
	evaluator *check.Evaluator
	logger    *zap.Logger
}

func NewFilter(evaluator *check.Evaluator, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{evaluator: evaluator, logger: logger}
}

// AllowForPeer reports whether tx may be forwarded to id. Contract creations
// and transfers to accounts without code always pass.
func (f *Filter) AllowForPeer(id peer.ID, tx *types.Transaction, state check.CodeReader) bool {
	to := tx.To()
	if to == nil || state.GetCodeSize(*to) == 0 {
		return true
	}
	allowed := f.evaluator.IsForwardAllowed(*to, id)
	f.logger.Debug("forward check",
		zap.Stringer("peer", id),
		zap.Stringer("tx", tx.Hash()),
		zap.Bool("allowed", allowed),
	)
	return allowed
}
