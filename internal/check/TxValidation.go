package check

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrContractNotPermitted = errors.New("contract address not permitted")

// CodeReader is the slice of world state the admission hooks need.
// go-ethereum's vm.StateDB satisfies it.
type CodeReader interface {
	GetCodeSize(addr common.Address) int
}

// ValidateTransaction applies Local admission to a transaction. Contract
// creations and calls to accounts without code are always valid.
func (e *Evaluator) ValidateTransaction(tx *types.Transaction, state CodeReader) error {
	to := tx.To()
	if to == nil {
		return nil
	}
	if state.GetCodeSize(*to) == 0 {
		return nil
	}
	decision := e.Evaluate(*to, Local())
	if decision.Allowed() {
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrContractNotPermitted, to.Hex(), decision.Reason())
}
