package check

import (
	"contract_gate/internal/action"
	"contract_gate/internal/dataType"

	"github.com/ethereum/go-ethereum/common"
)

func ContractBlockList(addr common.Address, view *dataType.PolicyView, decision *action.Decision) {
	if decision.Get() != action.Undecided {
		return
	}
	if view.Blacklist.Contains(addr) {
		decision.SetDeny(action.InDenyList)
	}
}
