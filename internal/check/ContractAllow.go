package check

import (
	"contract_gate/internal/action"
	"contract_gate/internal/dataType"

	"github.com/ethereum/go-ethereum/common"
)

// ContractAllowList decides when an allow-list is in force: members pass,
// everything else is rejected. An empty list leaves the decision open.
func ContractAllowList(addr common.Address, view *dataType.PolicyView, decision *action.Decision) {
	if decision.Get() != action.Undecided {
		return
	}
	if view.Whitelist.IsEmpty() {
		return
	}
	if view.Whitelist.Contains(addr) {
		decision.Set(action.Allow)
	} else {
		decision.SetDeny(action.NotInAllowList)
	}
}
