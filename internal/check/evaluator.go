package check

import (
	"contract_gate/internal/action"
	"contract_gate/internal/dataType"
	"contract_gate/internal/metrics"
	"contract_gate/internal/policy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
)

type CheckFunc func(common.Address, *dataType.PolicyView, *action.Decision)

// Order matters: the allow-list takes precedence over the deny-list.
var checkFuncs = []CheckFunc{
	ContractAllowList,
	ContractBlockList,
}

// Scope selects whose lists an evaluation uses.
type Scope struct {
	peer    peer.ID
	forPeer bool
}

// Local is the consensus scope: only this node's configured lists.
func Local() Scope { return Scope{} }

// ForPeer uses the lists last advertised by id.
func ForPeer(id peer.ID) Scope { return Scope{peer: id, forPeer: true} }

func (s Scope) IsLocal() bool { return !s.forPeer }

func (s Scope) Peer() (peer.ID, bool) { return s.peer, s.forPeer }

func (s Scope) String() string {
	if s.forPeer {
		return "peer"
	}
	return "local"
}

// Evaluator is the admission decision function over a PolicyStore and a
// PeerPolicyCache. Local evaluations never touch the cache.
type Evaluator struct {
	store   *policy.Store
	peers   *dataType.PeerPolicyCache
	metrics *metrics.Metrics
}

func NewEvaluator(store *policy.Store, peers *dataType.PeerPolicyCache, m *metrics.Metrics) *Evaluator {
	if peers == nil {
		peers = dataType.NewPeerPolicyCache(0)
	}
	return &Evaluator{store: store, peers: peers, metrics: m}
}

func (e *Evaluator) resolve(scope Scope) *dataType.PolicyView {
	if id, ok := scope.Peer(); ok {
		return e.peers.View(id)
	}
	return e.store.View()
}

// Evaluate returns a decided Allow or Deny.
func (e *Evaluator) Evaluate(addr common.Address, scope Scope) *action.Decision {
	view := e.resolve(scope)
	decision := action.NewDecision()

	for _, checkFunc := range checkFuncs {
		checkFunc(addr, view, decision)
		if decision.Get() != action.Undecided {
			break
		}
	}

	// if still undecided, allow
	if decision.Get() == action.Undecided {
		decision.Set(action.Allow)
	}
	e.metrics.Decision(scope.String(), decision.Get().String())
	return decision
}

// IsContractCallAllowed is the consensus-time hook.
func (e *Evaluator) IsContractCallAllowed(addr common.Address) bool {
	return e.Evaluate(addr, Local()).Allowed()
}

// IsForwardAllowed is the broadcast-routing hook; it is an optimisation and
// must never feed into transaction validity.
func (e *Evaluator) IsForwardAllowed(addr common.Address, id peer.ID) bool {
	return e.Evaluate(addr, ForPeer(id)).Allowed()
}
