// Package policy owns the node's own contract whitelist and blacklist.
package policy

import (
	"sync"
	"sync/atomic"

	"contract_gate/internal/dataType"
	"contract_gate/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Observer is told about every mutation that changed a list.
type Observer interface {
	PolicyChanged(kind dataType.ListKind)
}

type ObserverFunc func(kind dataType.ListKind)

func (f ObserverFunc) PolicyChanged(kind dataType.ListKind) { f(kind) }

// Store is the source of truth for local policy. Writes are serialized;
// readers load the current PolicyView without locking and always see a
// complete pre- or post-update state.
type Store struct {
	mu        sync.Mutex
	view      atomic.Pointer[dataType.PolicyView]
	obsMu     sync.RWMutex
	observers []Observer
	logger    *zap.Logger
}

func NewStore(whitelist, blacklist []common.Address, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	s.view.Store(&dataType.PolicyView{
		Whitelist: dataType.NewAddressSet(whitelist...),
		Blacklist: dataType.NewAddressSet(blacklist...),
	})
	return s
}

func (s *Store) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// View returns the current immutable list pair.
func (s *Store) View() *dataType.PolicyView {
	return s.view.Load()
}

func (s *Store) Whitelist() []common.Address {
	return s.View().Whitelist.Snapshot()
}

func (s *Store) Blacklist() []common.Address {
	return s.View().Blacklist.Snapshot()
}

func (s *Store) List(kind dataType.ListKind) []common.Address {
	return s.View().List(kind).Snapshot()
}

func (s *Store) UpdateWhitelist(addr common.Address, add bool) bool {
	return s.Update(dataType.Whitelist, addr, add)
}

func (s *Store) UpdateBlacklist(addr common.Address, add bool) bool {
	return s.Update(dataType.Blacklist, addr, add)
}

// Update adds or removes addr and reports whether the list changed.
// Observers run after the new view is visible and only when it changed.
func (s *Store) Update(kind dataType.ListKind, addr common.Address, add bool) bool {
	if !kind.Valid() {
		return false
	}
	if !s.apply(kind, addr, add) {
		s.logger.Debug("policy unchanged",
			zap.Stringer("list", kind), zap.Stringer("address", addr), zap.Bool("add", add))
		return false
	}
	s.logger.Info("policy updated",
		zap.Stringer("list", kind), zap.Stringer("address", addr), zap.Bool("add", add))
	s.notify(kind)
	return true
}

// AddOrRemove is the administrative entry point: it parses the list kind and
// address strings before mutating anything.
func (s *Store) AddOrRemove(listKind, address string, add bool) error {
	kind, err := dataType.ParseListKind(listKind)
	if err != nil {
		return err
	}
	addr, err := utils.ParseAddress(address)
	if err != nil {
		return err
	}
	s.Update(kind, addr, add)
	return nil
}

func (s *Store) apply(kind dataType.ListKind, addr common.Address, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.view.Load()
	list := current.List(kind)
	if list.Contains(addr) == add {
		return false
	}
	next := list.Clone()
	if add {
		next.Add(addr)
	} else {
		next.Remove(addr)
	}
	s.view.Store(current.With(kind, next))
	return true
}

func (s *Store) notify(kind dataType.ListKind) {
	s.obsMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.PolicyChanged(kind)
	}
}
