package dataType

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// AddressSet is a set of contract addresses.
//
// It is not safe for concurrent mutation. Sets shared between goroutines
// (inside a PolicyView) are never mutated after publication; writers Clone
// first.
type AddressSet struct {
	addrs map[common.Address]struct{}
}

func NewAddressSet(addrs ...common.Address) *AddressSet {
	s := &AddressSet{addrs: make(map[common.Address]struct{}, len(addrs))}
	for _, addr := range addrs {
		s.addrs[addr] = struct{}{}
	}
	return s
}

// Add inserts addr and reports whether the set changed.
func (s *AddressSet) Add(addr common.Address) bool {
	if _, exists := s.addrs[addr]; exists {
		return false
	}
	s.addrs[addr] = struct{}{}
	return true
}

// Remove deletes addr and reports whether the set changed.
func (s *AddressSet) Remove(addr common.Address) bool {
	if _, exists := s.addrs[addr]; !exists {
		return false
	}
	delete(s.addrs, addr)
	return true
}

func (s *AddressSet) Contains(addr common.Address) bool {
	if s == nil {
		return false
	}
	_, ok := s.addrs[addr]
	return ok
}

func (s *AddressSet) IsEmpty() bool {
	return s.Len() == 0
}

func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.addrs)
}

// Snapshot returns the members sorted by their raw bytes.
func (s *AddressSet) Snapshot() []common.Address {
	out := make([]common.Address, 0, s.Len())
	if s == nil {
		return out
	}
	for addr := range s.addrs {
		out = append(out, addr)
	}
	slices.SortFunc(out, func(a, b common.Address) int { return a.Cmp(b) })
	return out
}

func (s *AddressSet) Clone() *AddressSet {
	c := &AddressSet{addrs: make(map[common.Address]struct{}, s.Len())}
	if s == nil {
		return c
	}
	for addr := range s.addrs {
		c.addrs[addr] = struct{}{}
	}
	return c
}

// PolicyView is an immutable whitelist/blacklist pair.
type PolicyView struct {
	Whitelist *AddressSet
	Blacklist *AddressSet
}

// EmptyPolicyView places no restriction on any address.
var EmptyPolicyView = &PolicyView{Whitelist: NewAddressSet(), Blacklist: NewAddressSet()}

func (v *PolicyView) List(kind ListKind) *AddressSet {
	switch kind {
	case Whitelist:
		return v.Whitelist
	case Blacklist:
		return v.Blacklist
	default:
		return NewAddressSet()
	}
}

// With returns a copy of v whose kind list is replaced by set.
func (v *PolicyView) With(kind ListKind, set *AddressSet) *PolicyView {
	next := &PolicyView{Whitelist: v.Whitelist, Blacklist: v.Blacklist}
	switch kind {
	case Whitelist:
		next.Whitelist = set
	case Blacklist:
		next.Blacklist = set
	}
	return next
}
