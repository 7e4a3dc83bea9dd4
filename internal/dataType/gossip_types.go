package dataType

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
)

var (
	ErrUnknownListKind  = errors.New("unknown list kind")
	ErrInvalidAddress   = errors.New("invalid contract address")
	ErrPeerNotConnected = errors.New("peer not connected")
)

// ContractAddressListCode is the sub-protocol message code carrying a GossipMessage.
const ContractAddressListCode uint8 = 0x01

// Peer is one connected remote node on the policy sub-protocol.
type Peer interface {
	ID() peer.ID
	Send(code uint8, payload []byte) error
}

type ListKind uint8

const (
	Whitelist ListKind = iota + 1
	Blacklist
)

// ListKinds enumerates every list kind, in wire handshake order.
var ListKinds = []ListKind{Whitelist, Blacklist}

func (k ListKind) String() string {
	switch k {
	case Whitelist:
		return "whitelist"
	case Blacklist:
		return "blacklist"
	default:
		return fmt.Sprintf("ListKind(%d)", uint8(k))
	}
}

func (k ListKind) Valid() bool {
	return k == Whitelist || k == Blacklist
}

// ParseListKind matches "whitelist" / "blacklist" case-insensitively.
func ParseListKind(s string) (ListKind, error) {
	switch {
	case strings.EqualFold(s, Whitelist.String()):
		return Whitelist, nil
	case strings.EqualFold(s, Blacklist.String()):
		return Blacklist, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownListKind, s)
	}
}

// GossipMessage is a full replacement of one list advertised by a peer.
type GossipMessage struct {
	Kind      ListKind
	Addresses []common.Address
}
