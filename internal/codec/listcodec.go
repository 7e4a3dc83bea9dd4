// Package codec encodes contract address lists for the policy sub-protocol.
//
// Payload layout is an RLP list of two items: the list kind tag as a string
// ("whitelist" / "blacklist") followed by a list of 20-byte addresses.
package codec

import (
	"errors"
	"fmt"

	"contract_gate/internal/dataType"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var ErrMalformedMessage = errors.New("malformed contract address list message")

type listMessage struct {
	Kind      string
	Addresses []common.Address
}

// rawListMessage keeps addresses as raw byte strings so width errors are
// reported by us rather than by the rlp decoder.
type rawListMessage struct {
	Kind      string
	Addresses [][]byte
}

// Encode is deterministic for a given address order.
func Encode(kind dataType.ListKind, addrs []common.Address) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %v", dataType.ErrUnknownListKind, kind)
	}
	if addrs == nil {
		addrs = []common.Address{}
	}
	return rlp.EncodeToBytes(&listMessage{Kind: kind.String(), Addresses: addrs})
}

// Decode preserves address order. Every failure wraps ErrMalformedMessage.
func Decode(data []byte) (dataType.GossipMessage, error) {
	var raw rawListMessage
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return dataType.GossipMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	kind, err := dataType.ParseListKind(raw.Kind)
	if err != nil {
		return dataType.GossipMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	addrs := make([]common.Address, 0, len(raw.Addresses))
	for i, b := range raw.Addresses {
		if len(b) != common.AddressLength {
			return dataType.GossipMessage{}, fmt.Errorf("%w: address %d has %d bytes", ErrMalformedMessage, i, len(b))
		}
		addrs = append(addrs, common.BytesToAddress(b))
	}
	return dataType.GossipMessage{Kind: kind, Addresses: addrs}, nil
}
