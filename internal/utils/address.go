package utils

import (
	"fmt"
	"strings"

	"contract_gate/internal/dataType"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress accepts a 0x-prefixed or bare 40 hex digit address.
func ParseAddress(s string) (common.Address, error) {
	trimmed := strings.TrimSpace(s)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %q", dataType.ErrInvalidAddress, s)
	}
	return common.HexToAddress(trimmed), nil
}
