package siweauth

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/scroll-tech/rpc-auth-proxy/internal/upstream"
)

// AccountType is the three-way classification of an on-chain address that
// decides which signature scheme the verifier applies.
type AccountType int

const (
	Eoa AccountType = iota
	Contract
	Eip7702
)

func (t AccountType) String() string {
	switch t {
	case Eoa:
		return "eoa"
	case Eip7702:
		return "eip7702"
	default:
		return "contract"
	}
}

// eip7702Prefix is the three-byte marker (0xEF 0x01 0x00) that precedes a
// 23-byte EIP-7702 delegation designator.
var eip7702Prefix = []byte{0xEF, 0x01, 0x00}

// Classify fetches the code installed at address and classifies it.
func Classify(ctx context.Context, up upstream.Upstream, address common.Address) (AccountType, error) {
	code, err := up.GetCode(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("classifying %s: %w", address.Hex(), err)
	}
	return classifyCode(code), nil
}

func classifyCode(code []byte) AccountType {
	if len(code) == 0 {
		return Eoa
	}
	if len(code) == 23 && bytes.HasPrefix(code, eip7702Prefix) {
		return Eip7702
	}
	return Contract
}
