// Package upstream narrows everything the proxy needs from an Ethereum RPC
// endpoint to a single small interface, with two concrete instances wired
// in cmd/server: the sequencer (canonical chain RPC, also used for account
// classification and ERC-1271 calls during SIWE verification) and the
// withdraw-proofs endpoint (Scroll-specific withdrawal lookups).
package upstream

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Upstream is what the RPC proxy and the signature verifier need from a
// remote JSON-RPC endpoint. It is deliberately narrow so it can be faked in
// tests without standing up a real node.
type Upstream interface {
	// Call forwards method(params...) to the upstream and decodes the
	// result into result. A non-nil error wraps either a transport failure
	// or an upstream JSON-RPC error object; callers type-assert for *RPCError
	// to distinguish the latter.
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error

	// GetCode returns the code installed at address at the latest block,
	// used by the account classifier.
	GetCode(ctx context.Context, address common.Address) ([]byte, error)

	// EthCall performs a read-only call against address with the given
	// calldata, used for ERC-1271 isValidSignature checks.
	EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// RPCError is an upstream JSON-RPC error object, preserved verbatim so the
// proxy can forward it to its own caller unchanged.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}
