package siweauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scroll-tech/rpc-auth-proxy/internal/upstream"
)

// erc1271Magic is the fixed 4-byte selector ERC-1271's
// isValidSignature(bytes32,bytes) must return on success.
var erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

var erc1271ABI = mustParseABI(`[{
	"name": "isValidSignature",
	"type": "function",
	"stateMutability": "view",
	"inputs": [
		{"name": "hash", "type": "bytes32"},
		{"name": "signature", "type": "bytes"}
	],
	"outputs": [{"name": "magicValue", "type": "bytes4"}]
}]`)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Verify classifies address and applies the matching signature scheme.
// Returns (true, nil) on a valid signature, (false, nil) on a cleanly
// rejected one, and (false, err) when the check itself could not be
// completed (e.g. the classifier's getCode call failed).
func Verify(ctx context.Context, up upstream.Upstream, address common.Address, message string, signature []byte) (bool, error) {
	accountType, err := Classify(ctx, up, address)
	if err != nil {
		return false, err
	}

	switch accountType {
	case Eoa:
		return verifyEOA(address, message, signature), nil

	case Contract:
		ok, err := verifyERC1271(ctx, up, address, message, signature)
		if err != nil {
			// A call-layer error on a pure contract account is not "this
			// signature is invalid" — it's "we could not check" — so it
			// surfaces to the caller as an internal error.
			return false, fmt.Errorf("erc1271 call to %s: %w", address.Hex(), err)
		}
		return ok, nil

	case Eip7702:
		// Delegated code may or may not implement ERC-1271. Try it first;
		// a call-layer error here is treated the same as a clean `false` —
		// it means "not valid via this path", not "fatal" — so the EOA
		// fallback always still runs.
		if ok, err := verifyERC1271(ctx, up, address, message, signature); err == nil && ok {
			return true, nil
		}
		return verifyEOA(address, message, signature), nil

	default:
		return false, fmt.Errorf("siweauth: unknown account type %v", accountType)
	}
}

// verifyEOA recovers the signer of the EIP-191-prefixed message hash and
// compares it to address. Any malformed-signature condition is a clean
// rejection, not an error: callers surface it as invalid-params.
func verifyEOA(address common.Address, message string, signature []byte) bool {
	if len(signature) != 65 {
		return false
	}
	sig := make([]byte, 65)
	copy(sig, signature)

	// go-ethereum's recovery expects v in {0, 1}; Ethereum wallets produce
	// v in {27, 28}.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] != 0 && sig[64] != 1 {
		return false
	}

	hash := eip191Hash(message)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubKey) == address
}

// verifyERC1271 calls isValidSignature(bytes32,bytes) at address and
// reports whether it returned the ERC-1271 magic value.
func verifyERC1271(ctx context.Context, up upstream.Upstream, address common.Address, message string, signature []byte) (bool, error) {
	hash := eip191Hash(message)
	calldata, err := erc1271ABI.Pack("isValidSignature", hash, signature)
	if err != nil {
		return false, fmt.Errorf("packing isValidSignature calldata: %w", err)
	}
	out, err := up.EthCall(ctx, address, calldata)
	if err != nil {
		return false, err
	}
	if len(out) < 4 {
		return false, nil
	}
	var got [4]byte
	copy(got[:], out[:4])
	return got == erc1271Magic, nil
}

func eip191Hash(message string) common.Hash {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256Hash([]byte(prefixed))
}
