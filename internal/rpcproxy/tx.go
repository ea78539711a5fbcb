package rpcproxy

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// decodeRawTxResult re-decodes the upstream's eth_getTransactionByHash
// result (already unmarshaled into a generic interface{} by the JSON-RPC
// client) into a types.Transaction, so the signer can be recovered
// cryptographically rather than trusted from a `from` field. The `to`
// field is read straight off the wire shape since it needs no recovery.
func decodeRawTxResult(raw interface{}, chainID *big.Int) (*types.Transaction, *common.Address, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("re-marshaling upstream transaction: %w", err)
	}

	var shape rpcTransaction
	if err := json.Unmarshal(buf, &shape); err != nil {
		return nil, nil, fmt.Errorf("reading transaction `to` field: %w", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalJSON(buf); err != nil {
		// Some upstreams omit fields types.Transaction's strict unmarshaler
		// requires. The `to` field we already read is still usable for the
		// recipient half of the post-check even if signer recovery isn't.
		return nil, shape.To, nil
	}
	return tx, shape.To, nil
}

// decodeReceiptResult re-decodes the upstream's eth_getTransactionReceipt
// result into the from/to fields needed for its post-check. Receipts carry
// no signature, so from is trusted as node-reported rather than recovered.
func decodeReceiptResult(raw interface{}) (*rpcReceipt, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-marshaling upstream receipt: %w", err)
	}
	var receipt rpcReceipt
	if err := json.Unmarshal(buf, &receipt); err != nil {
		return nil, fmt.Errorf("reading receipt from/to fields: %w", err)
	}
	return &receipt, nil
}

// recoverSigner cryptographically recovers the sender of tx using the
// signer scheme for chainID, rather than trusting any client- or
// upstream-reported `from`.
func recoverSigner(tx *types.Transaction, chainID *big.Int) (common.Address, error) {
	id := chainID
	if id == nil {
		id = tx.ChainId()
	}
	signer := types.LatestSignerForChainID(id)
	return types.Sender(signer, tx)
}
