// Package rpcproxy implements the ethereum/scroll RPC surface: the
// per-method access matrix from the proxy's design, forwarding to the
// sequencer or withdraw-proofs upstream and filtering responses the caller
// is not entitled to see.
package rpcproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/scroll-tech/rpc-auth-proxy/internal/accesslevel"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcerr"
	"github.com/scroll-tech/rpc-auth-proxy/internal/upstream"
)

// Proxy holds the two upstream endpoints and the gas-pricing policy toggle.
type Proxy struct {
	sequencer      upstream.Upstream
	withdrawProofs upstream.Upstream
	gasIsFree      bool
}

// New builds a Proxy. gasIsFree selects whether eth_gasPrice and
// eth_maxPriorityFeePerGas short-circuit to 0 (the reference deployment's
// assumption) or forward to the sequencer like any other read.
func New(sequencer, withdrawProofs upstream.Upstream, gasIsFree bool) *Proxy {
	return &Proxy{sequencer: sequencer, withdrawProofs: withdrawProofs, gasIsFree: gasIsFree}
}

func upstreamErr(err error) *rpcerr.Error {
	var rpcErr *upstream.RPCError
	if castErr, ok := err.(*upstream.RPCError); ok {
		rpcErr = castErr
		return rpcerr.Upstream(rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	return rpcerr.Internal(err.Error())
}

// BlockNumber: eth_blockNumber. No pre-check, forwarded to the sequencer.
func (p *Proxy) BlockNumber(ctx context.Context, access accesslevel.AccessLevel) (string, *rpcerr.Error) {
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_blockNumber"); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// ChainID: eth_chainId. No pre-check, forwarded to the sequencer.
func (p *Proxy) ChainID(ctx context.Context, access accesslevel.AccessLevel) (string, *rpcerr.Error) {
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_chainId"); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// FeeHistory: eth_feeHistory. No pre-check, forwarded to the sequencer.
func (p *Proxy) FeeHistory(ctx context.Context, access accesslevel.AccessLevel, blockCount string, newestBlock string, rewardPercentiles []float64) (interface{}, *rpcerr.Error) {
	var result interface{}
	if err := p.sequencer.Call(ctx, &result, "eth_feeHistory", blockCount, newestBlock, rewardPercentiles); err != nil {
		return nil, upstreamErr(err)
	}
	return result, nil
}

// GasPrice: eth_gasPrice. When gasIsFree is set (the default), returns 0
// without calling upstream — "gas is free on this chain" is a deployment
// policy, not a hardcoded constant.
func (p *Proxy) GasPrice(ctx context.Context, access accesslevel.AccessLevel) (string, *rpcerr.Error) {
	if p.gasIsFree {
		return "0x0", nil
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_gasPrice"); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// MaxPriorityFeePerGas: eth_maxPriorityFeePerGas. Same gasIsFree policy as GasPrice.
func (p *Proxy) MaxPriorityFeePerGas(ctx context.Context, access accesslevel.AccessLevel) (string, *rpcerr.Error) {
	if p.gasIsFree {
		return "0x0", nil
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_maxPriorityFeePerGas"); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// fullOnly gates the methods that require admin access regardless of the
// caller's own address: getBlockBy*, getStorageAt, getCode, call,
// estimateGas, getLogs, scroll_getL1MessagesInBlock.
func fullOnly(access accesslevel.AccessLevel) *rpcerr.Error {
	if !access.IsFull() {
		return rpcerr.Unauthorized()
	}
	return nil
}

func (p *Proxy) GetBlockByHash(ctx context.Context, access accesslevel.AccessLevel, hash common.Hash, fullTx bool) (interface{}, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return nil, err
	}
	var result interface{}
	if err := p.sequencer.Call(ctx, &result, "eth_getBlockByHash", hash, fullTx); err != nil {
		return nil, upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) GetBlockByNumber(ctx context.Context, access accesslevel.AccessLevel, block string, fullTx bool) (interface{}, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return nil, err
	}
	var result interface{}
	if err := p.sequencer.Call(ctx, &result, "eth_getBlockByNumber", block, fullTx); err != nil {
		return nil, upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) GetStorageAt(ctx context.Context, access accesslevel.AccessLevel, address common.Address, slot common.Hash, block string) (string, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return "", err
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_getStorageAt", address, slot, block); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) GetCode(ctx context.Context, access accesslevel.AccessLevel, address common.Address, block string) (string, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return "", err
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_getCode", address, block); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) Call(ctx context.Context, access accesslevel.AccessLevel, callArgs interface{}, block string) (string, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return "", err
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_call", callArgs, block); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) EstimateGas(ctx context.Context, access accesslevel.AccessLevel, callArgs interface{}) (string, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return "", err
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_estimateGas", callArgs); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) GetLogs(ctx context.Context, access accesslevel.AccessLevel, filter interface{}) (interface{}, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return nil, err
	}
	var result interface{}
	if err := p.sequencer.Call(ctx, &result, "eth_getLogs", filter); err != nil {
		return nil, upstreamErr(err)
	}
	return result, nil
}

func (p *Proxy) GetL1MessagesInBlock(ctx context.Context, access accesslevel.AccessLevel, block string) (interface{}, *rpcerr.Error) {
	if err := fullOnly(access); err != nil {
		return nil, err
	}
	var result interface{}
	if err := p.sequencer.Call(ctx, &result, "scroll_getL1MessagesInBlock", block); err != nil {
		return nil, upstreamErr(err)
	}
	return result, nil
}

// GetBalance: eth_getBalance. Pre-check requires the caller be authorized
// for the queried address.
func (p *Proxy) GetBalance(ctx context.Context, access accesslevel.AccessLevel, address common.Address, block string) (string, *rpcerr.Error) {
	if !access.IsAuthorized(address) {
		return "", rpcerr.Unauthorized()
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_getBalance", address, block); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// GetTransactionCount: eth_getTransactionCount. Same pre-check as GetBalance.
func (p *Proxy) GetTransactionCount(ctx context.Context, access accesslevel.AccessLevel, address common.Address, block string) (string, *rpcerr.Error) {
	if !access.IsAuthorized(address) {
		return "", rpcerr.Unauthorized()
	}
	var result string
	if err := p.sequencer.Call(ctx, &result, "eth_getTransactionCount", address, block); err != nil {
		return "", upstreamErr(err)
	}
	return result, nil
}

// rpcTransaction is the subset of eth_getTransactionByHash's result this
// proxy needs to decide visibility: to, and the raw envelope to recover the
// signer from. We decode into go-ethereum's types.Transaction for the
// signer recovery and separately keep the raw JSON for pass-through.
type rpcTransaction struct {
	To *common.Address `json:"to"`
}

// GetTransactionByHash: eth_getTransactionByHash. Requires any credential;
// once the upstream answers, gates the response on Full, or on the caller
// being either the transaction's recipient or its cryptographically
// recovered signer. A null upstream result is returned as null without a
// visibility check — there's nothing to hide.
func (p *Proxy) GetTransactionByHash(ctx context.Context, access accesslevel.AccessLevel, hash common.Hash, chainID *big.Int) (interface{}, *rpcerr.Error) {
	if access.IsNone() {
		return nil, rpcerr.Unauthorized()
	}

	var raw interface{}
	if err := p.sequencer.Call(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, upstreamErr(err)
	}
	if raw == nil {
		return nil, nil
	}
	if access.IsFull() {
		return raw, nil
	}

	tx, to, err := decodeRawTxResult(raw, chainID)
	if err != nil {
		return nil, rpcerr.Internal(fmt.Sprintf("decoding upstream transaction: %s", err))
	}

	if to != nil && access.IsAuthorized(*to) {
		return raw, nil
	}
	if tx != nil {
		if signer, err := recoverSigner(tx, chainID); err == nil && access.IsAuthorized(signer) {
			return raw, nil
		}
	}
	return nil, rpcerr.Unauthorized()
}

// rpcReceipt is the subset of eth_getTransactionReceipt's result needed for
// the post-check: from/to are node-reported (receipts carry no signature),
// so unlike GetTransactionByHash no cryptographic recovery is needed here.
type rpcReceipt struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
}

// GetTransactionReceipt: eth_getTransactionReceipt. Requires any
// credential; gates the response on Full, or on the caller being the
// receipt's reported sender or recipient.
func (p *Proxy) GetTransactionReceipt(ctx context.Context, access accesslevel.AccessLevel, hash common.Hash) (interface{}, *rpcerr.Error) {
	if access.IsNone() {
		return nil, rpcerr.Unauthorized()
	}

	var raw interface{}
	if err := p.sequencer.Call(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, upstreamErr(err)
	}
	if raw == nil {
		return nil, nil
	}
	if access.IsFull() {
		return raw, nil
	}

	receipt, err := decodeReceiptResult(raw)
	if err != nil {
		return nil, rpcerr.Internal(fmt.Sprintf("decoding upstream receipt: %s", err))
	}

	if access.IsAuthorized(receipt.From) {
		return raw, nil
	}
	if receipt.To != nil && access.IsAuthorized(*receipt.To) {
		return raw, nil
	}
	return nil, rpcerr.Unauthorized()
}

// SendRawTransaction: eth_sendRawTransaction. Requires any credential. A
// Basic caller's raw bytes must decode to a transaction signed by their own
// address, with a non-null `to` (contract creation is rejected). Full
// access skips the decode entirely. Decode or recovery failure is a client
// error, never a panic — this is exactly the denial vector the design
// notes flag in the reference implementation's unchecked unwraps.
func (p *Proxy) SendRawTransaction(ctx context.Context, access accesslevel.AccessLevel, raw []byte, chainID *big.Int) (common.Hash, *rpcerr.Error) {
	if access.IsNone() {
		return common.Hash{}, rpcerr.Unauthorized()
	}

	if addr, ok := access.Address(); ok {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return common.Hash{}, rpcerr.InvalidParams(fmt.Sprintf("malformed raw transaction: %s", err))
		}
		signer, err := recoverSigner(tx, chainID)
		if err != nil {
			return common.Hash{}, rpcerr.InvalidParams(fmt.Sprintf("cannot recover transaction signer: %s", err))
		}
		if signer != addr || tx.To() == nil {
			return common.Hash{}, rpcerr.Unauthorized()
		}
	}

	var txHash common.Hash
	if err := p.sequencer.Call(ctx, &txHash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, upstreamErr(err)
	}
	return txHash, nil
}

// withdrawal is the minimal shape this proxy needs out of a Scroll
// withdraw-proofs response: enough to find the originating transaction
// hash for the signer-gated visibility check. The full raw response is
// still what gets returned to an authorized caller.
type withdrawal struct {
	TxHash common.Hash `json:"tx_hash"`
}

// authorizeByTxSigner looks up txHash on the sequencer and checks whether
// access is authorized for its cryptographically recovered signer. A
// missing transaction is an internal error (the withdraw-proofs endpoint
// referenced a transaction the sequencer doesn't know about), not a denial.
func (p *Proxy) authorizeByTxSigner(ctx context.Context, access accesslevel.AccessLevel, txHash common.Hash, chainID *big.Int) *rpcerr.Error {
	var raw interface{}
	if err := p.sequencer.Call(ctx, &raw, "eth_getTransactionByHash", txHash); err != nil {
		return upstreamErr(err)
	}
	if raw == nil {
		return rpcerr.Internal("transaction not found")
	}
	tx, _, err := decodeRawTxResult(raw, chainID)
	if err != nil || tx == nil {
		return rpcerr.Internal("transaction not found")
	}
	signer, err := recoverSigner(tx, chainID)
	if err != nil || !access.IsAuthorized(signer) {
		return rpcerr.Unauthorized()
	}
	return nil
}

// WithdrawalsByTransaction: scroll_withdrawalsByTransaction. Requires any
// credential. An empty list, or Full access, passes through untouched;
// otherwise the caller must be the recovered signer of txHash itself.
func (p *Proxy) WithdrawalsByTransaction(ctx context.Context, access accesslevel.AccessLevel, txHash common.Hash, chainID *big.Int) (interface{}, *rpcerr.Error) {
	if access.IsNone() {
		return nil, rpcerr.Unauthorized()
	}

	var raw interface{}
	if err := p.withdrawProofs.Call(ctx, &raw, "scroll_withdrawalsByTransaction", txHash); err != nil {
		return nil, upstreamErr(err)
	}
	if access.IsFull() || isEmptyList(raw) {
		return raw, nil
	}
	if err := p.authorizeByTxSigner(ctx, access, txHash, chainID); err != nil {
		return nil, err
	}
	return raw, nil
}

// WithdrawalByMessageHash: scroll_withdrawalByMessageHash. Requires any
// credential. A null result, or Full access, passes through untouched;
// otherwise the caller must be the recovered signer of the withdrawal's own
// originating transaction.
func (p *Proxy) WithdrawalByMessageHash(ctx context.Context, access accesslevel.AccessLevel, messageHash common.Hash, chainID *big.Int) (interface{}, *rpcerr.Error) {
	if access.IsNone() {
		return nil, rpcerr.Unauthorized()
	}

	var raw interface{}
	if err := p.withdrawProofs.Call(ctx, &raw, "scroll_withdrawalByMessageHash", messageHash); err != nil {
		return nil, upstreamErr(err)
	}
	if raw == nil || access.IsFull() {
		return raw, nil
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, rpcerr.Internal("decoding upstream withdrawal")
	}
	var w withdrawal
	if err := json.Unmarshal(buf, &w); err != nil {
		return nil, rpcerr.Internal("decoding upstream withdrawal")
	}
	if err := p.authorizeByTxSigner(ctx, access, w.TxHash, chainID); err != nil {
		return nil, err
	}
	return raw, nil
}

func isEmptyList(v interface{}) bool {
	list, ok := v.([]interface{})
	return ok && len(list) == 0
}
