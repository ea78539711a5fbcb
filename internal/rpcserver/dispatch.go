package rpcserver

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/scroll-tech/rpc-auth-proxy/internal/accesslevel"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcerr"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcproxy"
	"github.com/scroll-tech/rpc-auth-proxy/internal/siweauth"
	"github.com/sirupsen/logrus"
)

// Server dispatches JSON-RPC requests to the SIWE service or the RPC proxy
// based on method name, after the AccessLevel middleware has already run.
type Server struct {
	proxy   *rpcproxy.Proxy
	siwe    *siweauth.Service
	chainID *big.Int
	log     *logrus.Entry
	methods map[string]methodHandler
}

type methodHandler func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error)

// NewServer builds a Server and its method dispatch table.
func NewServer(proxy *rpcproxy.Proxy, siwe *siweauth.Service, chainID *big.Int, log *logrus.Entry) *Server {
	s := &Server{proxy: proxy, siwe: siwe, chainID: chainID, log: log}
	s.methods = map[string]methodHandler{
		"siwe_getNonce": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			nonce, err := s.siwe.GetNonce(ctx)
			if err != nil {
				return nil, err
			}
			return nonce, nil
		},
		"siwe_signIn": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var message string
			var signature hexutil.Bytes
			if err := decodeParam(p[0], &message); err != nil {
				return nil, err
			}
			if err := decodeParam(p[1], &signature); err != nil {
				return nil, err
			}
			token, err := s.siwe.SignIn(ctx, message, signature)
			if err != nil {
				return nil, err
			}
			return token, nil
		},
		"eth_blockNumber": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			return s.proxy.BlockNumber(ctx, access)
		},
		"eth_chainId": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			return s.proxy.ChainID(ctx, access)
		},
		"eth_gasPrice": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			return s.proxy.GasPrice(ctx, access)
		},
		"eth_maxPriorityFeePerGas": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			return s.proxy.MaxPriorityFeePerGas(ctx, access)
		},
		"eth_feeHistory": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var blockCount, newestBlock string
			var rewardPercentiles []float64
			if err := decodeParam(p[0], &blockCount); err != nil {
				return nil, err
			}
			if err := decodeParam(p[1], &newestBlock); err != nil {
				return nil, err
			}
			if len(p) > 2 && string(p[2]) != "null" {
				if err := decodeParam(p[2], &rewardPercentiles); err != nil {
					return nil, err
				}
			}
			return s.proxy.FeeHistory(ctx, access, blockCount, newestBlock, rewardPercentiles)
		},
		"eth_getBlockByHash": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var hash common.Hash
			var fullTx bool
			if err := decodeParam(p[0], &hash); err != nil {
				return nil, err
			}
			if err := decodeParam(p[1], &fullTx); err != nil {
				return nil, err
			}
			return s.proxy.GetBlockByHash(ctx, access, hash, fullTx)
		},
		"eth_getBlockByNumber": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var block string
			var fullTx bool
			if err := decodeParam(p[0], &block); err != nil {
				return nil, err
			}
			if err := decodeParam(p[1], &fullTx); err != nil {
				return nil, err
			}
			return s.proxy.GetBlockByNumber(ctx, access, block, fullTx)
		},
		"eth_getStorageAt": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var address common.Address
			var slot common.Hash
			block := "latest"
			if err := decodeParam(p[0], &address); err != nil {
				return nil, err
			}
			if err := decodeParam(p[1], &slot); err != nil {
				return nil, err
			}
			if len(p) > 2 && string(p[2]) != "null" {
				if err := decodeParam(p[2], &block); err != nil {
					return nil, err
				}
			}
			return s.proxy.GetStorageAt(ctx, access, address, slot, block)
		},
		"eth_getCode": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			address, block, err := decodeAddressAndBlock(p)
			if err != nil {
				return nil, err
			}
			return s.proxy.GetCode(ctx, access, address, block)
		},
		"eth_call": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var callArgs map[string]interface{}
			block := "latest"
			if err := decodeParam(p[0], &callArgs); err != nil {
				return nil, err
			}
			if len(p) > 1 && string(p[1]) != "null" {
				if err := decodeParam(p[1], &block); err != nil {
					return nil, err
				}
			}
			return s.proxy.Call(ctx, access, callArgs, block)
		},
		"eth_estimateGas": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var callArgs map[string]interface{}
			if err := decodeParam(p[0], &callArgs); err != nil {
				return nil, err
			}
			return s.proxy.EstimateGas(ctx, access, callArgs)
		},
		"eth_getLogs": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var filter map[string]interface{}
			if err := decodeParam(p[0], &filter); err != nil {
				return nil, err
			}
			return s.proxy.GetLogs(ctx, access, filter)
		},
		"scroll_getL1MessagesInBlock": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var block string
			if err := decodeParam(p[0], &block); err != nil {
				return nil, err
			}
			return s.proxy.GetL1MessagesInBlock(ctx, access, block)
		},
		"eth_getBalance": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			address, block, err := decodeAddressAndBlock(p)
			if err != nil {
				return nil, err
			}
			return s.proxy.GetBalance(ctx, access, address, block)
		},
		"eth_getTransactionCount": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			address, block, err := decodeAddressAndBlock(p)
			if err != nil {
				return nil, err
			}
			return s.proxy.GetTransactionCount(ctx, access, address, block)
		},
		"eth_getTransactionByHash": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var hash common.Hash
			if err := decodeParam(p[0], &hash); err != nil {
				return nil, err
			}
			return s.proxy.GetTransactionByHash(ctx, access, hash, s.chainID)
		},
		"eth_getTransactionReceipt": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var hash common.Hash
			if err := decodeParam(p[0], &hash); err != nil {
				return nil, err
			}
			return s.proxy.GetTransactionReceipt(ctx, access, hash)
		},
		"eth_sendRawTransaction": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var raw hexutil.Bytes
			if err := decodeParam(p[0], &raw); err != nil {
				return nil, err
			}
			return s.proxy.SendRawTransaction(ctx, access, raw, s.chainID)
		},
		"scroll_withdrawalsByTransaction": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var hash common.Hash
			if err := decodeParam(p[0], &hash); err != nil {
				return nil, err
			}
			return s.proxy.WithdrawalsByTransaction(ctx, access, hash, s.chainID)
		},
		"scroll_withdrawalByMessageHash": func(ctx context.Context, s *Server, access accesslevel.AccessLevel, p []json.RawMessage) (interface{}, *rpcerr.Error) {
			var hash common.Hash
			if err := decodeParam(p[0], &hash); err != nil {
				return nil, err
			}
			return s.proxy.WithdrawalByMessageHash(ctx, access, hash, s.chainID)
		},
	}
	return s
}

func decodeAddressAndBlock(p []json.RawMessage) (common.Address, string, *rpcerr.Error) {
	var address common.Address
	block := "latest"
	if err := decodeParam(p[0], &address); err != nil {
		return address, block, err
	}
	if len(p) > 1 && string(p[1]) != "null" {
		if err := decodeParam(p[1], &block); err != nil {
			return address, block, err
		}
	}
	return address, block, nil
}

// Handle decodes one Request, dispatches it, and returns the Response.
func (s *Server) Handle(ctx context.Context, access accesslevel.AccessLevel, req Request) Response {
	handler, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, rpcerr.InvalidParams("unknown method: "+req.Method))
	}

	p, perr := params(req.Params, maxArity)
	if perr != nil {
		return errorResponse(req.ID, perr)
	}

	result, err := handler(ctx, s, access, p)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, result)
}

// maxArity is large enough to cover every method's positional params; each
// handler only reads the indices it needs, so padding beyond a method's
// own arity is harmless.
const maxArity = 3

// FiberHandler adapts Handle onto a fiber route.
func (s *Server) FiberHandler(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(nil, rpcerr.InvalidParams("malformed JSON-RPC request")))
	}
	access := accessFromCtx(c)
	start := time.Now()
	resp := s.Handle(c.Context(), access, req)
	s.log.WithFields(logrus.Fields{
		"rpc_method": req.Method,
		"access":     access.String(),
		"latency_ms": time.Since(start).Milliseconds(),
		"request_id": c.Locals("requestid"),
	}).Info("rpc dispatch")
	return c.JSON(resp)
}
