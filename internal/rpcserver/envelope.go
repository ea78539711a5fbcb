// Package rpcserver wires the JSON-RPC 2.0 envelope, the per-request
// AccessLevel middleware, and method dispatch onto a single fiber route.
package rpcserver

import (
	"encoding/json"

	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcerr"
)

// Request is one JSON-RPC 2.0 request object. Params are always decoded
// positionally, matching every method in the access matrix.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is one JSON-RPC 2.0 response object. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcerr.Error   `json:"error,omitempty"`
}

func errorResponse(id json.RawMessage, err *rpcerr.Error) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: err}
}

func resultResponse(id json.RawMessage, result interface{}) Response {
	// A nil result would be dropped by omitempty; a raw null is kept.
	if result == nil {
		result = json.RawMessage("null")
	}
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// params decodes a positional params array into n raw elements. Missing
// trailing elements are padded with JSON null, since several methods accept
// an optional final argument (e.g. the block tag on eth_getBalance).
func params(raw json.RawMessage, n int) ([]json.RawMessage, *rpcerr.Error) {
	var arr []json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, rpcerr.InvalidParams("params must be a JSON array")
		}
	}
	if len(arr) > n {
		return nil, rpcerr.InvalidParams("too many params")
	}
	for len(arr) < n {
		arr = append(arr, json.RawMessage("null"))
	}
	return arr, nil
}

func decodeParam(raw json.RawMessage, target interface{}) *rpcerr.Error {
	if err := json.Unmarshal(raw, target); err != nil {
		return rpcerr.InvalidParams("malformed parameter: " + err.Error())
	}
	return nil
}
