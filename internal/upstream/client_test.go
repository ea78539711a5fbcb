package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonrpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newFakeNode(t *testing.T, handler func(method string) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Call_Success(t *testing.T) {
	srv := newFakeNode(t, func(method string) (interface{}, *RPCError) {
		assert.Equal(t, "eth_blockNumber", method)
		return "0x10", nil
	})

	c, err := NewClient(context.Background(), srv.URL, 100, 10)
	require.NoError(t, err)
	defer c.Close()

	var result string
	require.NoError(t, c.Call(context.Background(), &result, "eth_blockNumber"))
	assert.Equal(t, "0x10", result)
}

func TestClient_Call_UpstreamErrorPreservesCode(t *testing.T) {
	srv := newFakeNode(t, func(method string) (interface{}, *RPCError) {
		return nil, &RPCError{Code: 3, Message: "execution reverted"}
	})

	c, err := NewClient(context.Background(), srv.URL, 100, 10)
	require.NoError(t, err)
	defer c.Close()

	var result string
	err = c.Call(context.Background(), &result, "eth_call")
	require.Error(t, err)

	rpcErr, ok := err.(*RPCError)
	require.True(t, ok, "expected *RPCError, got %T", err)
	assert.Equal(t, 3, rpcErr.Code)
	assert.Equal(t, "execution reverted", rpcErr.Message)
}

func TestClient_GetCode(t *testing.T) {
	srv := newFakeNode(t, func(method string) (interface{}, *RPCError) {
		assert.Equal(t, "eth_getCode", method)
		return "0x6080604052", nil
	})

	c, err := NewClient(context.Background(), srv.URL, 100, 10)
	require.NoError(t, err)
	defer c.Close()

	code, err := c.GetCode(context.Background(), common.HexToAddress("0x1"))
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestClient_RateLimiterBlocksBurst(t *testing.T) {
	srv := newFakeNode(t, func(method string) (interface{}, *RPCError) {
		return "0x1", nil
	})

	c, err := NewClient(context.Background(), srv.URL, 1, 1)
	require.NoError(t, err)
	defer c.Close()

	var result string
	require.NoError(t, c.Call(context.Background(), &result, "eth_blockNumber"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.Call(ctx, &result, "eth_blockNumber")
	assert.Error(t, err, "second call within the burst window should block past the short deadline")
}
