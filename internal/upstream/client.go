package upstream

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// rpcError is the interface go-ethereum's rpc package error values satisfy
// when they represent an upstream JSON-RPC error object rather than a
// transport failure.
type rpcError interface {
	Error() string
	ErrorCode() int
}

type rpcDataError interface {
	ErrorData() interface{}
}

// Client is a rate-limited Upstream backed by a single go-ethereum rpc.Client.
// The rate limiter mirrors the token-bucket pattern the teacher's
// BaseHTTPClient applies to outbound REST calls, moved down to the
// JSON-RPC transport layer this proxy actually speaks.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
}

// NewClient dials url and wraps it with a limiter allowing ratePerSec
// requests per second, bursting up to burst.
func NewClient(ctx context.Context, url string, ratePerSec float64, burst int) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("upstream: dialing %s: %w", url, err)
	}
	return &Client{
		rpc:     rc,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("upstream: rate limiter: %w", err)
	}
	err := c.rpc.CallContext(ctx, result, method, params...)
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(rpcError); ok {
		out := &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		if de, ok := err.(rpcDataError); ok {
			out.Data = de.ErrorData()
		}
		return out
	}
	return fmt.Errorf("upstream: calling %s: %w", method, err)
}

func (c *Client) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	var result hexutil.Bytes
	if err := c.Call(ctx, &result, "eth_getCode", address, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	callMsg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var result hexutil.Bytes
	if err := c.Call(ctx, &result, "eth_call", callMsg, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}
