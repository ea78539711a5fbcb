package rpcproxy

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// mockUpstream fakes upstream.Upstream by JSON round-tripping whatever
// value Call is told to return into the caller's result pointer, the same
// way a real *rpc.Client would decode a response body.
type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	args := m.Called(ctx, method, params)
	if err := args.Error(0); err != nil {
		return err
	}
	if ret := args.Get(1); ret != nil {
		buf, err := json.Marshal(ret)
		if err != nil {
			return err
		}
		return json.Unmarshal(buf, result)
	}
	return nil
}

func (m *mockUpstream) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockUpstream) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, to, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
