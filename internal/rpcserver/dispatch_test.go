package rpcserver

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/scroll-tech/rpc-auth-proxy/internal/accesslevel"
	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/noncestore"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcproxy"
	"github.com/scroll-tech/rpc-auth-proxy/internal/siweauth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mock.Mock
}

func (m *fakeUpstream) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
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

func (m *fakeUpstream) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *fakeUpstream) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, to, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func testServer(t *testing.T, seq, withdraw *fakeUpstream, gasIsFree bool) (*Server, *jwtauth.Signer) {
	t.Helper()
	signer, err := jwtauth.New([]jwtauth.KeyEntry{{Kid: "k1", Secret: []byte("s")}}, "k1")
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	svc := siweauth.NewService(noncestore.New(), signer, seq, time.Hour, entry)
	proxy := rpcproxy.New(seq, withdraw, gasIsFree)
	return NewServer(proxy, svc, nil, entry), signer
}

func rawParams(t *testing.T, values ...interface{}) json.RawMessage {
	t.Helper()
	buf, err := json.Marshal(values)
	require.NoError(t, err)
	return buf
}

func TestHandle_UnknownMethod(t *testing.T) {
	s, _ := testServer(t, new(fakeUpstream), new(fakeUpstream), true)
	resp := s.Handle(context.Background(), accesslevel.None(), Request{ID: json.RawMessage(`1`), Method: "eth_bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestHandle_SiweGetNonce(t *testing.T) {
	s, _ := testServer(t, new(fakeUpstream), new(fakeUpstream), true)
	resp := s.Handle(context.Background(), accesslevel.None(), Request{ID: json.RawMessage(`1`), Method: "siwe_getNonce"})
	require.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.Result)
}

func TestHandle_BlockNumber_NoCredentialNeeded(t *testing.T) {
	seq := new(fakeUpstream)
	seq.On("Call", mock.Anything, "eth_blockNumber", mock.Anything).Return(nil, "0x42")
	s, _ := testServer(t, seq, new(fakeUpstream), true)

	resp := s.Handle(context.Background(), accesslevel.None(), Request{ID: json.RawMessage(`1`), Method: "eth_blockNumber"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x42", resp.Result)
}

func TestHandle_GetCode_DeniedWithoutFullAccess(t *testing.T) {
	seq := new(fakeUpstream)
	s, _ := testServer(t, seq, new(fakeUpstream), true)

	req := Request{
		ID:     json.RawMessage(`1`),
		Method: "eth_getCode",
		Params: rawParams(t, common.HexToAddress("0x1").Hex(), "latest"),
	}
	resp := s.Handle(context.Background(), accesslevel.Basic(common.HexToAddress("0x1")), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)
	seq.AssertNotCalled(t, "Call", mock.Anything, "eth_getCode", mock.Anything)
}

func TestHandle_GetCode_AllowedWithFullAccess(t *testing.T) {
	seq := new(fakeUpstream)
	seq.On("Call", mock.Anything, "eth_getCode", mock.Anything).Return(nil, "0x6080")
	s, _ := testServer(t, seq, new(fakeUpstream), true)

	req := Request{
		ID:     json.RawMessage(`1`),
		Method: "eth_getCode",
		Params: rawParams(t, common.HexToAddress("0x1").Hex(), "latest"),
	}
	resp := s.Handle(context.Background(), accesslevel.Full(), req)
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x6080", resp.Result)
}

func TestHandle_GetBalance_OwnAddressOnly(t *testing.T) {
	seq := new(fakeUpstream)
	seq.On("Call", mock.Anything, "eth_getBalance", mock.Anything).Return(nil, "0x64")
	s, _ := testServer(t, seq, new(fakeUpstream), true)

	addr := common.HexToAddress("0x1")
	req := Request{
		ID:     json.RawMessage(`1`),
		Method: "eth_getBalance",
		Params: rawParams(t, addr.Hex(), "latest"),
	}

	resp := s.Handle(context.Background(), accesslevel.Basic(addr), req)
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x64", resp.Result)

	other := common.HexToAddress("0x2")
	resp = s.Handle(context.Background(), accesslevel.Basic(other), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)
}

func TestHandle_GasPrice_FreeConfigurationSkipsUpstream(t *testing.T) {
	seq := new(fakeUpstream)
	s, _ := testServer(t, seq, new(fakeUpstream), true)

	resp := s.Handle(context.Background(), accesslevel.None(), Request{ID: json.RawMessage(`1`), Method: "eth_gasPrice"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x0", resp.Result)
	seq.AssertNotCalled(t, "Call", mock.Anything, "eth_gasPrice", mock.Anything)
}

func TestHandle_MalformedParams(t *testing.T) {
	s, _ := testServer(t, new(fakeUpstream), new(fakeUpstream), true)

	req := Request{
		ID:     json.RawMessage(`1`),
		Method: "eth_getBalance",
		Params: json.RawMessage(`{"not":"an array"}`),
	}
	resp := s.Handle(context.Background(), accesslevel.Full(), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}
