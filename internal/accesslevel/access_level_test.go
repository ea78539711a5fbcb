package accesslevel

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAccessLevel_None(t *testing.T) {
	a := None()
	assert.True(t, a.IsNone())
	assert.False(t, a.IsFull())
	assert.Equal(t, KindNone, a.Kind())
	assert.False(t, a.IsAuthorized(common.HexToAddress("0x1")))
	assert.Equal(t, "none", a.String())
}

func TestAccessLevel_Basic(t *testing.T) {
	addr := common.HexToAddress("0x742d35Cc6573C42c8Ee90b4E43e04c1Fe9E2395d")
	a := Basic(addr)

	assert.Equal(t, KindBasic, a.Kind())
	got, ok := a.Address()
	assert.True(t, ok)
	assert.Equal(t, addr, got)

	assert.True(t, a.IsAuthorized(addr))
	assert.False(t, a.IsAuthorized(common.HexToAddress("0x1")))
	assert.Contains(t, a.String(), addr.Hex())
}

func TestAccessLevel_Full(t *testing.T) {
	a := Full()
	assert.True(t, a.IsFull())

	_, ok := a.Address()
	assert.False(t, ok)

	assert.True(t, a.IsAuthorized(common.HexToAddress("0x1")))
	assert.True(t, a.IsAuthorized(common.HexToAddress("0x2")))
	assert.Equal(t, "full", a.String())
}

func TestAccessLevel_ZeroValueIsNone(t *testing.T) {
	var a AccessLevel
	assert.True(t, a.IsNone())
}
