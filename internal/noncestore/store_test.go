package noncestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FreshProducesUniqueNonces(t *testing.T) {
	s := New()

	n1, err := s.Fresh()
	require.NoError(t, err)
	n2, err := s.Fresh()
	require.NoError(t, err)

	assert.Len(t, n1, nonceLen)
	assert.NotEqual(t, n1, n2)
}

func TestStore_ConsumeIsOneShot(t *testing.T) {
	s := New()
	nonce, err := s.Fresh()
	require.NoError(t, err)

	assert.True(t, s.Consume(nonce))
	assert.False(t, s.Consume(nonce), "a nonce must not be consumable twice")
}

func TestStore_ConsumeUnknownNonce(t *testing.T) {
	s := New()
	assert.False(t, s.Consume("never-issued"))
}
