// Package noncestore holds one-time SIWE nonces: alphanumeric strings minted
// on siwe_getNonce and consumed exactly once by siwe_signIn.
package noncestore

import (
	"crypto/rand"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	alphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nonceLen   = 64
	ttl        = 5 * time.Minute
	maxEntries = 10000
)

// Store is a concurrent, TTL-bounded, capacity-bounded set of live nonces.
// golang-lru's expirable.LRU gives us TTL expiry and oldest-entry eviction
// on overflow in one data structure, with an atomic Remove we use for
// single-use consumption.
type Store struct {
	cache *lru.LRU[string, struct{}]
}

// New constructs an empty Store.
func New() *Store {
	return &Store{cache: lru.NewLRU[string, struct{}](maxEntries, nil, ttl)}
}

// Fresh mints a new nonce, inserts it with the store's fixed TTL, and
// returns it.
func (s *Store) Fresh() (string, error) {
	nonce, err := randomAlphanumeric(nonceLen)
	if err != nil {
		return "", fmt.Errorf("noncestore: generating nonce: %w", err)
	}
	s.cache.Add(nonce, struct{}{})
	return nonce, nil
}

// Consume atomically removes nonce and reports whether it was present and
// unexpired. A nonce is never returned true from Consume more than once,
// and an expired-but-never-consumed nonce behaves exactly like one that was
// never issued.
func (s *Store) Consume(nonce string) bool {
	// Remove does not look at expiry: an entry past its TTL stays in the
	// cache until the background sweep reaches it. Peek does check expiry.
	if _, ok := s.cache.Peek(nonce); !ok {
		return false
	}
	return s.cache.Remove(nonce)
}

func randomAlphanumeric(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
