// Package adminkeys holds the set of admin API keys that grant Full access.
// Reads never take a lock: the live set is swapped wholesale behind an
// atomic.Pointer, the same pattern the JWT signer uses for key rotation.
package adminkeys

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// Set is a concurrent-safe, swappable set of admin keys.
type Set struct {
	live atomic.Pointer[map[string]struct{}]
}

// New builds a Set from an initial key list.
func New(keys []string) *Set {
	s := &Set{}
	s.store(keys)
	return s
}

// Contains reports whether key is a configured admin key.
func (s *Set) Contains(key string) bool {
	if key == "" {
		return false
	}
	m := s.live.Load()
	if m == nil {
		return false
	}
	_, ok := (*m)[key]
	return ok
}

// Replace swaps in a brand new key list, atomically and without blocking
// concurrent readers.
func (s *Set) Replace(keys []string) {
	s.store(keys)
}

func (s *Set) store(keys []string) {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		m[k] = struct{}{}
	}
	s.live.Store(&m)
}

// LoadFile reads one admin key per non-empty, non-comment line. It is used
// by the optional hot-reload ticker to refresh a Set from an
// operator-managed file without restarting the process.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("adminkeys: opening %s: %w", path, err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("adminkeys: reading %s: %w", path, err)
	}
	return keys, nil
}
