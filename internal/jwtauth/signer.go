// Package jwtauth issues and verifies the bearer tokens minted by the SIWE
// sign-in flow. It supports multiple active verification keys identified by
// kid, with exactly one key eligible to sign new tokens.
package jwtauth

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

const leeway = 60 * time.Second

// KeyEntry is one (kid, secret) pair as loaded from configuration.
type KeyEntry struct {
	Kid    string
	Secret []byte
}

// Claims is the decoded, validated payload of a token.
type Claims struct {
	Address common.Address
	Exp     time.Time
}

type tokenClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// Signer issues tokens under a single default kid and verifies tokens
// against any kid present in its key set.
type Signer struct {
	keys       map[string][]byte
	defaultKid string
}

// New builds a Signer from a key list and a chosen default kid. Construction
// fails if the default kid is not present among keys.
func New(keys []KeyEntry, defaultKid string) (*Signer, error) {
	if defaultKid == "" {
		return nil, fmt.Errorf("jwtauth: default kid must not be empty")
	}
	m := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if k.Kid == "" {
			return nil, fmt.Errorf("jwtauth: key entries must have a non-empty kid")
		}
		m[k.Kid] = k.Secret
	}
	if _, ok := m[defaultKid]; !ok {
		return nil, fmt.Errorf("jwtauth: default kid %q not present in key set", defaultKid)
	}
	return &Signer{keys: m, defaultKid: defaultKid}, nil
}

// Issue signs a new token binding address to exp, under the default kid.
func (s *Signer) Issue(address common.Address, exp time.Time) (string, error) {
	claims := tokenClaims{
		Address: address.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.defaultKid

	secret, ok := s.keys[s.defaultKid]
	if !ok {
		// New guarantees the default kid is present and a Signer's key set
		// is never mutated, so this is reached only by a Signer value that
		// was not built through New.
		return "", fmt.Errorf("JWT signing key kid %s not found", s.defaultKid)
	}
	return token.SignedString(secret)
}

// Verify decodes and validates token, returning its claims on success. A
// failure to select the verification key (non-HMAC algorithm, missing kid,
// unknown kid) is returned with its own reason, e.g. "JWT signing key kid k1
// not found"; every other failure (bad signature, expired, malformed) is
// returned as an "invalid token" error. Logging the detail is the caller's
// responsibility.
func (s *Signer) Verify(token string) (Claims, error) {
	var claims tokenClaims
	var keyErr error
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			keyErr = fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			return nil, keyErr
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			keyErr = fmt.Errorf("token header missing kid")
			return nil, keyErr
		}
		secret, ok := s.keys[kid]
		if !ok {
			keyErr = fmt.Errorf("JWT signing key kid %s not found", kid)
			return nil, keyErr
		}
		return secret, nil
	}, jwt.WithLeeway(leeway))
	if err != nil || !parsed.Valid {
		// Key-selection failures, including the unknown-kid case after a
		// rotation drops a key, surface their exact reason; every other
		// failure mode is reported as an invalid token.
		if keyErr != nil {
			return Claims{}, keyErr
		}
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	if !common.IsHexAddress(claims.Address) {
		return Claims{}, fmt.Errorf("invalid token: malformed address claim")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("invalid token: missing exp claim")
	}
	return Claims{
		Address: common.HexToAddress(claims.Address),
		Exp:     exp.Time,
	}, nil
}

// WithRotatedDefault returns a new Signer that signs under newDefaultKid
// while continuing to verify every key currently held, plus any additions.
// Rotation never mutates an existing Signer in place; callers swap the
// pointer their request path reads from.
func (s *Signer) WithRotatedDefault(newDefaultKid string, additional ...KeyEntry) (*Signer, error) {
	entries := make([]KeyEntry, 0, len(s.keys)+len(additional))
	for kid, secret := range s.keys {
		entries = append(entries, KeyEntry{Kid: kid, Secret: secret})
	}
	entries = append(entries, additional...)
	return New(entries, newDefaultKid)
}

// WithoutKid returns a new Signer with kid removed from the verification
// set. Tokens signed under the removed kid stop verifying immediately.
func (s *Signer) WithoutKid(kid string) (*Signer, error) {
	entries := make([]KeyEntry, 0, len(s.keys))
	for k, secret := range s.keys {
		if k == kid {
			continue
		}
		entries = append(entries, KeyEntry{Kid: k, Secret: secret})
	}
	return New(entries, s.defaultKid)
}
