// Package accesslevel models the caller identity a request carries once the
// authentication middleware has run.
package accesslevel

import "github.com/ethereum/go-ethereum/common"

// Kind distinguishes the three cases an AccessLevel can hold.
type Kind int

const (
	// KindNone means no valid credential was presented.
	KindNone Kind = iota
	// KindBasic means the caller proved control of a single address via SIWE.
	KindBasic
	// KindFull means the caller presented a statically configured admin key.
	KindFull
)

// AccessLevel is the sum type `None | Basic(address) | Full`. The zero value
// is None.
type AccessLevel struct {
	kind    Kind
	address common.Address
}

// None is the unauthenticated access level.
func None() AccessLevel {
	return AccessLevel{kind: KindNone}
}

// Basic scopes the caller to a single proven address.
func Basic(address common.Address) AccessLevel {
	return AccessLevel{kind: KindBasic, address: address}
}

// Full is the admin-key access level.
func Full() AccessLevel {
	return AccessLevel{kind: KindFull}
}

// Kind reports which case this AccessLevel holds.
func (a AccessLevel) Kind() Kind {
	return a.kind
}

// Address returns the bound address for Basic, and ok=false otherwise.
func (a AccessLevel) Address() (common.Address, bool) {
	if a.kind != KindBasic {
		return common.Address{}, false
	}
	return a.address, true
}

// IsFull reports whether this is the admin access level.
func (a AccessLevel) IsFull() bool {
	return a.kind == KindFull
}

// IsNone reports whether no credential was established.
func (a AccessLevel) IsNone() bool {
	return a.kind == KindNone
}

// IsAuthorized implements the access rule shared by every per-method
// pre-check and post-check in the proxy: Full always passes, Basic passes
// only for its own address, None never passes.
func (a AccessLevel) IsAuthorized(user common.Address) bool {
	switch a.kind {
	case KindFull:
		return true
	case KindBasic:
		return a.address == user
	default:
		return false
	}
}

// String is used only for logging; it never includes the full secret behind
// an admin key because AccessLevel never holds one.
func (a AccessLevel) String() string {
	switch a.kind {
	case KindFull:
		return "full"
	case KindBasic:
		return "basic(" + a.address.Hex() + ")"
	default:
		return "none"
	}
}
