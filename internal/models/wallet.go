package models

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// WalletKind distinguishes wallets managed on the user's behalf from
// wallets they connect themselves.
type WalletKind string

const (
	WalletEmbedded WalletKind = "embedded"
	WalletExternal WalletKind = "external"
)

// WalletBinding links a wallet to a profile. Only embedded wallets may sign
// sponsored writes.
type WalletBinding struct {
	ProfileID     uuid.UUID  `json:"profile_id"`
	WalletAddress string     `json:"wallet_address"`
	Kind          WalletKind `json:"kind"`
}

// EmbeddedWallet returns the profile's single embedded binding. A profile
// with zero or several embedded bindings has no usable sponsor wallet.
func EmbeddedWallet(bindings []WalletBinding) (WalletBinding, bool) {
	var found WalletBinding
	n := 0
	for _, b := range bindings {
		if b.Kind == WalletEmbedded {
			found = b
			n++
		}
	}
	return found, n == 1
}

// ParseAddress validates a hex address and returns it in checksummed form.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// IsAddress reports whether s is a well-formed hex address.
func IsAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// NormalizeAddress lowercases an address for use in keys and comparisons.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
