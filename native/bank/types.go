package bank

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Asset identifies a base currency tracked by the bank.
type Asset uint8

const (
	// AssetNative is the chain's own currency. Only it supports reserves and
	// locks.
	AssetNative Asset = iota
	// AssetRelay is the bridged relay-chain currency, usable for fees.
	AssetRelay
)

func (a Asset) String() string {
	switch a {
	case AssetNative:
		return "native"
	case AssetRelay:
		return "relay"
	default:
		return fmt.Sprintf("asset(%d)", uint8(a))
	}
}

// Valid reports whether the asset is known.
func (a Asset) Valid() bool { return a == AssetNative || a == AssetRelay }

// ParseAsset converts a textual asset name.
func ParseAsset(text string) (Asset, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "native", "":
		return AssetNative, nil
	case "relay":
		return AssetRelay, nil
	default:
		return 0, fmt.Errorf("bank: unknown asset %q", text)
	}
}

// Lock is a named restriction on spending free balance. Locks overlap: the
// frozen amount is the largest lock, not their sum.
type Lock struct {
	ID     string
	Amount *big.Int
}

// Account is the balance record of one account for one asset.
type Account struct {
	Free     *big.Int
	Reserved *big.Int
	Locks    []Lock
}

// NewAccount returns an empty account.
func NewAccount() *Account {
	return &Account{Free: big.NewInt(0), Reserved: big.NewInt(0)}
}

// Normalize fills nil amounts and keeps locks sorted by id.
func (a *Account) Normalize() {
	if a.Free == nil {
		a.Free = big.NewInt(0)
	}
	if a.Reserved == nil {
		a.Reserved = big.NewInt(0)
	}
	filtered := a.Locks[:0]
	for _, lock := range a.Locks {
		if lock.Amount != nil && lock.Amount.Sign() > 0 {
			filtered = append(filtered, lock)
		}
	}
	a.Locks = filtered
	sort.Slice(a.Locks, func(i, j int) bool { return a.Locks[i].ID < a.Locks[j].ID })
}

// Total returns free plus reserved.
func (a *Account) Total() *big.Int {
	return new(big.Int).Add(a.Free, a.Reserved)
}

// Frozen returns the largest lock amount.
func (a *Account) Frozen() *big.Int {
	out := big.NewInt(0)
	for _, lock := range a.Locks {
		if lock.Amount.Cmp(out) > 0 {
			out.Set(lock.Amount)
		}
	}
	return out
}

// Usable returns the free balance not covered by locks.
func (a *Account) Usable() *big.Int {
	out := new(big.Int).Sub(a.Free, a.Frozen())
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// IsEmpty reports whether the record can be dropped from state.
func (a *Account) IsEmpty() bool {
	return a.Free.Sign() == 0 && a.Reserved.Sign() == 0 && len(a.Locks) == 0
}
