package dao

import (
	"fmt"
	"math/big"
)

// Params bounds storage use and prices governance actions. Amounts are in the
// smallest unit of the asset they are charged in.
type Params struct {
	MaxMetadata uint32
	MaxCallSize uint32
	MaxVoters   uint32
	// SeedBalance is minted to the creator of a new DAO.
	SeedBalance *big.Int
	// CreationFee and RelayCreationFee price create_dao in the native and
	// relay assets respectively.
	CreationFee      *big.Int
	RelayCreationFee *big.Int
	// StorageFeeBase and StorageFeePerByte price storing a pending proposal.
	StorageFeeBase    *big.Int
	StorageFeePerByte *big.Int
}

// DefaultParams returns the parameters used by a fresh dev chain.
func DefaultParams() Params {
	return Params{
		MaxMetadata:       10_000,
		MaxCallSize:       50 * 1024,
		MaxVoters:         1_024,
		SeedBalance:       big.NewInt(1_000_000),
		CreationFee:       big.NewInt(1_000),
		RelayCreationFee:  big.NewInt(10),
		StorageFeeBase:    big.NewInt(10),
		StorageFeePerByte: big.NewInt(1),
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.MaxCallSize == 0 {
		return fmt.Errorf("dao: max call size must be positive")
	}
	if p.MaxVoters == 0 {
		return fmt.Errorf("dao: max voters must be positive")
	}
	for name, v := range map[string]*big.Int{
		"seed balance":         p.SeedBalance,
		"creation fee":         p.CreationFee,
		"relay creation fee":   p.RelayCreationFee,
		"storage fee base":     p.StorageFeeBase,
		"storage fee per byte": p.StorageFeePerByte,
	} {
		if v == nil || v.Sign() < 0 {
			return fmt.Errorf("dao: %s must be non-negative", name)
		}
	}
	if p.SeedBalance.Sign() == 0 {
		return fmt.Errorf("dao: seed balance must be positive")
	}
	return nil
}

// StorageFee prices a pending proposal of the given encoded size.
func (p Params) StorageFee(length int) *big.Int {
	fee := new(big.Int).Mul(p.StorageFeePerByte, big.NewInt(int64(length)))
	return fee.Add(fee, p.StorageFeeBase)
}
