package staking

import (
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/native/common"
)

// Params configures eras, bounds and reward splitting.
type Params struct {
	BlocksPerEra      uint64
	UnbondingPeriod   uint32
	MaxUnlocking      uint32
	MaxEraStakeValues uint32
	MaxStakersPerDao  uint32
	// MinimumStakingAmount is the smallest position a staker may hold in one
	// DAO. Unstaking below it exits the position entirely.
	MinimumStakingAmount *big.Int
	// StakeThresholdForActiveDao is the total stake a DAO must exceed to earn
	// from the DAO reward pool.
	StakeThresholdForActiveDao *big.Int
	RegisterDeposit            *big.Int
	MaxNameLength              uint32
	MaxDescriptionLength       uint32
	MaxImageLength             uint32
	// DaoRewardRatio is the share of each reward routed to the DAO pool; the
	// rest goes to stakers.
	DaoRewardRatio common.Perbill
	// MaxInlineUnregister is the largest staker count unwound synchronously
	// when a DAO unregisters.
	MaxInlineUnregister uint32
	// UnstakeWeight is the cost of force-unstaking one staker.
	UnstakeWeight dispatch.Weight
	// UnregisterBudgetFraction is the share of the remaining block budget the
	// unregistration queue may consume.
	UnregisterBudgetFraction common.Perbill
}

// DefaultParams returns the parameters used by a fresh dev chain.
func DefaultParams() Params {
	return Params{
		BlocksPerEra:               7_200,
		UnbondingPeriod:            7,
		MaxUnlocking:               32,
		MaxEraStakeValues:          5,
		MaxStakersPerDao:           10_000,
		MinimumStakingAmount:       big.NewInt(100),
		StakeThresholdForActiveDao: big.NewInt(10_000),
		RegisterDeposit:            big.NewInt(1_000),
		MaxNameLength:              20,
		MaxDescriptionLength:       300,
		MaxImageLength:             100,
		DaoRewardRatio:             common.PerbillFromPercent(50),
		MaxInlineUnregister:        32,
		UnstakeWeight:              250_000,
		UnregisterBudgetFraction:   common.PerbillFromPercent(50),
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	switch {
	case p.BlocksPerEra == 0:
		return fmt.Errorf("staking: blocks per era must be positive")
	case p.MaxUnlocking == 0:
		return fmt.Errorf("staking: max unlocking must be positive")
	case p.MaxEraStakeValues < 2:
		return fmt.Errorf("staking: max era stake values must be at least 2")
	case p.MaxStakersPerDao == 0:
		return fmt.Errorf("staking: max stakers per dao must be positive")
	case p.UnstakeWeight == 0:
		return fmt.Errorf("staking: unstake weight must be positive")
	case p.DaoRewardRatio > common.PerbillOne, p.UnregisterBudgetFraction > common.PerbillOne:
		return fmt.Errorf("staking: ratios must not exceed one")
	}
	for name, v := range map[string]*big.Int{
		"minimum staking amount": p.MinimumStakingAmount,
		"active threshold":       p.StakeThresholdForActiveDao,
		"register deposit":       p.RegisterDeposit,
	} {
		if v == nil || v.Sign() < 0 {
			return fmt.Errorf("staking: %s must be non-negative", name)
		}
	}
	return nil
}

// IsActive reports whether a DAO with the given total stake earns from the
// DAO reward pool. The comparison is strict: a total equal to the threshold
// is inactive.
func (p Params) IsActive(total *big.Int) bool {
	return total != nil && total.Cmp(p.StakeThresholdForActiveDao) > 0
}
