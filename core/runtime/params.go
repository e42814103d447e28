package runtime

import (
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/rewards"
	"daochain/native/dao"
	"daochain/native/staking"
)

// Params bundles every chain parameter the runtime hands to its engines.
type Params struct {
	// BlockWeightLimit caps the weight of extrinsics and block hooks per
	// block. Whatever extrinsics leave unused feeds the unregistration
	// queue.
	BlockWeightLimit   dispatch.Weight
	ExistentialDeposit *big.Int
	// Sudo is the account allowed to dispatch calls as root through
	// sudo.sudo. A zero account disables sudo.
	Sudo    [20]byte
	Dao     dao.Params
	Staking staking.Params
	Rewards rewards.Config
}

// DefaultParams returns the parameters of a fresh dev chain.
func DefaultParams() Params {
	return Params{
		BlockWeightLimit:   20_000_000,
		ExistentialDeposit: big.NewInt(1),
		Dao:                dao.DefaultParams(),
		Staking:            staking.DefaultParams(),
		Rewards:            rewards.DefaultConfig(),
	}
}

// Validate checks every nested parameter set.
func (p Params) Validate() error {
	if p.BlockWeightLimit == 0 {
		return fmt.Errorf("runtime: block weight limit must be positive")
	}
	if p.ExistentialDeposit == nil || p.ExistentialDeposit.Sign() < 0 {
		return fmt.Errorf("runtime: existential deposit must be non-negative")
	}
	if err := p.Dao.Validate(); err != nil {
		return err
	}
	if err := p.Staking.Validate(); err != nil {
		return err
	}
	if p.Staking.UnstakeWeight > p.BlockWeightLimit {
		return fmt.Errorf("runtime: unstake weight exceeds block weight limit")
	}
	if err := p.Rewards.Validate(); err != nil {
		return fmt.Errorf("runtime: rewards: %w", err)
	}
	return nil
}

// HasSudo reports whether a sudo account is configured.
func (p Params) HasSudo() bool { return p.Sudo != [20]byte{} }
