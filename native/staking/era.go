package staking

import (
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/crypto"
	"daochain/native/bank"
)

func daoAccount(daoID uint32) [20]byte { return crypto.DeriveEntityAccount(daoID) }

// Rewards deposits newly issued amount into the reward pot and accrues it to
// the pools of the era in progress.
func (e *Engine) Rewards(amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if err := e.currency.Deposit(bank.AssetNative, e.pot, amount); err != nil {
		return err
	}
	acc, err := e.state.StakingAccumulator()
	if err != nil {
		return err
	}
	if acc == nil {
		fresh := NewRewardInfo()
		acc = &fresh
	}
	daoPart := e.params.DaoRewardRatio.Mul(amount)
	acc.Dao = new(big.Int).Add(acc.Dao, daoPart)
	acc.Stakers = new(big.Int).Add(acc.Stakers, new(big.Int).Sub(amount, daoPart))
	return e.state.StakingPutAccumulator(acc)
}

// ForceNewEra makes the next block start a new era regardless of height.
func (e *Engine) ForceNewEra(origin dispatch.Origin) error {
	if err := origin.EnsureRoot(); err != nil {
		return err
	}
	if e.state == nil {
		return errStateNotConfigured
	}
	return e.state.StakingPutForceEra(true)
}

// OnInitialize advances the era clock at block height and reports whether a
// new era started. Rotation is suspended while staking is halted.
func (e *Engine) OnInitialize(height uint64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if e.IsHalted() {
		return false, nil
	}
	force, err := e.state.StakingForceEra()
	if err != nil {
		return false, err
	}
	next, err := e.state.StakingNextEraStartingBlock()
	if err != nil {
		return false, err
	}
	if height < next && !force {
		return false, nil
	}
	previous, err := e.state.StakingCurrentEra()
	if err != nil {
		return false, err
	}
	era := previous + 1
	if err := e.state.StakingPutCurrentEra(era); err != nil {
		return false, err
	}
	if err := e.state.StakingPutNextEraStartingBlock(height + e.params.BlocksPerEra); err != nil {
		return false, err
	}
	if err := e.snapshotRewards(previous); err != nil {
		return false, err
	}
	activeStake, err := e.rotate(previous)
	if err != nil {
		return false, err
	}
	if force {
		if err := e.state.StakingPutForceEra(false); err != nil {
			return false, err
		}
	}
	e.emitter.Emit(events.StakingNewEra{Era: era, Height: height, ActiveStake: activeStake})
	return true, nil
}

// snapshotRewards moves the accumulated rewards into the finished era.
func (e *Engine) snapshotRewards(era uint32) error {
	acc, err := e.state.StakingAccumulator()
	if err != nil {
		return err
	}
	info, err := e.loadEraInfo(era)
	if err != nil {
		return err
	}
	if acc != nil {
		info.Rewards = RewardInfo{Dao: new(big.Int).Set(acc.Dao), Stakers: new(big.Int).Set(acc.Stakers)}
	}
	if err := e.state.StakingPutEraInfo(era, info); err != nil {
		return err
	}
	fresh := NewRewardInfo()
	return e.state.StakingPutAccumulator(&fresh)
}

// rotate carries every registered DAO's aggregate from the finished era into
// the next one and seeds the next era's snapshot. The active stake of the
// finished era is fixed here from its final totals, so the DAO pool of that
// era splits exactly across its active DAOs.
func (e *Engine) rotate(finished uint32) (*big.Int, error) {
	next := finished + 1
	daos, err := e.state.StakingRegisteredDaos()
	if err != nil {
		return nil, err
	}
	activeStake := big.NewInt(0)
	for _, daoID := range daos {
		info, ok, err := e.state.StakingDaoStake(daoID, finished)
		if err != nil {
			return nil, err
		}
		if !ok || info == nil {
			continue
		}
		info.Active = e.params.IsActive(info.Total)
		if info.Active {
			activeStake.Add(activeStake, info.Total)
		}
		if err := e.state.StakingPutDaoStake(daoID, finished, info); err != nil {
			return nil, err
		}
		carried := &DaoStakeInfo{
			Total:           new(big.Int).Set(info.Total),
			NumberOfStakers: info.NumberOfStakers,
			Active:          info.Active,
		}
		if err := e.state.StakingPutDaoStake(daoID, next, carried); err != nil {
			return nil, err
		}
	}

	finishedInfo, err := e.loadEraInfo(finished)
	if err != nil {
		return nil, err
	}
	finishedInfo.ActiveStake = new(big.Int).Set(activeStake)
	if err := e.state.StakingPutEraInfo(finished, finishedInfo); err != nil {
		return nil, err
	}
	seeded := &EraInfo{
		Rewards:     NewRewardInfo(),
		Staked:      new(big.Int).Set(finishedInfo.Staked),
		Locked:      new(big.Int).Set(finishedInfo.Locked),
		ActiveStake: new(big.Int).Set(activeStake),
	}
	if err := e.state.StakingPutEraInfo(next, seeded); err != nil {
		return nil, err
	}
	return activeStake, nil
}
