package staking

import (
	"math/big"

	"daochain/core/events"
)

// stakeInto applies value to the staker's history and the DAO aggregate of
// era. Nothing is persisted.
func (e *Engine) stakeInto(info *StakerInfo, daoStake *DaoStakeInfo, value *big.Int, era uint32) error {
	isNew := info.Latest().Sign() == 0
	if isNew && daoStake.NumberOfStakers >= e.params.MaxStakersPerDao {
		return ErrMaxStakersReached
	}
	if err := info.Stake(era, value); err != nil {
		return ErrUnexpectedStakeInfoEra
	}
	if uint32(info.Len()) > e.params.MaxEraStakeValues {
		return ErrTooManyEraStakeValues
	}
	if info.Latest().Cmp(e.params.MinimumStakingAmount) < 0 {
		return ErrInsufficientStakingAmount
	}
	if isNew {
		daoStake.NumberOfStakers++
	}
	daoStake.Total = new(big.Int).Add(daoStake.Total, value)
	daoStake.Active = e.params.IsActive(daoStake.Total)
	return nil
}

// unstakeFrom removes up to value from the staker's history and the DAO
// aggregate of era and returns the amount actually unstaked. A remainder
// below the minimum staking amount is unstaked as well.
func (e *Engine) unstakeFrom(info *StakerInfo, daoStake *DaoStakeInfo, value *big.Int, era uint32) (*big.Int, error) {
	staked := info.Latest()
	if staked.Sign() == 0 {
		return nil, ErrNotStakedDao
	}
	amount := new(big.Int).Set(value)
	if amount.Cmp(staked) > 0 {
		amount.Set(staked)
	}
	if new(big.Int).Sub(staked, amount).Cmp(e.params.MinimumStakingAmount) < 0 {
		amount.Set(staked)
	}
	if amount.Sign() == 0 {
		return nil, ErrUnstakingNothing
	}
	if err := info.Unstake(era, amount); err != nil {
		return nil, ErrUnexpectedStakeInfoEra
	}
	if uint32(info.Len()) > e.params.MaxEraStakeValues {
		return nil, ErrTooManyEraStakeValues
	}
	if amount.Cmp(staked) == 0 && daoStake.NumberOfStakers > 0 {
		daoStake.NumberOfStakers--
	}
	daoStake.Total = subSaturating(daoStake.Total, amount)
	daoStake.Active = e.params.IsActive(daoStake.Total)
	return amount, nil
}

// Stake locks up to value of the staker's available balance behind daoID.
// The amount is clamped to what the staker can lock and the resulting
// position must reach the minimum staking amount.
func (e *Engine) Stake(staker [20]byte, daoID uint32, value *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if _, err := e.requireRegistered(daoID); err != nil {
		return nil, err
	}
	ledger, err := e.loadLedger(staker)
	if err != nil {
		return nil, err
	}
	available, err := e.availableBalance(staker, ledger)
	if err != nil {
		return nil, err
	}
	amount := big.NewInt(0)
	if value != nil && value.Sign() > 0 {
		amount.Set(value)
	}
	if amount.Cmp(available) > 0 {
		amount.Set(available)
	}
	if amount.Sign() == 0 {
		return nil, ErrStakingNothing
	}

	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return nil, err
	}
	daoStake, err := e.loadDaoStake(daoID, era)
	if err != nil {
		return nil, err
	}
	info, err := e.loadStakerInfo(daoID, staker)
	if err != nil {
		return nil, err
	}
	if err := e.stakeInto(info, daoStake, amount, era); err != nil {
		return nil, err
	}
	eraInfo, err := e.loadEraInfo(era)
	if err != nil {
		return nil, err
	}
	eraInfo.Staked = new(big.Int).Add(eraInfo.Staked, amount)
	eraInfo.Locked = new(big.Int).Add(eraInfo.Locked, amount)
	ledger.Locked = new(big.Int).Add(ledger.Locked, amount)

	if err := e.storeLedger(staker, ledger); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutEraInfo(era, eraInfo); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutStakerInfo(daoID, staker, info); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutDaoStake(daoID, era, daoStake); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingStake{Kind: events.TypeStakingStaked, Staker: staker, DaoID: daoID, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// Unstake starts unbonding up to value of the staker's position in daoID.
// The funds stay locked until WithdrawUnstaked after the unbonding period.
func (e *Engine) Unstake(staker [20]byte, daoID uint32, value *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrUnstakingNothing
	}
	if _, err := e.requireRegistered(daoID); err != nil {
		return nil, err
	}
	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return nil, err
	}
	daoStake, err := e.loadDaoStake(daoID, era)
	if err != nil {
		return nil, err
	}
	info, err := e.loadStakerInfo(daoID, staker)
	if err != nil {
		return nil, err
	}
	amount, err := e.unstakeFrom(info, daoStake, value, era)
	if err != nil {
		return nil, err
	}

	ledger, err := e.loadLedger(staker)
	if err != nil {
		return nil, err
	}
	unlockEra := era + e.params.UnbondingPeriod
	ledger.AddChunk(UnlockingChunk{Amount: amount, UnlockEra: unlockEra})
	if uint32(len(ledger.Unbonding)) > e.params.MaxUnlocking {
		return nil, ErrTooManyUnlockingChunks
	}
	eraInfo, err := e.loadEraInfo(era)
	if err != nil {
		return nil, err
	}
	eraInfo.Staked = subSaturating(eraInfo.Staked, amount)

	if err := e.storeLedger(staker, ledger); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutEraInfo(era, eraInfo); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutStakerInfo(daoID, staker, info); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutDaoStake(daoID, era, daoStake); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingStake{
		Kind:      events.TypeStakingUnstaked,
		Staker:    staker,
		DaoID:     daoID,
		Amount:    new(big.Int).Set(amount),
		UnlockEra: unlockEra,
	})
	return amount, nil
}

// MoveStake reallocates stake between two registered DAOs without going
// through unbonding. The ledger and era totals are unchanged.
func (e *Engine) MoveStake(staker [20]byte, from uint32, value *big.Int, to uint32) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if from == to {
		return nil, ErrMoveStakeToSameDao
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrUnstakingNothing
	}
	if _, err := e.requireRegistered(from); err != nil {
		return nil, err
	}
	if _, err := e.requireRegistered(to); err != nil {
		return nil, err
	}
	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return nil, err
	}

	fromStake, err := e.loadDaoStake(from, era)
	if err != nil {
		return nil, err
	}
	fromInfo, err := e.loadStakerInfo(from, staker)
	if err != nil {
		return nil, err
	}
	amount, err := e.unstakeFrom(fromInfo, fromStake, value, era)
	if err != nil {
		return nil, err
	}
	toStake, err := e.loadDaoStake(to, era)
	if err != nil {
		return nil, err
	}
	toInfo, err := e.loadStakerInfo(to, staker)
	if err != nil {
		return nil, err
	}
	if err := e.stakeInto(toInfo, toStake, amount, era); err != nil {
		return nil, err
	}

	if err := e.state.StakingPutStakerInfo(from, staker, fromInfo); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutDaoStake(from, era, fromStake); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutStakerInfo(to, staker, toInfo); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutDaoStake(to, era, toStake); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingMovedStake{Staker: staker, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// WithdrawUnstaked releases every unbonding chunk whose unlock era has been
// reached and returns the amount unlocked.
func (e *Engine) WithdrawUnstaked(staker [20]byte) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadLedger(staker)
	if err != nil {
		return nil, err
	}
	matured, pending := ledger.Partition(era)
	amount := SumChunks(matured)
	if amount.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	ledger.Locked = subSaturating(ledger.Locked, amount)
	ledger.Unbonding = pending
	eraInfo, err := e.loadEraInfo(era)
	if err != nil {
		return nil, err
	}
	eraInfo.Locked = subSaturating(eraInfo.Locked, amount)

	if err := e.storeLedger(staker, ledger); err != nil {
		return nil, err
	}
	if err := e.state.StakingPutEraInfo(era, eraInfo); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingStake{Kind: events.TypeStakingWithdrawn, Staker: staker, Amount: new(big.Int).Set(amount)})
	return amount, nil
}
