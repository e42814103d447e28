package staking

import (
	"math/big"

	"daochain/core/events"
	"daochain/native/bank"
	"daochain/native/common"
)

// split returns the DAO's share of the DAO pool and the joint share of its
// stakers in the staker pool for one era. Only active DAOs earn from the
// DAO pool.
func split(daoStake *DaoStakeInfo, era *EraInfo) (*big.Int, *big.Int) {
	daoReward := big.NewInt(0)
	if daoStake.Active {
		daoReward = common.PerbillFromRational(daoStake.Total, era.ActiveStake).Mul(era.Rewards.Dao)
	}
	stakersJoint := common.PerbillFromRational(daoStake.Total, era.Staked).Mul(era.Rewards.Stakers)
	return daoReward, stakersJoint
}

func (e *Engine) payout(to [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return e.currency.Transfer(bank.AssetNative, e.pot, to, amount)
}

// StakerClaimRewards pays the staker's reward for the oldest unclaimed era
// of its stake in daoID. Each call claims exactly one era.
func (e *Engine) StakerClaimRewards(staker [20]byte, daoID uint32) (uint32, *big.Int, error) {
	if err := e.guard(); err != nil {
		return 0, nil, err
	}
	info, err := e.loadStakerInfo(daoID, staker)
	if err != nil {
		return 0, nil, err
	}
	era, staked := info.Claim()
	if staked.Sign() == 0 {
		return 0, nil, ErrNoStakeAvailable
	}
	current, err := e.state.StakingCurrentEra()
	if err != nil {
		return 0, nil, err
	}
	if era >= current {
		return 0, nil, ErrIncorrectEra
	}
	daoStake, err := e.loadDaoStake(daoID, era)
	if err != nil {
		return 0, nil, err
	}
	eraInfo, ok, err := e.state.StakingEraInfo(era)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, ErrUnknownEraReward
	}
	_, stakersJoint := split(daoStake, eraInfo)
	reward := common.PerbillFromRational(staked, daoStake.Total).Mul(stakersJoint)

	if err := e.payout(staker, reward); err != nil {
		return 0, nil, err
	}
	if err := e.state.StakingPutStakerInfo(daoID, staker, info); err != nil {
		return 0, nil, err
	}
	e.emitter.Emit(events.StakingClaimed{
		Kind:   events.TypeStakingStakerClaimed,
		Staker: staker,
		DaoID:  daoID,
		Era:    era,
		Amount: new(big.Int).Set(reward),
	})
	return era, reward, nil
}

// DaoClaimRewards pays daoID's share of the DAO pool for a finished era to
// the DAO's own account. Anyone may trigger it; each era pays at most once.
func (e *Engine) DaoClaimRewards(daoID uint32, era uint32) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	current, err := e.state.StakingCurrentEra()
	if err != nil {
		return nil, err
	}
	if era >= current {
		return nil, ErrIncorrectEra
	}
	daoStake, err := e.loadDaoStake(daoID, era)
	if err != nil {
		return nil, err
	}
	if daoStake.RewardClaimed {
		return nil, ErrRewardAlreadyClaimed
	}
	if daoStake.Total.Sign() == 0 {
		return nil, ErrNoStakeAvailable
	}
	eraInfo, ok, err := e.state.StakingEraInfo(era)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownEraReward
	}
	reward, _ := split(daoStake, eraInfo)
	account := daoAccount(daoID)
	if err := e.payout(account, reward); err != nil {
		return nil, err
	}
	daoStake.RewardClaimed = true
	if err := e.state.StakingPutDaoStake(daoID, era, daoStake); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingClaimed{
		Kind:   events.TypeStakingDaoClaimed,
		DaoID:  daoID,
		Era:    era,
		Amount: new(big.Int).Set(reward),
	})
	return reward, nil
}
