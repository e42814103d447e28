package events

import (
	"math/big"
	"strconv"

	"daochain/core/types"
)

const (
	TypeStakingDaoRegistered     = "staking.daoRegistered"
	TypeStakingDaoUnregistered   = "staking.daoUnregistered"
	TypeStakingDaoInfoChanged    = "staking.daoInfoChanged"
	TypeStakingStaked            = "staking.staked"
	TypeStakingUnstaked          = "staking.unstaked"
	TypeStakingMovedStake        = "staking.movedStake"
	TypeStakingWithdrawn         = "staking.withdrawn"
	TypeStakingStakerClaimed     = "staking.stakerClaimed"
	TypeStakingDaoClaimed        = "staking.daoClaimed"
	TypeStakingNewEra            = "staking.newEra"
	TypeStakingHaltChanged       = "staking.haltChanged"
	TypeStakingUnregisterStarted = "staking.unregisterStarted"
	TypeStakingUnregisterStep    = "staking.unregisterStep"
)

// StakingDao reports a registration lifecycle change for a DAO. Kind selects
// between registered, unregistered and info-changed.
type StakingDao struct {
	Kind    string
	DaoID   uint32
	Account [20]byte
	Stakers uint32
	Queued  bool
}

func (e StakingDao) EventType() string { return e.Kind }

func (e StakingDao) Event() *types.Event {
	attrs := map[string]string{
		"daoId":   strconv.FormatUint(uint64(e.DaoID), 10),
		"account": accountText(e.Account),
	}
	if e.Kind == TypeStakingDaoUnregistered {
		attrs["stakers"] = strconv.FormatUint(uint64(e.Stakers), 10)
		attrs["queued"] = boolText(e.Queued)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// StakingStake covers stake, unstake and withdrawal movements of a single
// staker. UnlockEra is only reported for unstakes.
type StakingStake struct {
	Kind      string
	Staker    [20]byte
	DaoID     uint32
	Amount    *big.Int
	UnlockEra uint32
}

func (e StakingStake) EventType() string { return e.Kind }

func (e StakingStake) Event() *types.Event {
	attrs := map[string]string{
		"staker": accountText(e.Staker),
		"amount": formatAmount(e.Amount),
	}
	if e.Kind != TypeStakingWithdrawn {
		attrs["daoId"] = strconv.FormatUint(uint64(e.DaoID), 10)
	}
	if e.Kind == TypeStakingUnstaked {
		attrs["unlockEra"] = strconv.FormatUint(uint64(e.UnlockEra), 10)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// StakingMovedStake reports stake reallocated between two DAOs.
type StakingMovedStake struct {
	Staker [20]byte
	From   uint32
	To     uint32
	Amount *big.Int
}

func (StakingMovedStake) EventType() string { return TypeStakingMovedStake }

func (e StakingMovedStake) Event() *types.Event {
	return &types.Event{Type: TypeStakingMovedStake, Attributes: map[string]string{
		"staker": accountText(e.Staker),
		"from":   strconv.FormatUint(uint64(e.From), 10),
		"to":     strconv.FormatUint(uint64(e.To), 10),
		"amount": formatAmount(e.Amount),
	}}
}

// StakingClaimed reports a reward payout for one era. Staker is zero for DAO
// claims.
type StakingClaimed struct {
	Kind   string
	Staker [20]byte
	DaoID  uint32
	Era    uint32
	Amount *big.Int
}

func (e StakingClaimed) EventType() string { return e.Kind }

func (e StakingClaimed) Event() *types.Event {
	attrs := map[string]string{
		"daoId":  strconv.FormatUint(uint64(e.DaoID), 10),
		"era":    strconv.FormatUint(uint64(e.Era), 10),
		"amount": formatAmount(e.Amount),
	}
	if e.Kind == TypeStakingStakerClaimed {
		attrs["staker"] = accountText(e.Staker)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// StakingNewEra marks an era rotation.
type StakingNewEra struct {
	Era         uint32
	Height      uint64
	ActiveStake *big.Int
}

func (StakingNewEra) EventType() string { return TypeStakingNewEra }

func (e StakingNewEra) Event() *types.Event {
	return &types.Event{Type: TypeStakingNewEra, Attributes: map[string]string{
		"era":         strconv.FormatUint(uint64(e.Era), 10),
		"height":      strconv.FormatUint(e.Height, 10),
		"activeStake": formatAmount(e.ActiveStake),
	}}
}

// StakingHaltChanged reports the new halt status.
type StakingHaltChanged struct {
	Halted bool
}

func (StakingHaltChanged) EventType() string { return TypeStakingHaltChanged }

func (e StakingHaltChanged) Event() *types.Event {
	return &types.Event{Type: TypeStakingHaltChanged, Attributes: map[string]string{
		"halted": boolText(e.Halted),
	}}
}

// StakingUnregisterProgress reports deferred unregistration work. Started is
// set when the work item is first queued.
type StakingUnregisterProgress struct {
	DaoID     uint32
	Era       uint32
	Processed uint32
	Remaining uint32
	Started   bool
}

func (e StakingUnregisterProgress) EventType() string {
	if e.Started {
		return TypeStakingUnregisterStarted
	}
	return TypeStakingUnregisterStep
}

func (e StakingUnregisterProgress) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"daoId":     strconv.FormatUint(uint64(e.DaoID), 10),
		"era":       strconv.FormatUint(uint64(e.Era), 10),
		"processed": strconv.FormatUint(uint64(e.Processed), 10),
		"remaining": strconv.FormatUint(uint64(e.Remaining), 10),
	}}
}
