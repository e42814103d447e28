package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"daochain/core/dispatch"
	"daochain/core/events"
)

// StepStatus is the outcome of one ProcessUnregisterQueue invocation.
type StepStatus uint8

const (
	// StepIdle means the queue was empty.
	StepIdle StepStatus = iota
	// StepDone means the head work item finished.
	StepDone
	// StepContinue means progress was made and a continuation was queued.
	StepContinue
	// StepYield means the budget could not cover a single unstake.
	StepYield
)

func (s StepStatus) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepDone:
		return "done"
	case StepContinue:
		return "continue"
	case StepYield:
		return "yield"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// StepResult reports the work done by one queue step.
type StepResult struct {
	Status    StepStatus
	DaoID     uint32
	Processed uint32
	Remaining uint32
	Weight    dispatch.Weight
}

// UnregisterDao removes the calling DAO from the staking registry, releases
// its deposit and force-unstakes its stakers. Small DAOs are unwound in the
// same call; larger ones are queued for ProcessUnregisterQueue.
func (e *Engine) UnregisterDao(origin dispatch.Origin) (bool, error) {
	daoID, err := origin.EnsureEntity()
	if err != nil {
		return false, err
	}
	if err := e.guard(); err != nil {
		return false, err
	}
	reg, err := e.requireRegistered(daoID)
	if err != nil {
		return false, err
	}
	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return false, err
	}
	daoStake, err := e.loadDaoStake(daoID, era)
	if err != nil {
		return false, err
	}
	stakers := daoStake.NumberOfStakers

	// The DAO's stake stops counting in the current era right away.
	eraInfo, err := e.loadEraInfo(era)
	if err != nil {
		return false, err
	}
	eraInfo.Staked = subSaturating(eraInfo.Staked, daoStake.Total)
	if err := e.state.StakingPutEraInfo(era, eraInfo); err != nil {
		return false, err
	}
	if err := e.state.StakingPutDaoStake(daoID, era, NewDaoStakeInfo()); err != nil {
		return false, err
	}

	if reg.Deposit != nil && reg.Deposit.Sign() > 0 {
		if _, err := e.currency.Unreserve(reg.Account, reg.Deposit); err != nil {
			return false, err
		}
	}
	if err := e.state.StakingDeleteRegistration(daoID); err != nil {
		return false, err
	}

	queued := stakers > e.params.MaxInlineUnregister
	if queued {
		if e.queue == nil {
			return false, errQueueNotConfigured
		}
		index, err := e.state.StakingStakers(daoID)
		if err != nil {
			return false, err
		}
		if err := e.state.StakingPutUnregisterStakers(daoID, index); err != nil {
			return false, err
		}
		msg := UnregisterMessage{DaoID: daoID, Era: era, StakersToUnstake: stakers}
		if err := e.enqueue(msg); err != nil {
			return false, err
		}
		if err := e.state.StakingPutUnregistering(daoID, true); err != nil {
			return false, err
		}
		e.emitter.Emit(events.StakingUnregisterProgress{DaoID: daoID, Era: era, Remaining: stakers, Started: true})
	} else {
		index, err := e.state.StakingStakers(daoID)
		if err != nil {
			return false, err
		}
		for _, staker := range index {
			if _, err := e.forceUnstake(daoID, era, staker); err != nil {
				return false, err
			}
		}
	}
	e.emitter.Emit(events.StakingDao{
		Kind:    events.TypeStakingDaoUnregistered,
		DaoID:   daoID,
		Account: reg.Account,
		Stakers: stakers,
		Queued:  queued,
	})
	return queued, nil
}

func (e *Engine) enqueue(msg UnregisterMessage) error {
	payload, err := rlp.EncodeToBytes(&msg)
	if err != nil {
		return err
	}
	return e.queue.Push(payload)
}

// forceUnstake moves the whole current stake of staker in daoID into an
// unbonding chunk starting at era. The chunk bound is not enforced. It
// reports whether the staker had anything staked.
func (e *Engine) forceUnstake(daoID uint32, era uint32, staker [20]byte) (bool, error) {
	info, err := e.loadStakerInfo(daoID, staker)
	if err != nil {
		return false, err
	}
	staked := info.Latest()
	if staked.Sign() == 0 {
		return false, nil
	}
	if err := info.Unstake(era, staked); err != nil {
		return false, ErrUnexpectedStakeInfoEra
	}
	ledger, err := e.loadLedger(staker)
	if err != nil {
		return false, err
	}
	ledger.AddChunk(UnlockingChunk{Amount: staked, UnlockEra: era + e.params.UnbondingPeriod})
	if err := e.storeLedger(staker, ledger); err != nil {
		return false, err
	}
	if err := e.state.StakingPutStakerInfo(daoID, staker, info); err != nil {
		return false, err
	}
	e.emitter.Emit(events.StakingStake{
		Kind:      events.TypeStakingUnstaked,
		Staker:    staker,
		DaoID:     daoID,
		Amount:    new(big.Int).Set(staked),
		UnlockEra: era + e.params.UnbondingPeriod,
	})
	return true, nil
}

// BatchSize returns how many stakers fit into budget.
func (e *Engine) BatchSize(budget dispatch.Weight) uint32 {
	share := e.params.UnregisterBudgetFraction.Mul(new(big.Int).SetUint64(budget))
	n := new(big.Int).Quo(share, new(big.Int).SetUint64(e.params.UnstakeWeight))
	if !n.IsUint64() || n.Uint64() > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n.Uint64())
}

// ProcessUnregisterQueue works on the head of the unregistration queue with
// the given remaining block budget. It visits at most BatchSize(budget)
// snapshot entries from the message cursor, so the reads per step do not
// depend on how many stakers the DAO had. It yields without touching the
// queue when the budget cannot cover one unstake, and queues a continuation
// carrying the residual count and cursor when entries remain.
func (e *Engine) ProcessUnregisterQueue(budget dispatch.Weight) (StepResult, error) {
	if err := e.ready(); err != nil {
		return StepResult{}, err
	}
	if e.queue == nil {
		return StepResult{}, errQueueNotConfigured
	}
	payload, ok, err := e.queue.Peek()
	if err != nil {
		return StepResult{}, err
	}
	if !ok {
		return StepResult{Status: StepIdle}, nil
	}
	var msg UnregisterMessage
	if err := rlp.DecodeBytes(payload, &msg); err != nil {
		return StepResult{}, fmt.Errorf("staking: decode unregister message: %w", err)
	}
	if e.IsHalted() {
		return StepResult{Status: StepYield, DaoID: msg.DaoID, Remaining: msg.StakersToUnstake}, nil
	}
	batch := e.BatchSize(budget)
	if batch == 0 {
		return StepResult{Status: StepYield, DaoID: msg.DaoID, Remaining: msg.StakersToUnstake}, nil
	}
	if _, _, err := e.queue.Pop(); err != nil {
		return StepResult{}, err
	}
	era, err := e.state.StakingCurrentEra()
	if err != nil {
		return StepResult{}, err
	}
	entries, total, err := e.state.StakingUnregisterStakers(msg.DaoID, msg.Cursor, batch)
	if err != nil {
		return StepResult{}, err
	}
	var processed uint32
	for _, staker := range entries {
		unstaked, err := e.forceUnstake(msg.DaoID, era, staker)
		if err != nil {
			return StepResult{}, err
		}
		if unstaked {
			processed++
		}
	}
	next := msg.Cursor + uint32(len(entries))
	if err := e.state.StakingDropUnregisterStakers(msg.DaoID, msg.Cursor, next); err != nil {
		return StepResult{}, err
	}
	result := StepResult{
		DaoID:     msg.DaoID,
		Processed: processed,
		Weight:    dispatch.Weight(len(entries)) * e.params.UnstakeWeight,
	}
	if next < total {
		msg.Cursor = next
		msg.StakersToUnstake = subUint32(msg.StakersToUnstake, processed)
		if err := e.enqueue(msg); err != nil {
			return StepResult{}, err
		}
		result.Status = StepContinue
		result.Remaining = msg.StakersToUnstake
	} else {
		if err := e.state.StakingPutUnregistering(msg.DaoID, false); err != nil {
			return StepResult{}, err
		}
		result.Status = StepDone
	}
	e.emitter.Emit(events.StakingUnregisterProgress{
		DaoID:     msg.DaoID,
		Era:       msg.Era,
		Processed: processed,
		Remaining: result.Remaining,
	})
	return result, nil
}

func subUint32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
