package dao

import (
	"errors"
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/crypto"
	"daochain/native/bank"
	"daochain/native/common"
)

// Execution describes a dispatched proposal. It is nil when a call only
// stored or updated a vote.
type Execution struct {
	CallHash [32]byte
	PostInfo dispatch.PostInfo
	Err      error
}

func (e *Engine) votingPower(daoID uint32, voter [20]byte) (*big.Int, *big.Int, error) {
	balance, err := e.tokens.BalanceOf(daoID, voter)
	if err != nil {
		return nil, nil, err
	}
	if balance.Sign() == 0 {
		return nil, nil, ErrNoPermission
	}
	issuance, err := e.tokens.TotalIssuance(daoID)
	if err != nil {
		return nil, nil, err
	}
	return balance, issuance, nil
}

func (e *Engine) loadMultisig(daoID uint32, callHash [32]byte) (*Multisig, error) {
	record, ok, err := e.state.MultisigGet(daoID, callHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMultisigCallNotFound
	}
	record.Tally.normalize()
	return record, nil
}

// execute decodes and dispatches call as the DAO itself. A failing dispatch
// is reported in the returned execution, not as an error; only a call that
// cannot be decoded aborts.
func (e *Engine) execute(record *DAO, voter [20]byte, callHash [32]byte, encoded []byte) (*Execution, error) {
	call, err := e.dispatcher.DecodeCall(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedDecodingCall, err)
	}
	post, dispatchErr := e.dispatcher.Dispatch(dispatch.Entity(record.ID), call)
	evt := events.MultisigExecuted{
		DaoID:    record.ID,
		Executor: record.Account,
		Voter:    voter,
		CallHash: callHash,
		Success:  dispatchErr == nil,
		Weight:   post.ActualWeight,
	}
	if dispatchErr != nil {
		evt.Result = dispatchErr.Error()
	}
	e.emitter.Emit(evt)
	return &Execution{CallHash: callHash, PostInfo: post, Err: dispatchErr}, nil
}

// OperateMultisig proposes encodedCall on behalf of daoID. When the caller
// alone meets the DAO's minimum support the call executes immediately and no
// proposal is stored. Otherwise the storage fee is charged in feeAsset and a
// proposal is opened with the caller's full balance voting aye.
func (e *Engine) OperateMultisig(caller [20]byte, daoID uint32, metadata []byte, feeAsset bank.Asset, encodedCall []byte) (*Execution, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.dispatcher == nil {
		return nil, errDispatcherNotConfigured
	}
	if uint32(len(encodedCall)) > e.params.MaxCallSize {
		return nil, ErrCallTooLarge
	}
	if uint32(len(metadata)) > e.params.MaxMetadata {
		return nil, ErrMaxMetadataExceeded
	}
	record, err := e.GetDAO(daoID)
	if err != nil {
		return nil, err
	}
	balance, issuance, err := e.votingPower(daoID, caller)
	if err != nil {
		return nil, err
	}
	if _, err := e.dispatcher.DecodeCall(encodedCall); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedDecodingCall, err)
	}
	callHash := crypto.HashCall(encodedCall)
	if _, ok, err := e.state.MultisigGet(daoID, callHash); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrMultisigCallAlreadyExists
	}

	if common.PerbillFromRational(balance, issuance) >= record.MinimumSupport {
		return e.execute(record, caller, callHash, encodedCall)
	}

	fee := e.params.StorageFee(len(encodedCall) + len(metadata))
	if fee.Sign() > 0 {
		if err := e.currency.Transfer(feeAsset, caller, e.feeCollector, fee); err != nil {
			return nil, fmt.Errorf("dao: storage fee: %w", err)
		}
	}
	tally := NewTally(e.params.MaxVoters)
	if _, err := tally.ProcessVote(caller, &Vote{Aye: true, Weight: balance}); err != nil {
		return nil, err
	}
	proposal := &Multisig{
		DaoID:          daoID,
		CallHash:       callHash,
		Tally:          *tally,
		OriginalCaller: caller,
		ActualCall:     append([]byte(nil), encodedCall...),
		Metadata:       append([]byte(nil), metadata...),
		FeeAsset:       feeAsset,
	}
	if err := e.state.MultisigPut(proposal); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.MultisigVoteStarted{
		DaoID:      daoID,
		Executor:   record.Account,
		Voter:      caller,
		VotesAdded: new(big.Int).Set(balance),
		CallHash:   callHash,
	})
	return nil, nil
}

// VoteMultisig records the caller's balance-weighted vote. If both thresholds
// are met afterwards the proposal is removed and executed in the same call.
func (e *Engine) VoteMultisig(caller [20]byte, daoID uint32, callHash [32]byte, aye bool) (*Execution, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.dispatcher == nil {
		return nil, errDispatcherNotConfigured
	}
	record, err := e.GetDAO(daoID)
	if err != nil {
		return nil, err
	}
	proposal, err := e.loadMultisig(daoID, callHash)
	if err != nil {
		return nil, err
	}
	balance, issuance, err := e.votingPower(daoID, caller)
	if err != nil {
		return nil, err
	}
	vote := &Vote{Aye: aye, Weight: balance}
	if _, err := proposal.Tally.ProcessVote(caller, vote); err != nil {
		return nil, err
	}

	if record.Passes(&proposal.Tally, issuance) {
		if err := e.state.MultisigDelete(daoID, callHash); err != nil {
			return nil, err
		}
		return e.execute(record, caller, callHash, proposal.ActualCall)
	}

	if err := e.state.MultisigPut(proposal); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.MultisigVoteAdded{
		DaoID:    daoID,
		Voter:    caller,
		Aye:      aye,
		Weight:   new(big.Int).Set(balance),
		Ayes:     new(big.Int).Set(proposal.Tally.Ayes),
		Nays:     new(big.Int).Set(proposal.Tally.Nays),
		CallHash: callHash,
	})
	return nil, nil
}

// WithdrawVoteMultisig removes the caller's vote. The proposal is kept even
// when no votes remain, and withdrawal never executes it.
func (e *Engine) WithdrawVoteMultisig(caller [20]byte, daoID uint32, callHash [32]byte) error {
	if e.state == nil {
		return errStateNotConfigured
	}
	proposal, err := e.loadMultisig(daoID, callHash)
	if err != nil {
		return err
	}
	previous, err := proposal.Tally.ProcessVote(caller, nil)
	if err != nil {
		return err
	}
	if err := e.state.MultisigPut(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.MultisigVoteWithdrawn{
		DaoID:    daoID,
		Voter:    caller,
		Aye:      previous.Aye,
		Weight:   previous.Weight,
		CallHash: callHash,
	})
	return nil
}

// CancelMultisigProposal drops a pending proposal. Only the DAO itself, acting
// through its entity origin, may cancel.
func (e *Engine) CancelMultisigProposal(origin dispatch.Origin, callHash [32]byte) error {
	daoID, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	if e.state == nil {
		return errStateNotConfigured
	}
	if _, err := e.loadMultisig(daoID, callHash); err != nil {
		return err
	}
	if err := e.state.MultisigDelete(daoID, callHash); err != nil {
		return err
	}
	e.emitter.Emit(events.MultisigCancelled{DaoID: daoID, CallHash: callHash})
	return nil
}

// GetMultisig returns the pending proposal for callHash.
func (e *Engine) GetMultisig(daoID uint32, callHash [32]byte) (*Multisig, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.loadMultisig(daoID, callHash)
}

// IsNotFound reports whether err is one of the package's not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDaoNotFound) || errors.Is(err, ErrMultisigCallNotFound)
}
