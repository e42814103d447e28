package events

import (
	"math/big"
	"strconv"

	"daochain/core/types"
)

const (
	// TypeMultisigVoteStarted is emitted when a proposal is stored for voting.
	TypeMultisigVoteStarted = "multisig.voteStarted"
	// TypeMultisigVoteAdded is emitted when a vote is recorded or changed.
	TypeMultisigVoteAdded = "multisig.voteAdded"
	// TypeMultisigVoteWithdrawn is emitted when a voter removes their vote.
	TypeMultisigVoteWithdrawn = "multisig.voteWithdrawn"
	// TypeMultisigExecuted is emitted when an approved call was dispatched.
	TypeMultisigExecuted = "multisig.executed"
	// TypeMultisigCancelled is emitted when the DAO drops a pending proposal.
	TypeMultisigCancelled = "multisig.cancelled"
)

// MultisigVoteStarted reports a newly opened proposal.
type MultisigVoteStarted struct {
	DaoID      uint32
	Executor   [20]byte
	Voter      [20]byte
	VotesAdded *big.Int
	CallHash   [32]byte
}

// EventType satisfies the Event interface.
func (MultisigVoteStarted) EventType() string { return TypeMultisigVoteStarted }

// Event converts the structured payload into a broadcastable event.
func (e MultisigVoteStarted) Event() *types.Event {
	return &types.Event{Type: TypeMultisigVoteStarted, Attributes: map[string]string{
		"daoId":      strconv.FormatUint(uint64(e.DaoID), 10),
		"executor":   accountText(e.Executor),
		"voter":      accountText(e.Voter),
		"votesAdded": formatAmount(e.VotesAdded),
		"callHash":   hashText(e.CallHash),
	}}
}

// MultisigVoteAdded carries the voter's new record and the tally snapshot
// after it was applied.
type MultisigVoteAdded struct {
	DaoID    uint32
	Voter    [20]byte
	Aye      bool
	Weight   *big.Int
	Ayes     *big.Int
	Nays     *big.Int
	CallHash [32]byte
}

// EventType satisfies the Event interface.
func (MultisigVoteAdded) EventType() string { return TypeMultisigVoteAdded }

// Event converts the structured payload into a broadcastable event.
func (e MultisigVoteAdded) Event() *types.Event {
	return &types.Event{Type: TypeMultisigVoteAdded, Attributes: map[string]string{
		"daoId":    strconv.FormatUint(uint64(e.DaoID), 10),
		"voter":    accountText(e.Voter),
		"aye":      strconv.FormatBool(e.Aye),
		"weight":   formatAmount(e.Weight),
		"ayes":     formatAmount(e.Ayes),
		"nays":     formatAmount(e.Nays),
		"callHash": hashText(e.CallHash),
	}}
}

// MultisigVoteWithdrawn carries the record that was removed.
type MultisigVoteWithdrawn struct {
	DaoID    uint32
	Voter    [20]byte
	Aye      bool
	Weight   *big.Int
	CallHash [32]byte
}

// EventType satisfies the Event interface.
func (MultisigVoteWithdrawn) EventType() string { return TypeMultisigVoteWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e MultisigVoteWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeMultisigVoteWithdrawn, Attributes: map[string]string{
		"daoId":    strconv.FormatUint(uint64(e.DaoID), 10),
		"voter":    accountText(e.Voter),
		"aye":      strconv.FormatBool(e.Aye),
		"weight":   formatAmount(e.Weight),
		"callHash": hashText(e.CallHash),
	}}
}

// MultisigExecuted reports the outcome of dispatching an approved call. A
// failed dispatch is still an executed proposal; Result holds the error text.
type MultisigExecuted struct {
	DaoID    uint32
	Executor [20]byte
	Voter    [20]byte
	CallHash [32]byte
	Success  bool
	Result   string
	Weight   uint64
}

// EventType satisfies the Event interface.
func (MultisigExecuted) EventType() string { return TypeMultisigExecuted }

// Event converts the structured payload into a broadcastable event.
func (e MultisigExecuted) Event() *types.Event {
	attrs := map[string]string{
		"daoId":    strconv.FormatUint(uint64(e.DaoID), 10),
		"executor": accountText(e.Executor),
		"voter":    accountText(e.Voter),
		"callHash": hashText(e.CallHash),
		"success":  strconv.FormatBool(e.Success),
		"weight":   strconv.FormatUint(e.Weight, 10),
	}
	if e.Result != "" {
		attrs["result"] = e.Result
	}
	return &types.Event{Type: TypeMultisigExecuted, Attributes: attrs}
}

// MultisigCancelled reports a proposal removed by its DAO.
type MultisigCancelled struct {
	DaoID    uint32
	CallHash [32]byte
}

// EventType satisfies the Event interface.
func (MultisigCancelled) EventType() string { return TypeMultisigCancelled }

// Event converts the structured payload into a broadcastable event.
func (e MultisigCancelled) Event() *types.Event {
	return &types.Event{Type: TypeMultisigCancelled, Attributes: map[string]string{
		"daoId":    strconv.FormatUint(uint64(e.DaoID), 10),
		"callHash": hashText(e.CallHash),
	}}
}
