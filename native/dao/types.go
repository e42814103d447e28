package dao

import (
	"math/big"

	"daochain/native/bank"
	"daochain/native/common"
)

// DAO is a governed collective. Its settings change only through its own
// entity origin.
type DAO struct {
	ID               uint32
	Account          [20]byte
	Metadata         []byte
	MinimumSupport   common.Perbill
	RequiredApproval common.Perbill
	FrozenTokens     bool
}

// Passes reports whether a tally meets both configured thresholds.
func (d *DAO) Passes(tally *Tally, issuance *big.Int) bool {
	return tally.Support(issuance) >= d.MinimumSupport && tally.Approval() >= d.RequiredApproval
}

// Multisig is a proposal awaiting enough votes to execute. ActualCall holds
// the call exactly as submitted; it is only decoded again at execution.
type Multisig struct {
	DaoID          uint32
	CallHash       [32]byte
	Tally          Tally
	OriginalCaller [20]byte
	ActualCall     []byte
	Metadata       []byte
	FeeAsset       bank.Asset
}

// Clone returns a deep copy of the proposal.
func (m *Multisig) Clone() *Multisig {
	if m == nil {
		return nil
	}
	out := *m
	out.Tally = *m.Tally.Clone()
	out.ActualCall = append([]byte(nil), m.ActualCall...)
	out.Metadata = append([]byte(nil), m.Metadata...)
	return &out
}
