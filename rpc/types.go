package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"daochain/core/runtime"
	"daochain/core/types"
	"daochain/crypto"
	"daochain/indexer"
	"daochain/native/bank"
	"daochain/native/dao"
	"daochain/native/staking"
)

// Amounts are rendered as decimal strings so that JSON clients do not lose
// precision on u128 values.

type BalanceResult struct {
	Address  string       `json:"address"`
	Asset    string       `json:"asset"`
	Free     string       `json:"free"`
	Reserved string       `json:"reserved"`
	Locks    []LockResult `json:"locks,omitempty"`
}

type LockResult struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type DaoResult struct {
	ID               uint32 `json:"id"`
	Account          string `json:"account"`
	Metadata         string `json:"metadata"`
	MinimumSupport   uint32 `json:"minimumSupport"`
	RequiredApproval uint32 `json:"requiredApproval"`
	FrozenTokens     bool   `json:"frozenTokens"`
	Issuance         string `json:"issuance"`
}

type VoteResult struct {
	Voter  string `json:"voter"`
	Aye    bool   `json:"aye"`
	Weight string `json:"weight"`
}

type MultisigResult struct {
	DaoID          uint32       `json:"daoId"`
	CallHash       string       `json:"callHash"`
	OriginalCaller string       `json:"originalCaller"`
	Call           string       `json:"call"`
	Metadata       string       `json:"metadata"`
	FeeAsset       string       `json:"feeAsset"`
	Ayes           string       `json:"ayes"`
	Nays           string       `json:"nays"`
	Votes          []VoteResult `json:"votes"`
}

type ReceiptResult struct {
	Hash    string         `json:"hash"`
	Height  uint64         `json:"height"`
	Index   uint32         `json:"index"`
	Call    string         `json:"call"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Weight  uint64         `json:"weight"`
	Events  []*types.Event `json:"events,omitempty"`
}

type BlockResult struct {
	Height         uint64          `json:"height"`
	Era            uint32          `json:"era"`
	NewEra         bool            `json:"newEra"`
	Issued         string          `json:"issued"`
	Weight         uint64          `json:"weight"`
	ExtrinsicsRoot string          `json:"extrinsicsRoot"`
	ReceiptsRoot   string          `json:"receiptsRoot"`
	Extrinsics     int             `json:"extrinsics"`
	Receipts       []ReceiptResult `json:"receipts,omitempty"`
	Unregister     string          `json:"unregister"`
}

type StakingStatusResult struct {
	CurrentEra    uint32   `json:"currentEra"`
	Halted        bool     `json:"halted"`
	QueueLength   uint64   `json:"unregisterQueueLength"`
	RegisteredDao []uint32 `json:"registeredDaos"`
}

type UnlockingResult struct {
	Amount    string `json:"amount"`
	UnlockEra uint32 `json:"unlockEra"`
}

type LedgerResult struct {
	Address   string            `json:"address"`
	Locked    string            `json:"locked"`
	Unbonding []UnlockingResult `json:"unbonding"`
}

type EraStakeResult struct {
	Era    uint32 `json:"era"`
	Staked string `json:"staked"`
}

type DaoStakeResult struct {
	DaoID           uint32 `json:"daoId"`
	Era             uint32 `json:"era"`
	Total           string `json:"total"`
	NumberOfStakers uint32 `json:"numberOfStakers"`
	RewardClaimed   bool   `json:"rewardClaimed"`
	Active          bool   `json:"active"`
}

type EraInfoResult struct {
	Era         uint32 `json:"era"`
	DaoRewards  string `json:"daoRewards"`
	StakerPool  string `json:"stakerRewards"`
	Staked      string `json:"staked"`
	Locked      string `json:"locked"`
	ActiveStake string `json:"activeStake"`
}

type RegistrationResult struct {
	DaoID       uint32 `json:"daoId"`
	Account     string `json:"account"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Deposit     string `json:"deposit"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func address(account [20]byte) string {
	return crypto.FromAccount(account).String()
}

func hash32(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func parseHash(text string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(text), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("decode hash: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("hash must be %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseBytes(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return nil, fmt.Errorf("hex payload must be 0x-prefixed")
	}
	return hex.DecodeString(trimmed[2:])
}

func assetName(asset bank.Asset) string {
	if asset == bank.AssetRelay {
		return "relay"
	}
	return "native"
}

func balanceResultFrom(addr [20]byte, asset bank.Asset, acct *bank.Account) BalanceResult {
	out := BalanceResult{Address: address(addr), Asset: assetName(asset), Free: "0", Reserved: "0"}
	if acct == nil {
		return out
	}
	out.Free = amount(acct.Free)
	out.Reserved = amount(acct.Reserved)
	for _, lock := range acct.Locks {
		out.Locks = append(out.Locks, LockResult{ID: lock.ID, Amount: amount(lock.Amount)})
	}
	return out
}

func daoResultFrom(record *dao.DAO, issuance *big.Int) DaoResult {
	return DaoResult{
		ID:               record.ID,
		Account:          address(record.Account),
		Metadata:         string(record.Metadata),
		MinimumSupport:   uint32(record.MinimumSupport),
		RequiredApproval: uint32(record.RequiredApproval),
		FrozenTokens:     record.FrozenTokens,
		Issuance:         amount(issuance),
	}
}

func multisigResultFrom(m *dao.Multisig) MultisigResult {
	out := MultisigResult{
		DaoID:          m.DaoID,
		CallHash:       hash32(m.CallHash),
		OriginalCaller: address(m.OriginalCaller),
		Call:           "0x" + hex.EncodeToString(m.ActualCall),
		Metadata:       string(m.Metadata),
		FeeAsset:       assetName(m.FeeAsset),
		Ayes:           amount(m.Tally.Ayes),
		Nays:           amount(m.Tally.Nays),
		Votes:          make([]VoteResult, 0, len(m.Tally.Records)),
	}
	for _, record := range m.Tally.Records {
		out.Votes = append(out.Votes, VoteResult{Voter: address(record.Voter), Aye: record.Vote.Aye, Weight: amount(record.Vote.Weight)})
	}
	return out
}

func receiptResultFrom(r *runtime.Receipt) ReceiptResult {
	return ReceiptResult{
		Hash:    hash32(r.Hash),
		Height:  r.Height,
		Index:   r.Index,
		Call:    r.Call,
		Success: r.Success,
		Error:   r.Error,
		Weight:  r.Weight,
		Events:  r.Events,
	}
}

func blockResultFrom(b *runtime.BlockResult) BlockResult {
	out := BlockResult{
		Height:         b.Height,
		Era:            b.Era,
		NewEra:         b.NewEra,
		Issued:         amount(b.Issued),
		Weight:         b.Weight,
		ExtrinsicsRoot: hash32(b.ExtrinsicsRoot),
		ReceiptsRoot:   hash32(b.ReceiptsRoot),
		Extrinsics:     len(b.Receipts),
		Receipts:       make([]ReceiptResult, 0, len(b.Receipts)),
		Unregister:     b.Unregister.Status.String(),
	}
	for _, receipt := range b.Receipts {
		out.Receipts = append(out.Receipts, receiptResultFrom(receipt))
	}
	return out
}

// blockResultFromRecord renders an archived block. Receipts are served
// one by one through chain_getReceipt.
func blockResultFromRecord(b *indexer.BlockRecord) BlockResult {
	return BlockResult{
		Height:         b.Height,
		Era:            b.Era,
		NewEra:         b.NewEra,
		Issued:         b.Issued,
		Weight:         b.Weight,
		ExtrinsicsRoot: b.ExtrinsicsRoot,
		ReceiptsRoot:   b.ReceiptsRoot,
		Extrinsics:     b.Extrinsics,
		Unregister:     b.UnregisterStatus,
	}
}

func ledgerResultFrom(addr [20]byte, ledger *staking.AccountLedger) LedgerResult {
	out := LedgerResult{Address: address(addr), Locked: "0", Unbonding: []UnlockingResult{}}
	if ledger == nil {
		return out
	}
	out.Locked = amount(ledger.Locked)
	for _, chunk := range ledger.Unbonding {
		out.Unbonding = append(out.Unbonding, UnlockingResult{Amount: amount(chunk.Amount), UnlockEra: chunk.UnlockEra})
	}
	return out
}
