package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/core/rewards"
	"daochain/core/types"
	"daochain/crypto"
	"daochain/native/bank"
	"daochain/native/common"
	"daochain/native/dao"
	"daochain/native/staking"
	"daochain/storage"
	"daochain/storage/trie"
)

var (
	alice   = [20]byte{1}
	bob     = [20]byte{2}
	carol   = [20]byte{3}
	sudoKey = [20]byte{9}
)

type recordingSink struct {
	heights []uint64
	events  []*types.Event
}

func (s *recordingSink) Publish(height uint64, evts []*types.Event) {
	for range evts {
		s.heights = append(s.heights, height)
	}
	s.events = append(s.events, evts...)
}

func testParams() Params {
	p := DefaultParams()
	p.Sudo = sudoKey
	p.Staking.BlocksPerEra = 5
	p.Staking.UnbondingPeriod = 2
	p.Staking.MinimumStakingAmount = big.NewInt(10)
	p.Staking.StakeThresholdForActiveDao = big.NewInt(100)
	p.Staking.RegisterDeposit = big.NewInt(50)
	p.Staking.MaxInlineUnregister = 1
	p.Staking.UnstakeWeight = 4_000_000
	p.Rewards = rewards.Config{Schedule: []rewards.EmissionStep{{StartEra: 1, Amount: big.NewInt(1_000)}}}
	return p
}

// testGenesis creates DAO 0 split evenly between alice and bob with a 60%
// support threshold, and DAO 1 held entirely by carol. Both are registered
// for staking.
func testGenesis() Genesis {
	return Genesis{
		Balances: []GenesisBalance{
			{Account: alice, Asset: bank.AssetNative, Amount: big.NewInt(100_000)},
			{Account: bob, Asset: bank.AssetNative, Amount: big.NewInt(100_000)},
			{Account: carol, Asset: bank.AssetNative, Amount: big.NewInt(100_000)},
			{Account: alice, Asset: bank.AssetRelay, Amount: big.NewInt(1_000)},
			{Account: crypto.DeriveEntityAccount(0), Asset: bank.AssetNative, Amount: big.NewInt(10_000)},
			{Account: crypto.DeriveEntityAccount(1), Asset: bank.AssetNative, Amount: big.NewInt(10_000)},
		},
		Daos: []GenesisDao{
			{
				Creator:          alice,
				Metadata:         []byte("zero"),
				MinimumSupport:   common.PerbillFromPercent(60),
				RequiredApproval: common.PerbillFromPercent(50),
				Holders:          []GenesisHolder{{Account: bob, Amount: big.NewInt(1_000_000)}},
				Staking:          &staking.DaoInformation{Name: []byte("zero")},
			},
			{
				Creator:          carol,
				MinimumSupport:   common.PerbillFromPercent(50),
				RequiredApproval: common.PerbillFromPercent(50),
				Staking:          &staking.DaoInformation{Name: []byte("one")},
			},
		},
	}
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	db     *storage.MemDB
	rt     *Runtime
	sink   *recordingSink
	height uint64
}

func newHarness(t *testing.T, params Params) *harness {
	t.Helper()
	db := storage.NewMemDB()
	sink := &recordingSink{}
	rt, err := New(db, params, WithEventSink(sink), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, rt.InitGenesis(context.Background(), testGenesis()))
	return &harness{t: t, ctx: context.Background(), db: db, rt: rt, sink: sink}
}

func (h *harness) block(exts ...Extrinsic) *BlockResult {
	h.t.Helper()
	h.height++
	result, deferred, err := h.rt.ProcessBlock(h.ctx, h.height, exts)
	require.NoError(h.t, err)
	require.Empty(h.t, deferred)
	return result
}

func (h *harness) apply(signer [20]byte, call []byte) *Receipt {
	h.t.Helper()
	result := h.block(Extrinsic{Signer: signer, Call: call})
	require.Len(h.t, result.Receipts, 1)
	return result.Receipts[0]
}

func (h *harness) free(asset bank.Asset, addr [20]byte) *big.Int {
	h.t.Helper()
	account, err := h.rt.Account(asset, addr)
	require.NoError(h.t, err)
	return account.Free
}

func encodeCall(t *testing.T, module, method string, args interface{}) []byte {
	t.Helper()
	call, err := dispatch.NewCall(module, method, args)
	require.NoError(t, err)
	encoded, err := call.Encode()
	require.NoError(t, err)
	return encoded
}

func findEvent(evts []*types.Event, kind string) *types.Event {
	for _, evt := range evts {
		if evt.Type == kind {
			return evt
		}
	}
	return nil
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.BlockWeightLimit = 0
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.Staking.UnstakeWeight = p.BlockWeightLimit + 1
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.ExistentialDeposit = nil
	require.Error(t, p.Validate())
}

func TestGenesisSeedsState(t *testing.T) {
	h := newHarness(t, testParams())

	record, err := h.rt.Dao(0)
	require.NoError(t, err)
	require.Equal(t, crypto.DeriveEntityAccount(0), record.Account)
	require.Equal(t, []byte("zero"), record.Metadata)

	issuance, err := h.rt.TokenIssuance(0)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000_000), issuance)

	reg, err := h.rt.Registration(1)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), reg.Name)
	account, err := h.rt.Account(bank.AssetNative, crypto.DeriveEntityAccount(1))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), account.Reserved)

	// Genesis DAOs are not charged the creation fee.
	require.Equal(t, big.NewInt(100_000), h.free(bank.AssetNative, alice))

	require.ErrorIs(t, h.rt.InitGenesis(h.ctx, testGenesis()), ErrGenesisApplied)
}

func TestMultisigExecutesOnceThresholdsMet(t *testing.T) {
	h := newHarness(t, testParams())
	inner := encodeCall(t, ModuleDao, "token_mint", TokenSupplyArgs{Amount: big.NewInt(500), Target: carol})
	hash := crypto.HashCall(inner)

	receipt := h.apply(alice, encodeCall(t, ModuleDao, "operate_multisig", OperateMultisigArgs{DaoID: 0, Call: inner}))
	require.True(t, receipt.Success, receipt.Error)
	require.NotNil(t, findEvent(receipt.Events, events.TypeMultisigVoteStarted))

	proposal, err := h.rt.Multisig(0, hash)
	require.NoError(t, err)
	require.Equal(t, alice, proposal.OriginalCaller)
	fee := testParams().Dao.StorageFee(len(inner))
	require.Equal(t, new(big.Int).Sub(big.NewInt(100_000), fee), h.free(bank.AssetNative, alice))

	receipt = h.apply(bob, encodeCall(t, ModuleDao, "vote_multisig", VoteMultisigArgs{DaoID: 0, CallHash: hash, Aye: true}))
	require.True(t, receipt.Success, receipt.Error)
	executed := findEvent(receipt.Events, events.TypeMultisigExecuted)
	require.NotNil(t, executed)
	require.Equal(t, "true", executed.Attr("success"))
	require.NotNil(t, findEvent(receipt.Events, events.TypeDaoTokensMinted))

	balance, err := h.rt.TokenBalance(0, carol)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), balance)

	_, err = h.rt.Multisig(0, hash)
	require.ErrorIs(t, err, dao.ErrMultisigCallNotFound)
}

func TestFailedProposalCallRollsBackOnlyItself(t *testing.T) {
	h := newHarness(t, testParams())
	inner := encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: carol, Amount: big.NewInt(1_000_000_000)})
	hash := crypto.HashCall(inner)

	receipt := h.apply(alice, encodeCall(t, ModuleDao, "operate_multisig", OperateMultisigArgs{DaoID: 0, Call: inner}))
	require.True(t, receipt.Success, receipt.Error)

	receipt = h.apply(bob, encodeCall(t, ModuleDao, "vote_multisig", VoteMultisigArgs{DaoID: 0, CallHash: hash, Aye: true}))
	require.True(t, receipt.Success, receipt.Error)
	executed := findEvent(receipt.Events, events.TypeMultisigExecuted)
	require.NotNil(t, executed)
	require.Equal(t, "false", executed.Attr("success"))
	require.Nil(t, findEvent(receipt.Events, events.TypeTransfer))

	require.Equal(t, big.NewInt(100_000), h.free(bank.AssetNative, carol))
	_, err := h.rt.Multisig(0, hash)
	require.ErrorIs(t, err, dao.ErrMultisigCallNotFound)
}

func TestSupermajorityHolderExecutesImmediately(t *testing.T) {
	h := newHarness(t, testParams())

	receipt := h.apply(carol, encodeCall(t, ModuleDao, "create_dao", CreateDaoArgs{
		MinimumSupport:   uint32(common.PerbillFromPercent(50)),
		RequiredApproval: uint32(common.PerbillFromPercent(50)),
	}))
	require.True(t, receipt.Success, receipt.Error)
	created := findEvent(receipt.Events, events.TypeDaoCreated)
	require.NotNil(t, created)
	require.Equal(t, "2", created.Attr("daoId"))

	inner := encodeCall(t, ModuleDao, "set_parameters", SetParametersArgs{SetMetadata: true, Metadata: []byte("hi"), SetFrozenTokens: true, FrozenTokens: true})
	receipt = h.apply(carol, encodeCall(t, ModuleDao, "operate_multisig", OperateMultisigArgs{DaoID: 2, Call: inner}))
	require.True(t, receipt.Success, receipt.Error)
	require.Nil(t, findEvent(receipt.Events, events.TypeMultisigVoteStarted))

	record, err := h.rt.Dao(2)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), record.Metadata)
	require.True(t, record.FrozenTokens)

	// Only the creation fee was charged; no proposal was stored.
	expected := new(big.Int).Sub(big.NewInt(100_000), testParams().Dao.CreationFee)
	require.Equal(t, expected, h.free(bank.AssetNative, carol))

	receipt = h.apply(carol, encodeCall(t, ModuleTokens, "transfer", TokenTransferArgs{DaoID: 2, To: alice, Amount: big.NewInt(1)}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, "frozen")
}

func TestFailedExtrinsicLeavesNoTrace(t *testing.T) {
	h := newHarness(t, testParams())
	receipt := h.apply(alice, encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(1_000_000_000)}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, "insufficient")
	require.Empty(t, receipt.Events)
	require.Equal(t, big.NewInt(100_000), h.free(bank.AssetNative, alice))
	require.Equal(t, big.NewInt(100_000), h.free(bank.AssetNative, bob))

	receipt = h.apply(alice, encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: new(big.Int).Lsh(big.NewInt(1), 130)}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, ErrInvalidAmount.Error())
}

func TestUndecodableExtrinsicIsReported(t *testing.T) {
	h := newHarness(t, testParams())
	result := h.block(
		Extrinsic{Signer: alice, Call: []byte{0xde, 0xad}},
		Extrinsic{Signer: alice, Call: encodeCall(t, "nope", "nothing", nil)},
		Extrinsic{Signer: alice, Call: encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(5)})},
	)
	require.Len(t, result.Receipts, 3)
	require.False(t, result.Receipts[0].Success)
	require.False(t, result.Receipts[1].Success)
	require.Contains(t, result.Receipts[1].Error, dispatch.ErrUnknownCall.Error())
	require.True(t, result.Receipts[2].Success, result.Receipts[2].Error)
	require.Equal(t, uint32(2), result.Receipts[2].Index)
}

func TestBatchIsAtomic(t *testing.T) {
	h := newHarness(t, testParams())
	ok, err := dispatch.NewCall(ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(10)})
	require.NoError(t, err)
	bad, err := dispatch.NewCall(ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(1_000_000_000)})
	require.NoError(t, err)

	failing, err := dispatch.NewBatch(ok, bad)
	require.NoError(t, err)
	encoded, err := failing.Encode()
	require.NoError(t, err)
	receipt := h.apply(alice, encoded)
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, "batch call 1")
	require.Equal(t, big.NewInt(100_000), h.free(bank.AssetNative, bob))

	passing, err := dispatch.NewBatch(ok, ok)
	require.NoError(t, err)
	encoded, err = passing.Encode()
	require.NoError(t, err)
	receipt = h.apply(alice, encoded)
	require.True(t, receipt.Success, receipt.Error)
	require.Equal(t, big.NewInt(100_020), h.free(bank.AssetNative, bob))
	require.Equal(t, dispatch.Weight(5_000+2*30_000), receipt.Weight)
}

func TestSudoDispatchesAsRoot(t *testing.T) {
	h := newHarness(t, testParams())
	halt := encodeCall(t, ModuleStaking, "halt_unhalt", HaltArgs{Halt: true})

	receipt := h.apply(alice, halt)
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, dispatch.ErrBadOrigin.Error())

	receipt = h.apply(alice, encodeCall(t, ModuleSudo, "sudo", SudoArgs{Call: halt}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, ErrNotSudo.Error())

	receipt = h.apply(sudoKey, encodeCall(t, ModuleSudo, "sudo", SudoArgs{Call: halt}))
	require.True(t, receipt.Success, receipt.Error)
	halted, err := h.rt.StakingHalted()
	require.NoError(t, err)
	require.True(t, halted)

	receipt = h.apply(bob, encodeCall(t, ModuleStaking, "stake", StakeArgs{DaoID: 0, Value: big.NewInt(100)}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, staking.ErrHalted.Error())
}

func TestInflationAndRewardsAcrossEras(t *testing.T) {
	h := newHarness(t, testParams())
	pot := crypto.ModuleAccount(staking.PotTag)

	first := h.block(Extrinsic{Signer: bob, Call: encodeCall(t, ModuleStaking, "stake", StakeArgs{DaoID: 0, Value: big.NewInt(500)})})
	require.True(t, first.NewEra)
	require.Equal(t, uint32(1), first.Era)
	require.Equal(t, big.NewInt(200), first.Issued)
	require.True(t, first.Receipts[0].Success, first.Receipts[0].Error)
	for i := 0; i < 4; i++ {
		res := h.block()
		require.False(t, res.NewEra)
	}
	require.Equal(t, big.NewInt(1_000), h.free(bank.AssetNative, pot))

	next := h.block()
	require.True(t, next.NewEra)
	require.Equal(t, uint32(2), next.Era)
	era1, ok, err := h.rt.EraInfo(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big.NewInt(500), era1.Rewards.Dao)
	require.Equal(t, big.NewInt(500), era1.Rewards.Stakers)
	require.Equal(t, big.NewInt(500), era1.ActiveStake)

	receipt := h.apply(bob, encodeCall(t, ModuleStaking, "staker_claim_rewards", DaoArgs{DaoID: 0}))
	require.True(t, receipt.Success, receipt.Error)
	require.Equal(t, big.NewInt(100_500), h.free(bank.AssetNative, bob))

	receipt = h.apply(carol, encodeCall(t, ModuleStaking, "dao_claim_rewards", DaoClaimArgs{DaoID: 0, Era: 1}))
	require.True(t, receipt.Success, receipt.Error)
	// 10_000 funded at genesis less the 50 reserved for registration.
	require.Equal(t, big.NewInt(10_450), h.free(bank.AssetNative, crypto.DeriveEntityAccount(0)))

	receipt = h.apply(carol, encodeCall(t, ModuleStaking, "dao_claim_rewards", DaoClaimArgs{DaoID: 0, Era: 1}))
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, staking.ErrRewardAlreadyClaimed.Error())
}

func TestRewardPotBelowExistentialDeposit(t *testing.T) {
	params := testParams()
	params.ExistentialDeposit = big.NewInt(300)
	params.Rewards = rewards.Config{Schedule: []rewards.EmissionStep{{StartEra: 1, Amount: big.NewInt(100)}}}
	h := newHarness(t, params)
	pot := crypto.ModuleAccount(staking.PotTag)

	first := h.block(Extrinsic{Signer: bob, Call: encodeCall(t, ModuleStaking, "stake", StakeArgs{DaoID: 0, Value: big.NewInt(500)})})
	require.True(t, first.Receipts[0].Success, first.Receipts[0].Error)
	require.Equal(t, big.NewInt(20), first.Issued)
	for i := 0; i < 4; i++ {
		require.Equal(t, big.NewInt(20), h.block().Issued)
	}
	require.Equal(t, big.NewInt(100), h.free(bank.AssetNative, pot))
	require.True(t, h.block().NewEra)

	// Each payout leaves the pot below the existential deposit; the other
	// claimant is still paid.
	receipt := h.apply(bob, encodeCall(t, ModuleStaking, "staker_claim_rewards", DaoArgs{DaoID: 0}))
	require.True(t, receipt.Success, receipt.Error)
	require.Equal(t, big.NewInt(100_050), h.free(bank.AssetNative, bob))
	require.Equal(t, big.NewInt(90), h.free(bank.AssetNative, pot))

	receipt = h.apply(carol, encodeCall(t, ModuleStaking, "dao_claim_rewards", DaoClaimArgs{DaoID: 0, Era: 1}))
	require.True(t, receipt.Success, receipt.Error)
	require.Equal(t, big.NewInt(10_000), h.free(bank.AssetNative, crypto.DeriveEntityAccount(0)))
	require.Equal(t, big.NewInt(60), h.free(bank.AssetNative, pot))
}

func TestUnregisterQueueUsesLeftoverWeight(t *testing.T) {
	h := newHarness(t, testParams())
	stake := func(value int64) []byte {
		return encodeCall(t, ModuleStaking, "stake", StakeArgs{DaoID: 1, Value: big.NewInt(value)})
	}
	res := h.block(
		Extrinsic{Signer: alice, Call: stake(100)},
		Extrinsic{Signer: bob, Call: stake(100)},
		Extrinsic{Signer: carol, Call: stake(100)},
	)
	for _, receipt := range res.Receipts {
		require.True(t, receipt.Success, receipt.Error)
	}

	// Carol alone meets DAO 1's support threshold, so the proposal runs
	// right away as the DAO.
	unregister := encodeCall(t, ModuleStaking, "unregister_dao", nil)
	res = h.block(Extrinsic{Signer: carol, Call: encodeCall(t, ModuleDao, "operate_multisig", OperateMultisigArgs{DaoID: 1, Call: unregister})})
	require.True(t, res.Receipts[0].Success, res.Receipts[0].Error)
	require.Equal(t, "true", findEvent(res.Receipts[0].Events, events.TypeMultisigExecuted).Attr("success"))

	// Leftover budget is just under 20M; half of it covers two unstakes.
	require.Equal(t, staking.StepContinue, res.Unregister.Status)
	require.Equal(t, uint32(2), res.Unregister.Processed)
	require.Equal(t, uint32(1), res.Unregister.Remaining)
	_, err := h.rt.Registration(1)
	require.ErrorIs(t, err, staking.ErrNotRegistered)
	depth, err := h.rt.UnregisterQueueLen()
	require.NoError(t, err)
	require.Equal(t, uint64(1), depth)

	res = h.block()
	require.Equal(t, staking.StepDone, res.Unregister.Status)
	require.Equal(t, uint32(1), res.Unregister.Processed)

	res = h.block()
	require.Equal(t, staking.StepIdle, res.Unregister.Status)

	for _, who := range [][20]byte{alice, bob, carol} {
		ledger, err := h.rt.Ledger(who)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(100), staking.SumChunks(ledger.Unbonding))
		info, err := h.rt.StakerInfo(1, who)
		require.NoError(t, err)
		require.Equal(t, 0, info.Latest().Sign())
	}
}

func TestBlockFullDefersExtrinsics(t *testing.T) {
	params := testParams()
	params.BlockWeightLimit = hookWeight + 70_000
	params.Staking.UnstakeWeight = 1_000
	h := newHarness(t, params)

	transfer := encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(1)})
	exts := []Extrinsic{{Signer: alice, Call: transfer}, {Signer: alice, Call: transfer}, {Signer: carol, Call: transfer}}
	result, deferred, err := h.rt.ProcessBlock(h.ctx, 1, exts)
	require.NoError(t, err)
	require.Len(t, result.Receipts, 2)
	require.Equal(t, []Extrinsic{{Signer: carol, Call: transfer}}, deferred)
	require.Equal(t, hookWeight+60_000, result.Weight)
}

func TestRuntimeLifecycle(t *testing.T) {
	h := newHarness(t, testParams())

	_, err := h.rt.ApplyExtrinsic(h.ctx, Extrinsic{Signer: alice})
	require.ErrorIs(t, err, ErrNoBlock)
	_, err = h.rt.FinalizeBlock(h.ctx)
	require.ErrorIs(t, err, ErrNoBlock)

	require.NoError(t, h.rt.InitializeBlock(h.ctx, 1))
	require.ErrorIs(t, h.rt.InitializeBlock(h.ctx, 2), ErrBlockInProgress)
	_, err = h.rt.FinalizeBlock(h.ctx)
	require.NoError(t, err)
	h.height = 1
	h.block()
	require.Equal(t, uint64(2), h.rt.Height())

	reopened, err := New(h.db, testParams())
	require.NoError(t, err)
	require.Equal(t, uint64(2), reopened.Height())
	err = reopened.InitializeBlock(h.ctx, 2)
	require.True(t, errors.Is(err, ErrHeightNotIncreasing))

	era, err := reopened.CurrentEra()
	require.NoError(t, err)
	require.Equal(t, uint32(1), era)
	require.NotEmpty(t, h.sink.events)
}

func TestWeightBound(t *testing.T) {
	inner, err := dispatch.NewCall(ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(1)})
	require.NoError(t, err)
	encodedInner, err := inner.Encode()
	require.NoError(t, err)

	sudo, err := dispatch.NewCall(ModuleSudo, "sudo", SudoArgs{Call: encodedInner})
	require.NoError(t, err)
	w, err := weightBound(sudo, 0)
	require.NoError(t, err)
	require.Equal(t, dispatch.Weight(35_000), w)

	operate, err := dispatch.NewCall(ModuleDao, "operate_multisig", OperateMultisigArgs{Call: []byte{0x01}})
	require.NoError(t, err)
	w, err = weightBound(operate, 0)
	require.NoError(t, err)
	require.Equal(t, dispatch.Weight(90_000), w)

	unknown := &dispatch.Call{Module: "x", Method: "y"}
	_, err = weightBound(unknown, 0)
	require.ErrorIs(t, err, dispatch.ErrUnknownCall)
}

func TestBlockRootsCommitToExtrinsics(t *testing.T) {
	h := newHarness(t, testParams())
	empty := h.block()
	require.Equal(t, [32]byte(trie.EmptyRoot), empty.ExtrinsicsRoot)
	require.Equal(t, [32]byte(trie.EmptyRoot), empty.ReceiptsRoot)

	ok := encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: big.NewInt(1)})
	broke := encodeCall(t, ModuleBank, "transfer", BankTransferArgs{To: bob, Amount: new(big.Int).Lsh(big.NewInt(1), 100)})
	first := h.block(Extrinsic{Signer: alice, Call: ok}, Extrinsic{Signer: alice, Call: broke})
	require.True(t, first.Receipts[0].Success)
	require.False(t, first.Receipts[1].Success)
	require.NotEqual(t, empty.ExtrinsicsRoot, first.ExtrinsicsRoot)

	swapped := h.block(Extrinsic{Signer: alice, Call: broke}, Extrinsic{Signer: alice, Call: ok})
	require.NotEqual(t, first.ExtrinsicsRoot, swapped.ExtrinsicsRoot)
	require.NotEqual(t, first.ReceiptsRoot, swapped.ReceiptsRoot)

	roots, outcomes, err := blockRoots(first.Receipts)
	require.NoError(t, err)
	require.Equal(t, first.ExtrinsicsRoot, roots)
	require.Equal(t, first.ReceiptsRoot, outcomes)
}
