package staking

import (
	"bytes"
	"errors"
	"math/big"
	"sort"
	"strings"
	"testing"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/crypto"
	"daochain/native/bank"
	"daochain/native/common"
)

type stakerKey struct {
	dao  uint32
	addr [20]byte
}

type eraKey struct {
	dao uint32
	era uint32
}

type mockState struct {
	ledgers       map[[20]byte]*AccountLedger
	stakerInfo    map[stakerKey]*StakerInfo
	daoStake      map[eraKey]*DaoStakeInfo
	eras          map[uint32]*EraInfo
	registrations map[uint32]*DaoRegistration
	unregistering map[uint32]bool
	snapshots     map[uint32][][20]byte
	paused        map[string]bool
	currentEra    uint32
	nextEraBlock  uint64
	forceEra      bool
	accumulator   *RewardInfo
	stakerReads   int
}

func newMockState() *mockState {
	return &mockState{
		ledgers:       map[[20]byte]*AccountLedger{},
		stakerInfo:    map[stakerKey]*StakerInfo{},
		daoStake:      map[eraKey]*DaoStakeInfo{},
		eras:          map[uint32]*EraInfo{},
		registrations: map[uint32]*DaoRegistration{},
		unregistering: map[uint32]bool{},
		snapshots:     map[uint32][][20]byte{},
		paused:        map[string]bool{},
	}
}

func (m *mockState) StakingLedger(addr [20]byte) (*AccountLedger, error) {
	return m.ledgers[addr], nil
}

func (m *mockState) StakingPutLedger(addr [20]byte, ledger *AccountLedger) error {
	if ledger.IsEmpty() {
		delete(m.ledgers, addr)
		return nil
	}
	m.ledgers[addr] = ledger
	return nil
}

func (m *mockState) StakingStakerInfo(daoID uint32, addr [20]byte) (*StakerInfo, error) {
	m.stakerReads++
	info, ok := m.stakerInfo[stakerKey{daoID, addr}]
	if !ok {
		return nil, nil
	}
	clone := &StakerInfo{Stakes: append([]EraStake(nil), info.Stakes...)}
	return clone, nil
}

func (m *mockState) StakingPutStakerInfo(daoID uint32, addr [20]byte, info *StakerInfo) error {
	if info.IsEmpty() {
		delete(m.stakerInfo, stakerKey{daoID, addr})
		return nil
	}
	m.stakerInfo[stakerKey{daoID, addr}] = info
	return nil
}

func (m *mockState) StakingStakers(daoID uint32) ([][20]byte, error) {
	out := [][20]byte{}
	for key := range m.stakerInfo {
		if key.dao == daoID {
			out = append(out, key.addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

func (m *mockState) StakingDaoStake(daoID uint32, era uint32) (*DaoStakeInfo, bool, error) {
	info, ok := m.daoStake[eraKey{daoID, era}]
	if !ok {
		return nil, false, nil
	}
	clone := *info
	clone.Total = new(big.Int).Set(info.Total)
	return &clone, true, nil
}

func (m *mockState) StakingPutDaoStake(daoID uint32, era uint32, info *DaoStakeInfo) error {
	m.daoStake[eraKey{daoID, era}] = info
	return nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneEraInfo(info *EraInfo) *EraInfo {
	return &EraInfo{
		Rewards:     RewardInfo{Dao: cloneAmount(info.Rewards.Dao), Stakers: cloneAmount(info.Rewards.Stakers)},
		Staked:      cloneAmount(info.Staked),
		Locked:      cloneAmount(info.Locked),
		ActiveStake: cloneAmount(info.ActiveStake),
	}
}

func (m *mockState) StakingEraInfo(era uint32) (*EraInfo, bool, error) {
	info, ok := m.eras[era]
	if !ok {
		return nil, false, nil
	}
	return cloneEraInfo(info), true, nil
}

func (m *mockState) StakingPutEraInfo(era uint32, info *EraInfo) error {
	m.eras[era] = cloneEraInfo(info)
	return nil
}

func (m *mockState) StakingRegistration(daoID uint32) (*DaoRegistration, bool, error) {
	reg, ok := m.registrations[daoID]
	return reg, ok, nil
}

func (m *mockState) StakingPutRegistration(reg *DaoRegistration) error {
	m.registrations[reg.DaoID] = reg
	return nil
}

func (m *mockState) StakingDeleteRegistration(daoID uint32) error {
	delete(m.registrations, daoID)
	return nil
}

func (m *mockState) StakingRegisteredDaos() ([]uint32, error) {
	out := []uint32{}
	for id := range m.registrations {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *mockState) StakingCurrentEra() (uint32, error) { return m.currentEra, nil }

func (m *mockState) StakingPutCurrentEra(era uint32) error {
	m.currentEra = era
	return nil
}

func (m *mockState) StakingNextEraStartingBlock() (uint64, error) { return m.nextEraBlock, nil }

func (m *mockState) StakingPutNextEraStartingBlock(height uint64) error {
	m.nextEraBlock = height
	return nil
}

func (m *mockState) StakingForceEra() (bool, error) { return m.forceEra, nil }

func (m *mockState) StakingPutForceEra(force bool) error {
	m.forceEra = force
	return nil
}

func (m *mockState) StakingAccumulator() (*RewardInfo, error) { return m.accumulator, nil }

func (m *mockState) StakingPutAccumulator(acc *RewardInfo) error {
	m.accumulator = acc
	return nil
}

func (m *mockState) StakingUnregistering(daoID uint32) (bool, error) {
	return m.unregistering[daoID], nil
}

func (m *mockState) StakingPutUnregistering(daoID uint32, pending bool) error {
	if !pending {
		delete(m.unregistering, daoID)
		return nil
	}
	m.unregistering[daoID] = true
	return nil
}

func (m *mockState) StakingPutUnregisterStakers(daoID uint32, stakers [][20]byte) error {
	m.snapshots[daoID] = append([][20]byte(nil), stakers...)
	return nil
}

func (m *mockState) StakingUnregisterStakers(daoID uint32, offset, limit uint32) ([][20]byte, uint32, error) {
	list := m.snapshots[daoID]
	total := uint32(len(list))
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if total-offset > limit {
		end = offset + limit
	}
	return append([][20]byte(nil), list[offset:end]...), total, nil
}

func (m *mockState) StakingDropUnregisterStakers(daoID uint32, _, end uint32) error {
	if end >= uint32(len(m.snapshots[daoID])) {
		delete(m.snapshots, daoID)
	}
	return nil
}

func (m *mockState) IsPaused(module string) bool { return m.paused[module] }

func (m *mockState) SetPaused(module string, paused bool) error {
	m.paused[module] = paused
	return nil
}

var errMockInsufficient = errors.New("mock: insufficient balance")

type mockCurrency struct {
	free     map[[20]byte]*big.Int
	reserved map[[20]byte]*big.Int
	locks    map[[20]byte]*big.Int
	ed       *big.Int
}

func newMockCurrency() *mockCurrency {
	return &mockCurrency{
		free:     map[[20]byte]*big.Int{},
		reserved: map[[20]byte]*big.Int{},
		locks:    map[[20]byte]*big.Int{},
		ed:       big.NewInt(1),
	}
}

func amountOf(m map[[20]byte]*big.Int, addr [20]byte) *big.Int {
	if v, ok := m[addr]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (m *mockCurrency) FreeBalance(_ bank.Asset, addr [20]byte) (*big.Int, error) {
	return amountOf(m.free, addr), nil
}

func (m *mockCurrency) ExistentialDeposit() *big.Int { return new(big.Int).Set(m.ed) }

func (m *mockCurrency) Deposit(_ bank.Asset, addr [20]byte, amount *big.Int) error {
	m.free[addr] = new(big.Int).Add(amountOf(m.free, addr), amount)
	return nil
}

func (m *mockCurrency) usable(addr [20]byte) *big.Int {
	return new(big.Int).Sub(amountOf(m.free, addr), amountOf(m.locks, addr))
}

func (m *mockCurrency) Transfer(_ bank.Asset, from, to [20]byte, amount *big.Int) error {
	if m.usable(from).Cmp(amount) < 0 {
		return errMockInsufficient
	}
	m.free[from] = new(big.Int).Sub(amountOf(m.free, from), amount)
	m.free[to] = new(big.Int).Add(amountOf(m.free, to), amount)
	return nil
}

func (m *mockCurrency) Reserve(addr [20]byte, amount *big.Int) error {
	if m.usable(addr).Cmp(amount) < 0 {
		return errMockInsufficient
	}
	m.free[addr] = new(big.Int).Sub(amountOf(m.free, addr), amount)
	m.reserved[addr] = new(big.Int).Add(amountOf(m.reserved, addr), amount)
	return nil
}

func (m *mockCurrency) Unreserve(addr [20]byte, amount *big.Int) (*big.Int, error) {
	released := amountOf(m.reserved, addr)
	if released.Cmp(amount) > 0 {
		released.Set(amount)
	}
	m.reserved[addr] = new(big.Int).Sub(amountOf(m.reserved, addr), released)
	m.free[addr] = new(big.Int).Add(amountOf(m.free, addr), released)
	return released, nil
}

func (m *mockCurrency) SetLock(_ string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		delete(m.locks, addr)
		return nil
	}
	m.locks[addr] = new(big.Int).Set(amount)
	return nil
}

type mockQueue struct {
	items [][]byte
}

func (q *mockQueue) Push(payload []byte) error {
	q.items = append(q.items, append([]byte(nil), payload...))
	return nil
}

func (q *mockQueue) Pop() ([]byte, bool, error) {
	if len(q.items) == 0 {
		return nil, false, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true, nil
}

func (q *mockQueue) Peek() ([]byte, bool, error) {
	if len(q.items) == 0 {
		return nil, false, nil
	}
	return q.items[0], true, nil
}


func (q *mockQueue) Len() (uint64, error) { return uint64(len(q.items)), nil }

func testParams() Params {
	params := DefaultParams()
	params.BlocksPerEra = 10
	params.UnbondingPeriod = 3
	params.MaxUnlocking = 2
	params.MaxStakersPerDao = 3
	params.MinimumStakingAmount = big.NewInt(10)
	params.StakeThresholdForActiveDao = big.NewInt(150)
	params.RegisterDeposit = big.NewInt(100)
	params.MaxNameLength = 8
	params.MaxDescriptionLength = 16
	params.MaxImageLength = 8
	params.MaxInlineUnregister = 2
	params.UnstakeWeight = 100
	params.UnregisterBudgetFraction = common.PerbillFromPercent(50)
	return params
}

type harness struct {
	engine   *Engine
	state    *mockState
	currency *mockCurrency
	queue    *mockQueue
	events   *events.Buffer
	height   uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state:    newMockState(),
		currency: newMockCurrency(),
		queue:    &mockQueue{},
		events:   &events.Buffer{},
	}
	h.engine = NewEngine()
	h.engine.SetParams(testParams())
	h.engine.SetState(h.state)
	h.engine.SetCurrency(h.currency)
	h.engine.SetQueue(h.queue)
	h.engine.SetEmitter(h.events)
	h.nextEra(t)
	if h.era() != 1 {
		t.Fatalf("expected genesis era 1, got %d", h.era())
	}
	h.events.Reset()
	return h
}

// nextEra advances the block height to the next era boundary.
func (h *harness) nextEra(t *testing.T) {
	t.Helper()
	h.height++
	if h.state.nextEraBlock > h.height {
		h.height = h.state.nextEraBlock
	}
	started, err := h.engine.OnInitialize(h.height)
	if err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if !started {
		t.Fatalf("expected a new era at height %d", h.height)
	}
}

func (h *harness) era() uint32 { return h.state.currentEra }

func (h *harness) fund(addr [20]byte, amount int64) {
	h.currency.free[addr] = big.NewInt(amount)
}

func (h *harness) register(t *testing.T, daoID uint32) {
	t.Helper()
	h.fund(crypto.DeriveEntityAccount(daoID), 1_000)
	if err := h.engine.RegisterDao(dispatch.Entity(daoID), DaoInformation{Name: []byte("dao")}); err != nil {
		t.Fatalf("register dao %d: %v", daoID, err)
	}
}

func (h *harness) stake(t *testing.T, staker [20]byte, daoID uint32, amount int64) {
	t.Helper()
	if _, ok := h.currency.free[staker]; !ok {
		h.fund(staker, 10_000)
	}
	staked, err := h.engine.Stake(staker, daoID, big.NewInt(amount))
	if err != nil {
		t.Fatalf("stake %d: %v", amount, err)
	}
	if staked.Int64() != amount {
		t.Fatalf("expected to stake %d, staked %s", amount, staked)
	}
}

func (h *harness) latest(daoID uint32, staker [20]byte) int64 {
	info, _ := h.state.StakingStakerInfo(daoID, staker)
	if info == nil {
		return 0
	}
	return info.Latest().Int64()
}

func (h *harness) daoTotal(daoID uint32) *DaoStakeInfo {
	info, ok := h.state.daoStake[eraKey{daoID, h.era()}]
	if !ok {
		return NewDaoStakeInfo()
	}
	return info
}

func (h *harness) expectEvents(t *testing.T, want ...string) {
	t.Helper()
	got := []string{}
	for _, evt := range h.events.Events() {
		got = append(got, evt.Type)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func expectAmount(t *testing.T, what string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Int64() != want {
		t.Fatalf("%s: expected %d, got %v", what, want, got)
	}
}

func expectStep(t *testing.T, step StepResult, status StepStatus, processed, remaining uint32) {
	t.Helper()
	if step.Status != status || step.Processed != processed || step.Remaining != remaining {
		t.Fatalf("expected step %v processed=%d remaining=%d, got %v processed=%d remaining=%d",
			status, processed, remaining, step.Status, step.Processed, step.Remaining)
	}
}

var (
	alice = [20]byte{0xa1}
	bob   = [20]byte{0xb0}
	carol = [20]byte{0xca}
	dave  = [20]byte{0xda}
)

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params: %v", err)
	}
	params := DefaultParams()
	params.BlocksPerEra = 0
	if err := params.Validate(); err == nil {
		t.Fatalf("expected zero era length to be rejected")
	}
	params = DefaultParams()
	params.MinimumStakingAmount = nil
	if err := params.Validate(); err == nil {
		t.Fatalf("expected missing minimum stake to be rejected")
	}
}

func TestRegisterDaoReservesDeposit(t *testing.T) {
	h := newHarness(t)
	account := crypto.DeriveEntityAccount(7)
	h.fund(account, 1_000)

	if err := h.engine.RegisterDao(dispatch.Signed(alice), DaoInformation{}); !errors.Is(err, dispatch.ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}
	if err := h.engine.RegisterDao(dispatch.Entity(7), DaoInformation{Name: []byte("much too long")}); !errors.Is(err, ErrMaxNameExceeded) {
		t.Fatalf("expected ErrMaxNameExceeded, got %v", err)
	}

	if err := h.engine.RegisterDao(dispatch.Entity(7), DaoInformation{Name: []byte("seven")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	expectAmount(t, "reserved deposit", amountOf(h.currency.reserved, account), 100)
	expectAmount(t, "free balance", amountOf(h.currency.free, account), 900)
	if err := h.engine.RegisterDao(dispatch.Entity(7), DaoInformation{}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	if err := h.engine.ChangeDaoInformation(dispatch.Entity(7), DaoInformation{Name: []byte("renamed")}); err != nil {
		t.Fatalf("change info: %v", err)
	}
	reg, err := h.engine.Registration(7)
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	if !bytes.Equal(reg.Name, []byte("renamed")) || reg.Account != account {
		t.Fatalf("unexpected registration %q %x", reg.Name, reg.Account)
	}

	if err := h.engine.ChangeDaoInformation(dispatch.Entity(8), DaoInformation{}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	h.expectEvents(t, events.TypeStakingDaoRegistered, events.TypeStakingDaoInfoChanged)
}

func TestStakeClampsToAvailableBalance(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.fund(alice, 500)

	staked, err := h.engine.Stake(alice, 0, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	expectAmount(t, "staked", staked, 499)

	ledger, err := h.engine.Ledger(alice)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	expectAmount(t, "ledger locked", ledger.Locked, 499)
	expectAmount(t, "currency lock", h.currency.locks[alice], 499)

	if _, err := h.engine.Stake(alice, 0, big.NewInt(1)); !errors.Is(err, ErrStakingNothing) {
		t.Fatalf("expected ErrStakingNothing, got %v", err)
	}

	total := h.daoTotal(0)
	expectAmount(t, "dao total", total.Total, 499)
	if total.NumberOfStakers != 1 || !total.Active {
		t.Fatalf("expected one staker on an active dao, got %+v", total)
	}

	info, ok, err := h.engine.EraInfo(h.era())
	if err != nil || !ok {
		t.Fatalf("era info: ok=%v err=%v", ok, err)
	}
	expectAmount(t, "era staked", info.Staked, 499)
	expectAmount(t, "era locked", info.Locked, 499)
}

func TestStakeBounds(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.fund(alice, 1_000)

	if _, err := h.engine.Stake(alice, 0, big.NewInt(5)); !errors.Is(err, ErrInsufficientStakingAmount) {
		t.Fatalf("expected ErrInsufficientStakingAmount, got %v", err)
	}
	if _, err := h.engine.Stake(alice, 9, big.NewInt(50)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	h.stake(t, alice, 0, 10)
	h.stake(t, bob, 0, 10)
	h.stake(t, carol, 0, 10)
	h.fund(dave, 1_000)
	if _, err := h.engine.Stake(dave, 0, big.NewInt(10)); !errors.Is(err, ErrMaxStakersReached) {
		t.Fatalf("expected ErrMaxStakersReached, got %v", err)
	}

	// existing stakers may keep adding
	h.stake(t, alice, 0, 5)
	if got := h.latest(0, alice); got != 15 {
		t.Fatalf("expected alice at 15, got %d", got)
	}
	if got := h.daoTotal(0).NumberOfStakers; got != 3 {
		t.Fatalf("expected 3 stakers, got %d", got)
	}
}

func TestUnstakeNeverLeavesDust(t *testing.T) {
	e := NewEngine()
	e.SetParams(testParams())
	minimum := e.params.MinimumStakingAmount.Int64()
	for _, staked := range []int64{10, 11, 50, 100} {
		for request := int64(1); request <= 120; request++ {
			info := &StakerInfo{}
			if err := info.Stake(1, big.NewInt(staked)); err != nil {
				t.Fatalf("stake: %v", err)
			}
			daoStake := &DaoStakeInfo{Total: big.NewInt(staked), NumberOfStakers: 1}

			amount, err := e.unstakeFrom(info, daoStake, big.NewInt(request), 2)
			if err != nil {
				t.Fatalf("staked %d request %d: %v", staked, request, err)
			}
			remaining := staked - amount.Int64()
			if remaining != 0 && remaining < minimum {
				t.Fatalf("staked %d request %d left %d", staked, request, remaining)
			}
			if amount.Int64() > staked || amount.Int64() < min(request, staked) {
				t.Fatalf("staked %d request %d unstaked %s", staked, request, amount)
			}
			if info.Latest().Int64() != remaining || daoStake.Total.Int64() != remaining {
				t.Fatalf("staked %d request %d: history %s total %s, want %d", staked, request, info.Latest(), daoStake.Total, remaining)
			}
			if remaining == 0 && daoStake.NumberOfStakers != 0 {
				t.Fatalf("staked %d request %d: exited staker still counted", staked, request)
			}
		}
	}
}

func TestUnstakeThenWithdrawAfterUnbonding(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 100)
	h.nextEra(t)

	unstaked, err := h.engine.Unstake(alice, 0, big.NewInt(100))
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	expectAmount(t, "unstaked", unstaked, 100)
	unstakeEra := h.era()
	if h.latest(0, alice) != 0 || h.daoTotal(0).NumberOfStakers != 0 {
		t.Fatalf("expected alice to have left the dao")
	}

	for h.era() < unstakeEra+3 {
		if _, err := h.engine.WithdrawUnstaked(alice); !errors.Is(err, ErrNothingToWithdraw) {
			t.Fatalf("era %d: expected ErrNothingToWithdraw, got %v", h.era(), err)
		}
		h.nextEra(t)
	}

	withdrawn, err := h.engine.WithdrawUnstaked(alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	expectAmount(t, "withdrawn", withdrawn, 100)
	if _, locked := h.currency.locks[alice]; locked {
		t.Fatalf("expected the staking lock to be removed")
	}
	ledger, err := h.engine.Ledger(alice)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if !ledger.IsEmpty() {
		t.Fatalf("expected empty ledger, got %+v", ledger)
	}

	info, _, err := h.engine.EraInfo(h.era())
	if err != nil {
		t.Fatalf("era info: %v", err)
	}
	if info.Locked.Sign() != 0 || info.Staked.Sign() != 0 {
		t.Fatalf("expected nothing staked or locked, got %s/%s", info.Staked, info.Locked)
	}

	if _, err := h.engine.WithdrawUnstaked(alice); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected ErrNothingToWithdraw, got %v", err)
	}
}

func TestUnstakeChunkBound(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 100)

	for i := 0; i < 2; i++ {
		if _, err := h.engine.Unstake(alice, 0, big.NewInt(10)); err != nil {
			t.Fatalf("unstake %d: %v", i, err)
		}
	}
	ledger, _ := h.engine.Ledger(alice)
	if len(ledger.Unbonding) != 1 {
		t.Fatalf("expected same-era chunks to merge, got %d", len(ledger.Unbonding))
	}
	expectAmount(t, "merged chunk", ledger.Unbonding[0].Amount, 20)

	h.nextEra(t)
	if _, err := h.engine.Unstake(alice, 0, big.NewInt(10)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	h.nextEra(t)
	if _, err := h.engine.Unstake(alice, 0, big.NewInt(10)); !errors.Is(err, ErrTooManyUnlockingChunks) {
		t.Fatalf("expected ErrTooManyUnlockingChunks, got %v", err)
	}
	if got := h.latest(0, alice); got != 70 {
		t.Fatalf("expected alice at 70, got %d", got)
	}

	if _, err := h.engine.Unstake(alice, 0, big.NewInt(0)); !errors.Is(err, ErrUnstakingNothing) {
		t.Fatalf("expected ErrUnstakingNothing, got %v", err)
	}
	if _, err := h.engine.Unstake(bob, 0, big.NewInt(10)); !errors.Is(err, ErrNotStakedDao) {
		t.Fatalf("expected ErrNotStakedDao, got %v", err)
	}
}

func TestMoveStakeKeepsLedger(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.register(t, 1)
	h.stake(t, alice, 0, 100)

	moved, err := h.engine.MoveStake(alice, 0, big.NewInt(40), 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	expectAmount(t, "moved", moved, 40)
	if h.latest(0, alice) != 60 || h.latest(1, alice) != 40 {
		t.Fatalf("expected 60/40 split, got %d/%d", h.latest(0, alice), h.latest(1, alice))
	}
	if got := h.daoTotal(1).NumberOfStakers; got != 1 {
		t.Fatalf("expected one staker on the target, got %d", got)
	}

	// the remainder would fall below the minimum so all of it moves
	moved, err = h.engine.MoveStake(alice, 0, big.NewInt(55), 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	expectAmount(t, "moved", moved, 60)
	if got := h.daoTotal(0).NumberOfStakers; got != 0 {
		t.Fatalf("expected the source to be empty, got %d stakers", got)
	}
	expectAmount(t, "target total", h.daoTotal(1).Total, 100)

	ledger, _ := h.engine.Ledger(alice)
	expectAmount(t, "ledger locked", ledger.Locked, 100)
	if len(ledger.Unbonding) != 0 {
		t.Fatalf("moving stake must not unbond, got %d chunks", len(ledger.Unbonding))
	}

	if _, err := h.engine.MoveStake(alice, 1, big.NewInt(10), 1); !errors.Is(err, ErrMoveStakeToSameDao) {
		t.Fatalf("expected ErrMoveStakeToSameDao, got %v", err)
	}
	if _, err := h.engine.MoveStake(alice, 1, big.NewInt(10), 5); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRewardsSplitByEra(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.register(t, 1)
	h.stake(t, alice, 0, 200)
	h.stake(t, bob, 0, 100)
	h.stake(t, carol, 1, 100)

	if err := h.engine.Rewards(big.NewInt(1_000)); err != nil {
		t.Fatalf("rewards: %v", err)
	}
	pot := h.engine.PotAccount()
	expectAmount(t, "pot", amountOf(h.currency.free, pot), 1_000)

	finished := h.era()
	if _, err := h.engine.DaoClaimRewards(0, finished); !errors.Is(err, ErrIncorrectEra) {
		t.Fatalf("expected ErrIncorrectEra for the running era, got %v", err)
	}
	h.nextEra(t)

	info, ok, err := h.engine.EraInfo(finished)
	if err != nil || !ok {
		t.Fatalf("era info: ok=%v err=%v", ok, err)
	}
	expectAmount(t, "dao pool", info.Rewards.Dao, 500)
	expectAmount(t, "staker pool", info.Rewards.Stakers, 500)
	expectAmount(t, "era staked", info.Staked, 400)
	expectAmount(t, "active stake", info.ActiveStake, 300)

	next, ok, err := h.engine.EraInfo(h.era())
	if err != nil || !ok {
		t.Fatalf("next era info: ok=%v err=%v", ok, err)
	}
	if next.Rewards.Dao.Sign() != 0 {
		t.Fatalf("new era must start without rewards, got %s", next.Rewards.Dao)
	}
	expectAmount(t, "carried stake", next.Staked, 400)

	daoAccount := crypto.DeriveEntityAccount(0)
	before := amountOf(h.currency.free, daoAccount).Int64()
	reward, err := h.engine.DaoClaimRewards(0, finished)
	if err != nil {
		t.Fatalf("dao claim: %v", err)
	}
	expectAmount(t, "dao reward", reward, 500)
	expectAmount(t, "dao balance", amountOf(h.currency.free, daoAccount), before+500)
	if _, err := h.engine.DaoClaimRewards(0, finished); !errors.Is(err, ErrRewardAlreadyClaimed) {
		t.Fatalf("expected ErrRewardAlreadyClaimed, got %v", err)
	}

	// below the activity threshold: nothing from the dao pool
	reward, err = h.engine.DaoClaimRewards(1, finished)
	if err != nil {
		t.Fatalf("inactive dao claim: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("inactive dao received %s", reward)
	}

	cases := []struct {
		staker [20]byte
		dao    uint32
		want   int64
	}{
		{alice, 0, 249},
		{bob, 0, 124},
		{carol, 1, 125},
	}
	for _, tc := range cases {
		era, reward, err := h.engine.StakerClaimRewards(tc.staker, tc.dao)
		if err != nil {
			t.Fatalf("staker %x claim: %v", tc.staker[:1], err)
		}
		if era != finished {
			t.Fatalf("staker %x claimed era %d, want %d", tc.staker[:1], era, finished)
		}
		expectAmount(t, "staker reward", reward, tc.want)
		if got := amountOf(h.currency.free, tc.staker).Int64() - 10_000; got != tc.want {
			t.Fatalf("staker %x balance grew by %d, want %d", tc.staker[:1], got, tc.want)
		}

		if _, _, err := h.engine.StakerClaimRewards(tc.staker, tc.dao); !errors.Is(err, ErrIncorrectEra) {
			t.Fatalf("staker %x: expected ErrIncorrectEra, got %v", tc.staker[:1], err)
		}
	}
	expectAmount(t, "pot remainder", amountOf(h.currency.free, pot), 2)

	h.nextEra(t)
	era, reward, err := h.engine.StakerClaimRewards(alice, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if era != finished+1 || reward.Sign() != 0 {
		t.Fatalf("expected empty claim of era %d, got %s in era %d", finished+1, reward, era)
	}

	if _, _, err := h.engine.StakerClaimRewards(dave, 0); !errors.Is(err, ErrNoStakeAvailable) {
		t.Fatalf("expected ErrNoStakeAvailable, got %v", err)
	}
}

func TestHaltSuspendsStaking(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)

	if err := h.engine.HaltUnhalt(dispatch.Signed(alice), true); !errors.Is(err, dispatch.ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}
	if err := h.engine.HaltUnhalt(dispatch.Root(), true); err != nil {
		t.Fatalf("halt: %v", err)
	}
	if err := h.engine.HaltUnhalt(dispatch.Root(), true); !errors.Is(err, ErrNoHaltChange) {
		t.Fatalf("expected ErrNoHaltChange, got %v", err)
	}
	if !h.engine.IsHalted() {
		t.Fatalf("expected the engine to report halted")
	}

	h.fund(alice, 1_000)
	_, err := h.engine.Stake(alice, 0, big.NewInt(100))
	if !errors.Is(err, ErrHalted) || !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected ErrHalted wrapping ErrModulePaused, got %v", err)
	}
	if _, err := h.engine.UnregisterDao(dispatch.Entity(0)); !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}

	era := h.era()
	started, err := h.engine.OnInitialize(h.state.nextEraBlock + 100)
	if err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if started || h.era() != era {
		t.Fatalf("era advanced while halted: started=%v era=%d", started, h.era())
	}

	if err := h.engine.HaltUnhalt(dispatch.Root(), false); err != nil {
		t.Fatalf("unhalt: %v", err)
	}
	h.nextEra(t)
	if h.era() != era+1 {
		t.Fatalf("expected era %d after unhalt, got %d", era+1, h.era())
	}
	h.stake(t, alice, 0, 100)
}

func TestForceNewEra(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ForceNewEra(dispatch.Signed(alice)); !errors.Is(err, dispatch.ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}

	started, err := h.engine.OnInitialize(h.height + 1)
	if err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if started {
		t.Fatalf("era started before its boundary")
	}

	if err := h.engine.ForceNewEra(dispatch.Root()); err != nil {
		t.Fatalf("force: %v", err)
	}
	started, err = h.engine.OnInitialize(h.height + 1)
	if err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if !started || h.era() != 2 {
		t.Fatalf("expected forced era 2, got started=%v era=%d", started, h.era())
	}
	if h.state.forceEra {
		t.Fatalf("expected the force flag to be cleared")
	}
}

func TestUnregisterDaoInline(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 100)
	h.stake(t, bob, 0, 50)
	account := crypto.DeriveEntityAccount(0)

	if _, err := h.engine.UnregisterDao(dispatch.Signed(alice)); !errors.Is(err, dispatch.ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}

	queued, err := h.engine.UnregisterDao(dispatch.Entity(0))
	if err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if queued {
		t.Fatalf("two stakers must be unstaked inline")
	}

	if _, err := h.engine.Registration(0); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if amountOf(h.currency.reserved, account).Sign() != 0 {
		t.Fatalf("expected the deposit to be released")
	}
	expectAmount(t, "dao free balance", amountOf(h.currency.free, account), 1_000)
	if h.daoTotal(0).Total.Sign() != 0 || h.latest(0, alice) != 0 || h.latest(0, bob) != 0 {
		t.Fatalf("expected every stake removed")
	}

	ledger, _ := h.engine.Ledger(alice)
	if len(ledger.Unbonding) != 1 || ledger.Unbonding[0].UnlockEra != h.era()+3 {
		t.Fatalf("expected one chunk unlocking in era %d, got %+v", h.era()+3, ledger.Unbonding)
	}
	expectAmount(t, "ledger locked", ledger.Locked, 100)

	info, _, _ := h.engine.EraInfo(h.era())
	if info.Staked.Sign() != 0 {
		t.Fatalf("expected nothing staked, got %s", info.Staked)
	}
	expectAmount(t, "era locked", info.Locked, 150)

	if _, err := h.engine.Stake(alice, 0, big.NewInt(100)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered on stake, got %v", err)
	}
	if _, err := h.engine.UnregisterDao(dispatch.Entity(0)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered on unregister, got %v", err)
	}
	if err := h.engine.RegisterDao(dispatch.Entity(0), DaoInformation{}); err != nil {
		t.Fatalf("register again: %v", err)
	}
}

func TestUnregisterDaoQueued(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 100)
	h.stake(t, bob, 0, 100)
	h.stake(t, carol, 0, 100)

	queued, err := h.engine.UnregisterDao(dispatch.Entity(0))
	if err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if !queued || len(h.queue.items) != 1 || !h.state.unregistering[0] {
		t.Fatalf("expected a queued unregistration, got queued=%v items=%d", queued, len(h.queue.items))
	}
	if err := h.engine.RegisterDao(dispatch.Entity(0), DaoInformation{}); !errors.Is(err, ErrUnregisterInProgress) {
		t.Fatalf("expected ErrUnregisterInProgress, got %v", err)
	}

	// half of 100 cannot pay for one unstake
	step, err := h.engine.ProcessUnregisterQueue(100)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	expectStep(t, step, StepYield, 0, 3)
	if len(h.queue.items) != 1 {
		t.Fatalf("yield must leave the message queued")
	}

	if err := h.engine.HaltUnhalt(dispatch.Root(), true); err != nil {
		t.Fatalf("halt: %v", err)
	}
	step, err = h.engine.ProcessUnregisterQueue(10_000)
	if err != nil {
		t.Fatalf("halted step: %v", err)
	}
	if step.Status != StepYield {
		t.Fatalf("expected halted step to yield, got %v", step.Status)
	}
	if err := h.engine.HaltUnhalt(dispatch.Root(), false); err != nil {
		t.Fatalf("unhalt: %v", err)
	}

	step, err = h.engine.ProcessUnregisterQueue(400)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	expectStep(t, step, StepContinue, 2, 1)
	if step.Weight != 200 {
		t.Fatalf("expected weight 200, got %d", step.Weight)
	}
	if len(h.queue.items) != 1 {
		t.Fatalf("expected the message to be requeued")
	}
	if h.latest(0, alice) != 0 || h.latest(0, bob) != 0 || h.latest(0, carol) != 100 {
		t.Fatalf("expected only the first batch unstaked")
	}

	step, err = h.engine.ProcessUnregisterQueue(400)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	expectStep(t, step, StepDone, 1, 0)
	if len(h.queue.items) != 0 || h.state.unregistering[0] {
		t.Fatalf("expected the unregistration to be finished")
	}
	if h.latest(0, carol) != 0 {
		t.Fatalf("expected carol unstaked")
	}

	step, err = h.engine.ProcessUnregisterQueue(400)
	if err != nil {
		t.Fatalf("idle step: %v", err)
	}
	if step.Status != StepIdle {
		t.Fatalf("expected an idle queue, got %v", step.Status)
	}

	if err := h.engine.RegisterDao(dispatch.Entity(0), DaoInformation{}); err != nil {
		t.Fatalf("register again: %v", err)
	}
}

func TestUnregisterStepReadsStayBounded(t *testing.T) {
	h := newHarness(t)
	params := testParams()
	params.MaxStakersPerDao = 250
	h.engine.SetParams(params)
	h.register(t, 0)

	const count = 200
	stakers := make([][20]byte, count)
	for i := range stakers {
		stakers[i] = [20]byte{0x10, byte(i >> 8), byte(i)}
		h.stake(t, stakers[i], 0, 100)
	}
	// Stakes from a finished era keep every staker in the index after the
	// forced unstake.
	h.nextEra(t)

	queued, err := h.engine.UnregisterDao(dispatch.Entity(0))
	if err != nil || !queued {
		t.Fatalf("unregister: queued=%v err=%v", queued, err)
	}

	steps := 0
	for {
		reads := h.state.stakerReads
		step, err := h.engine.ProcessUnregisterQueue(200)
		if err != nil {
			t.Fatalf("step %d: %v", steps, err)
		}
		if delta := h.state.stakerReads - reads; delta != 1 {
			t.Fatalf("step %d read %d staker records, want 1", steps, delta)
		}
		if step.Processed != 1 || step.Weight != 100 {
			t.Fatalf("step %d: processed %d weight %d", steps, step.Processed, step.Weight)
		}
		steps++
		if step.Status == StepDone {
			break
		}
		expectStep(t, step, StepContinue, 1, uint32(count-steps))
	}
	if steps != count {
		t.Fatalf("expected %d steps, took %d", count, steps)
	}
	if len(h.queue.items) != 0 || len(h.state.snapshots) != 0 || h.state.unregistering[0] {
		t.Fatalf("expected queue, snapshot and flag cleared")
	}
	for i, staker := range stakers {
		if got := h.latest(0, staker); got != 0 {
			t.Fatalf("staker %d still holds %d", i, got)
		}
	}
}

func TestUnregisterSkipsStakersWithoutStake(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 100)
	h.stake(t, bob, 0, 100)
	h.stake(t, carol, 0, 100)
	h.nextEra(t)
	if _, err := h.engine.Unstake(bob, 0, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	h.stake(t, dave, 0, 100)

	queued, err := h.engine.UnregisterDao(dispatch.Entity(0))
	if err != nil || !queued {
		t.Fatalf("unregister: queued=%v err=%v", queued, err)
	}
	if got := len(h.state.snapshots[0]); got != 4 {
		t.Fatalf("expected 4 snapshot entries, got %d", got)
	}

	// alice and bob fill the first batch; only alice had stake left.
	step, err := h.engine.ProcessUnregisterQueue(400)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	expectStep(t, step, StepContinue, 1, 2)
	if step.Weight != 200 {
		t.Fatalf("expected weight 200 for the whole batch, got %d", step.Weight)
	}

	step, err = h.engine.ProcessUnregisterQueue(400)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	expectStep(t, step, StepDone, 2, 0)
	if h.latest(0, carol) != 0 || h.latest(0, dave) != 0 {
		t.Fatalf("expected carol and dave unstaked")
	}
}

func TestTooManyEraStakeValues(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	limit := testParams().MaxEraStakeValues

	for i := uint32(0); i < limit; i++ {
		h.stake(t, alice, 0, 10)
		h.nextEra(t)
	}
	if _, err := h.engine.Stake(alice, 0, big.NewInt(10)); !errors.Is(err, ErrTooManyEraStakeValues) {
		t.Fatalf("expected ErrTooManyEraStakeValues, got %v", err)
	}
	if got := h.latest(0, alice); got != int64(10*limit) {
		t.Fatalf("rejected stake changed the history: %d", got)
	}

	era, _, err := h.engine.StakerClaimRewards(alice, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if era != 1 {
		t.Fatalf("expected to claim era 1, got %d", era)
	}
	h.stake(t, alice, 0, 10)
	if got := h.latest(0, alice); got != int64(10*(limit+1)) {
		t.Fatalf("expected %d after the claim freed a slot, got %d", 10*(limit+1), got)
	}
}

func TestClaimWithoutEraRecord(t *testing.T) {
	h := newHarness(t)
	h.register(t, 0)
	h.stake(t, alice, 0, 200)
	h.nextEra(t)
	delete(h.state.eras, 1)

	if _, _, err := h.engine.StakerClaimRewards(alice, 0); !errors.Is(err, ErrUnknownEraReward) {
		t.Fatalf("expected ErrUnknownEraReward on staker claim, got %v", err)
	}
	if _, err := h.engine.DaoClaimRewards(0, 1); !errors.Is(err, ErrUnknownEraReward) {
		t.Fatalf("expected ErrUnknownEraReward on dao claim, got %v", err)
	}
	info, _ := h.state.StakingStakerInfo(0, alice)
	if info.Stakes[0].Era != 1 {
		t.Fatalf("failed claim advanced the history to era %d", info.Stakes[0].Era)
	}
}

func TestBatchSize(t *testing.T) {
	e := NewEngine()
	e.SetParams(testParams())
	for _, tc := range []struct {
		budget dispatch.Weight
		want   uint32
	}{{0, 0}, {199, 0}, {200, 1}, {1_000, 5}} {
		if got := e.BatchSize(tc.budget); got != tc.want {
			t.Fatalf("BatchSize(%d) = %d, want %d", tc.budget, got, tc.want)
		}
	}
}
