package staking

import (
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/crypto"
	"daochain/native/bank"
	"daochain/native/common"
)

const (
	// ModuleName is the pause key of the staking module.
	ModuleName = "staking"
	// LockID names the base currency lock mirroring AccountLedger.Locked.
	LockID = "daostake"
	// PotTag names the module account holding undistributed rewards.
	PotTag = "staking/pot"
)

type stakingState interface {
	StakingLedger(addr [20]byte) (*AccountLedger, error)
	StakingPutLedger(addr [20]byte, ledger *AccountLedger) error
	StakingStakerInfo(daoID uint32, addr [20]byte) (*StakerInfo, error)
	StakingPutStakerInfo(daoID uint32, addr [20]byte, info *StakerInfo) error
	StakingStakers(daoID uint32) ([][20]byte, error)
	StakingDaoStake(daoID uint32, era uint32) (*DaoStakeInfo, bool, error)
	StakingPutDaoStake(daoID uint32, era uint32, info *DaoStakeInfo) error
	StakingEraInfo(era uint32) (*EraInfo, bool, error)
	StakingPutEraInfo(era uint32, info *EraInfo) error
	StakingRegistration(daoID uint32) (*DaoRegistration, bool, error)
	StakingPutRegistration(reg *DaoRegistration) error
	StakingDeleteRegistration(daoID uint32) error
	StakingRegisteredDaos() ([]uint32, error)
	StakingCurrentEra() (uint32, error)
	StakingPutCurrentEra(era uint32) error
	StakingNextEraStartingBlock() (uint64, error)
	StakingPutNextEraStartingBlock(height uint64) error
	StakingForceEra() (bool, error)
	StakingPutForceEra(force bool) error
	StakingAccumulator() (*RewardInfo, error)
	StakingPutAccumulator(acc *RewardInfo) error
	StakingUnregistering(daoID uint32) (bool, error)
	StakingPutUnregistering(daoID uint32, pending bool) error
	StakingPutUnregisterStakers(daoID uint32, stakers [][20]byte) error
	StakingUnregisterStakers(daoID uint32, offset, limit uint32) ([][20]byte, uint32, error)
	StakingDropUnregisterStakers(daoID uint32, offset, end uint32) error
	IsPaused(module string) bool
	SetPaused(module string, paused bool) error
}

// Currency is the base currency the staking engine locks and pays out in.
type Currency interface {
	FreeBalance(asset bank.Asset, addr [20]byte) (*big.Int, error)
	ExistentialDeposit() *big.Int
	Deposit(asset bank.Asset, addr [20]byte, amount *big.Int) error
	Transfer(asset bank.Asset, from, to [20]byte, amount *big.Int) error
	Reserve(addr [20]byte, amount *big.Int) error
	Unreserve(addr [20]byte, amount *big.Int) (*big.Int, error)
	SetLock(id string, addr [20]byte, amount *big.Int) error
}

// MessageQueue is the FIFO holding deferred unregistration work.
type MessageQueue interface {
	Push(payload []byte) error
	Pop() ([]byte, bool, error)
	Peek() ([]byte, bool, error)
	Len() (uint64, error)
}

// Engine implements era based staking on DAOs.
type Engine struct {
	state    stakingState
	emitter  events.Emitter
	currency Currency
	queue    MessageQueue
	params   Params
	pot      [20]byte
}

// NewEngine constructs an engine with default parameters.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		pot:     crypto.ModuleAccount(PotTag),
	}
}

// SetState wires the backing state implementation.
func (e *Engine) SetState(state stakingState) { e.state = state }

// SetEmitter configures the event emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetCurrency wires the base currency.
func (e *Engine) SetCurrency(currency Currency) { e.currency = currency }

// SetQueue wires the unregistration work queue.
func (e *Engine) SetQueue(queue MessageQueue) { e.queue = queue }

// SetParams replaces the engine parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// PotAccount returns the account holding undistributed rewards.
func (e *Engine) PotAccount() [20]byte { return e.pot }

func (e *Engine) ready() error {
	switch {
	case e.state == nil:
		return errStateNotConfigured
	case e.currency == nil:
		return errCurrencyNotConfigured
	}
	return nil
}

// guard rejects mutations while staking is halted.
func (e *Engine) guard() error {
	if err := e.ready(); err != nil {
		return err
	}
	if common.Guard(e.state, ModuleName) != nil {
		return ErrHalted
	}
	return nil
}

// IsHalted reports whether staking mutations are suspended.
func (e *Engine) IsHalted() bool {
	return e.state != nil && e.state.IsPaused(ModuleName)
}

// HaltUnhalt toggles the staking halt. Only root may call it and the new
// status must differ from the current one.
func (e *Engine) HaltUnhalt(origin dispatch.Origin, halt bool) error {
	if err := origin.EnsureRoot(); err != nil {
		return err
	}
	if e.state == nil {
		return errStateNotConfigured
	}
	if e.state.IsPaused(ModuleName) == halt {
		return ErrNoHaltChange
	}
	if err := e.state.SetPaused(ModuleName, halt); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingHaltChanged{Halted: halt})
	return nil
}

// CurrentEra returns the era in progress.
func (e *Engine) CurrentEra() (uint32, error) {
	if e.state == nil {
		return 0, errStateNotConfigured
	}
	return e.state.StakingCurrentEra()
}

// Ledger returns the staking ledger of addr.
func (e *Engine) Ledger(addr [20]byte) (*AccountLedger, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.loadLedger(addr)
}

// StakerInfo returns the stake history of addr in daoID.
func (e *Engine) StakerInfo(daoID uint32, addr [20]byte) (*StakerInfo, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.loadStakerInfo(daoID, addr)
}

// DaoStake returns the aggregate of daoID in era, or an empty aggregate.
func (e *Engine) DaoStake(daoID uint32, era uint32) (*DaoStakeInfo, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.loadDaoStake(daoID, era)
}

// EraInfo returns the global snapshot of era.
func (e *Engine) EraInfo(era uint32) (*EraInfo, bool, error) {
	if e.state == nil {
		return nil, false, errStateNotConfigured
	}
	return e.state.StakingEraInfo(era)
}

// Registration returns the registry entry of daoID.
func (e *Engine) Registration(daoID uint32) (*DaoRegistration, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	reg, ok, err := e.state.StakingRegistration(daoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRegistered
	}
	return reg, nil
}

func (e *Engine) loadLedger(addr [20]byte) (*AccountLedger, error) {
	ledger, err := e.state.StakingLedger(addr)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return NewAccountLedger(), nil
	}
	if ledger.Locked == nil {
		ledger.Locked = big.NewInt(0)
	}
	return ledger, nil
}

// storeLedger persists the ledger and mirrors Locked onto the currency lock.
func (e *Engine) storeLedger(addr [20]byte, ledger *AccountLedger) error {
	if err := e.state.StakingPutLedger(addr, ledger); err != nil {
		return err
	}
	return e.currency.SetLock(LockID, addr, ledger.Locked)
}

func (e *Engine) loadStakerInfo(daoID uint32, addr [20]byte) (*StakerInfo, error) {
	info, err := e.state.StakingStakerInfo(daoID, addr)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return &StakerInfo{}, nil
	}
	return info, nil
}

func (e *Engine) loadDaoStake(daoID uint32, era uint32) (*DaoStakeInfo, error) {
	info, ok, err := e.state.StakingDaoStake(daoID, era)
	if err != nil {
		return nil, err
	}
	if !ok || info == nil {
		return NewDaoStakeInfo(), nil
	}
	if info.Total == nil {
		info.Total = big.NewInt(0)
	}
	return info, nil
}

func (e *Engine) loadEraInfo(era uint32) (*EraInfo, error) {
	info, ok, err := e.state.StakingEraInfo(era)
	if err != nil {
		return nil, err
	}
	if !ok || info == nil {
		return NewEraInfo(), nil
	}
	return info, nil
}

func (e *Engine) requireRegistered(daoID uint32) (*DaoRegistration, error) {
	reg, ok, err := e.state.StakingRegistration(daoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotRegistered, daoID)
	}
	return reg, nil
}

// availableBalance is the free balance not yet locked for staking, keeping
// the existential deposit untouched.
func (e *Engine) availableBalance(addr [20]byte, ledger *AccountLedger) (*big.Int, error) {
	free, err := e.currency.FreeBalance(bank.AssetNative, addr)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(free, ledger.Locked)
	available.Sub(available, e.currency.ExistentialDeposit())
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available, nil
}

func subSaturating(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}
