package dao

import (
	"fmt"
	"math"
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/crypto"
	"daochain/native/bank"
	"daochain/native/common"
)

// FeeCollectorTag names the module account that receives governance fees.
const FeeCollectorTag = "dao/fees"

type daoState interface {
	DaoNextID() (uint32, error)
	DaoPutNextID(id uint32) error
	DaoGet(id uint32) (*DAO, bool, error)
	DaoPut(dao *DAO) error
	MultisigGet(daoID uint32, callHash [32]byte) (*Multisig, bool, error)
	MultisigPut(record *Multisig) error
	MultisigDelete(daoID uint32, callHash [32]byte) error
}

// TokenProvider exposes the per-DAO voting token.
type TokenProvider interface {
	BalanceOf(daoID uint32, addr [20]byte) (*big.Int, error)
	TotalIssuance(daoID uint32) (*big.Int, error)
	MintInto(daoID uint32, target [20]byte, amount *big.Int) error
	BurnFrom(daoID uint32, target [20]byte, amount *big.Int) error
}

// Currency charges fees in a base asset.
type Currency interface {
	Transfer(asset bank.Asset, from, to [20]byte, amount *big.Int) error
}

// Engine owns DAO records and the multisig proposal lifecycle.
type Engine struct {
	state        daoState
	emitter      events.Emitter
	tokens       TokenProvider
	currency     Currency
	dispatcher   dispatch.Dispatcher
	params       Params
	feeCollector [20]byte
}

// NewEngine constructs an engine with default parameters.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		params:       DefaultParams(),
		feeCollector: crypto.ModuleAccount(FeeCollectorTag),
	}
}

// SetState wires the backing state implementation.
func (e *Engine) SetState(state daoState) { e.state = state }

// SetEmitter configures the event emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTokens wires the voting token provider.
func (e *Engine) SetTokens(tokens TokenProvider) { e.tokens = tokens }

// SetCurrency wires the base currency used for fees.
func (e *Engine) SetCurrency(currency Currency) { e.currency = currency }

// SetDispatcher wires the host used to execute approved calls.
func (e *Engine) SetDispatcher(dispatcher dispatch.Dispatcher) { e.dispatcher = dispatcher }

// SetParams replaces the engine parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// FeeCollector returns the account receiving governance fees.
func (e *Engine) FeeCollector() [20]byte { return e.feeCollector }

func (e *Engine) ready() error {
	switch {
	case e.state == nil:
		return errStateNotConfigured
	case e.tokens == nil:
		return errTokensNotConfigured
	case e.currency == nil:
		return errCurrencyNotConfigured
	}
	return nil
}

// GetDAO loads a DAO by id.
func (e *Engine) GetDAO(id uint32) (*DAO, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	record, ok, err := e.state.DaoGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDaoNotFound, id)
	}
	return record, nil
}

// CreateDAO registers a new DAO, charges the creation fee in feeAsset and
// mints the seed balance of the new voting token to the creator.
func (e *Engine) CreateDAO(creator [20]byte, metadata []byte, minimumSupport, requiredApproval common.Perbill, feeAsset bank.Asset) (*DAO, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if uint32(len(metadata)) > e.params.MaxMetadata {
		return nil, ErrMaxMetadataExceeded
	}
	if minimumSupport > common.PerbillOne || requiredApproval > common.PerbillOne {
		return nil, ErrInvalidThreshold
	}
	id, err := e.state.DaoNextID()
	if err != nil {
		return nil, err
	}
	if id == math.MaxUint32 {
		return nil, ErrIDOverflow
	}

	fee := e.params.CreationFee
	if feeAsset == bank.AssetRelay {
		fee = e.params.RelayCreationFee
	}
	if fee != nil && fee.Sign() > 0 {
		if err := e.currency.Transfer(feeAsset, creator, e.feeCollector, fee); err != nil {
			return nil, fmt.Errorf("dao: creation fee: %w", err)
		}
	}

	record := &DAO{
		ID:               id,
		Account:          crypto.DeriveEntityAccount(id),
		Metadata:         append([]byte(nil), metadata...),
		MinimumSupport:   minimumSupport,
		RequiredApproval: requiredApproval,
	}
	if err := e.state.DaoPut(record); err != nil {
		return nil, err
	}
	if err := e.state.DaoPutNextID(id + 1); err != nil {
		return nil, err
	}
	if err := e.tokens.MintInto(id, creator, e.params.SeedBalance); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.DaoCreated{
		DaoID:            id,
		Account:          record.Account,
		Creator:          creator,
		Metadata:         record.Metadata,
		MinimumSupport:   uint32(minimumSupport),
		RequiredApproval: uint32(requiredApproval),
		SeedBalance:      new(big.Int).Set(e.params.SeedBalance),
	})
	return record, nil
}

// ParameterUpdate carries optional changes for SetParameters; nil fields are
// left untouched.
type ParameterUpdate struct {
	Metadata         []byte
	MinimumSupport   *common.Perbill
	RequiredApproval *common.Perbill
	FrozenTokens     *bool
}

// SetParameters applies update to the DAO acting through origin.
func (e *Engine) SetParameters(origin dispatch.Origin, update ParameterUpdate) error {
	id, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	record, err := e.GetDAO(id)
	if err != nil {
		return err
	}
	if update.Metadata != nil {
		if uint32(len(update.Metadata)) > e.params.MaxMetadata {
			return ErrMaxMetadataExceeded
		}
		record.Metadata = append([]byte(nil), update.Metadata...)
	}
	if update.MinimumSupport != nil {
		if *update.MinimumSupport > common.PerbillOne {
			return ErrInvalidThreshold
		}
		record.MinimumSupport = *update.MinimumSupport
	}
	if update.RequiredApproval != nil {
		if *update.RequiredApproval > common.PerbillOne {
			return ErrInvalidThreshold
		}
		record.RequiredApproval = *update.RequiredApproval
	}
	if update.FrozenTokens != nil {
		record.FrozenTokens = *update.FrozenTokens
	}
	if err := e.state.DaoPut(record); err != nil {
		return err
	}
	e.emitter.Emit(events.DaoParametersSet{
		DaoID:            id,
		MetadataChanged:  update.Metadata != nil,
		MinimumSupport:   uint32(record.MinimumSupport),
		RequiredApproval: uint32(record.RequiredApproval),
		FrozenTokens:     record.FrozenTokens,
	})
	return nil
}

// TokenMint mints the DAO's voting token to target.
func (e *Engine) TokenMint(origin dispatch.Origin, amount *big.Int, target [20]byte) error {
	id, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.GetDAO(id); err != nil {
		return err
	}
	return e.tokens.MintInto(id, target, amount)
}

// TokenBurn burns the DAO's voting token from target.
func (e *Engine) TokenBurn(origin dispatch.Origin, amount *big.Int, target [20]byte) error {
	id, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.GetDAO(id); err != nil {
		return err
	}
	return e.tokens.BurnFrom(id, target, amount)
}
