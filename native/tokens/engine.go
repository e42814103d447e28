package tokens

import (
	"errors"
	"fmt"
	"math/big"

	"daochain/core/events"
)

var (
	// ErrOverflow is returned when minting would push issuance past
	// MaxBalance. Minting fails closed instead of saturating.
	ErrOverflow = errors.New("tokens: issuance overflow")
	// ErrInsufficientBalance is returned when a holder cannot cover a burn or
	// transfer.
	ErrInsufficientBalance = errors.New("tokens: insufficient balance")
	// ErrFrozen is returned for transfers of a DAO token whose holders are
	// frozen.
	ErrFrozen        = errors.New("tokens: dao tokens are frozen")
	ErrInvalidAmount = errors.New("tokens: invalid amount")

	errStateNotConfigured = errors.New("tokens: state not configured")
)

// MaxBalance is the largest representable balance or issuance (2^128 - 1).
var MaxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

type tokenState interface {
	TokenBalance(daoID uint32, addr [20]byte) (*big.Int, error)
	TokenPutBalance(daoID uint32, addr [20]byte, amount *big.Int) error
	TokenIssuance(daoID uint32) (*big.Int, error)
	TokenPutIssuance(daoID uint32, amount *big.Int) error
	DaoTokensFrozen(daoID uint32) (bool, error)
}

// Engine administers the per-DAO voting tokens. Each DAO id names exactly one
// fungible token whose balances weight multisig votes.
type Engine struct {
	state   tokenState
	emitter events.Emitter
}

// NewEngine constructs a token engine.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the backing state implementation.
func (e *Engine) SetState(state tokenState) { e.state = state }

// SetEmitter configures the event emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// BalanceOf returns the voting weight held by addr in daoID.
func (e *Engine) BalanceOf(daoID uint32, addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	balance, err := e.state.TokenBalance(daoID, addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// TotalIssuance returns the outstanding supply of daoID's token.
func (e *Engine) TotalIssuance(daoID uint32) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	issuance, err := e.state.TokenIssuance(daoID)
	if err != nil {
		return nil, err
	}
	if issuance == nil {
		return big.NewInt(0), nil
	}
	return issuance, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MintInto credits amount to target and grows issuance.
func (e *Engine) MintInto(daoID uint32, target [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	issuance, err := e.TotalIssuance(daoID)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(issuance, amount)
	if next.Cmp(MaxBalance) > 0 {
		return ErrOverflow
	}
	balance, err := e.BalanceOf(daoID, target)
	if err != nil {
		return err
	}
	if err := e.state.TokenPutBalance(daoID, target, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := e.state.TokenPutIssuance(daoID, next); err != nil {
		return err
	}
	e.emitter.Emit(events.DaoTokens{Kind: events.TypeDaoTokensMinted, DaoID: daoID, Target: target, Amount: new(big.Int).Set(amount)})
	return nil
}

// BurnFrom destroys exactly amount from target.
func (e *Engine) BurnFrom(daoID uint32, target [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := e.BalanceOf(daoID, target)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	issuance, err := e.TotalIssuance(daoID)
	if err != nil {
		return err
	}
	nextIssuance := new(big.Int).Sub(issuance, amount)
	if nextIssuance.Sign() < 0 {
		return fmt.Errorf("tokens: issuance of dao %d below holder balance", daoID)
	}
	if err := e.state.TokenPutBalance(daoID, target, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := e.state.TokenPutIssuance(daoID, nextIssuance); err != nil {
		return err
	}
	e.emitter.Emit(events.DaoTokens{Kind: events.TypeDaoTokensBurned, DaoID: daoID, Target: target, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves voting weight between holders unless the DAO froze its
// token.
func (e *Engine) Transfer(daoID uint32, from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if e.state == nil {
		return errStateNotConfigured
	}
	frozen, err := e.state.DaoTokensFrozen(daoID)
	if err != nil {
		return err
	}
	if frozen {
		return ErrFrozen
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	sender, err := e.BalanceOf(daoID, from)
	if err != nil {
		return err
	}
	if sender.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	recipient, err := e.BalanceOf(daoID, to)
	if err != nil {
		return err
	}
	if err := e.state.TokenPutBalance(daoID, from, new(big.Int).Sub(sender, amount)); err != nil {
		return err
	}
	if err := e.state.TokenPutBalance(daoID, to, new(big.Int).Add(recipient, amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.DaoTokens{Kind: events.TypeDaoTokensTransferred, DaoID: daoID, From: from, Target: to, Amount: new(big.Int).Set(amount)})
	return nil
}
