package bank

import (
	"errors"
	"fmt"
	"math/big"

	"daochain/core/events"
)

var (
	// ErrInsufficientBalance is returned when usable funds do not cover a
	// debit.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrExistentialDeposit is returned when a movement would leave an
	// account holding dust below the existential deposit.
	ErrExistentialDeposit = errors.New("bank: below existential deposit")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")

	errStateNotConfigured = errors.New("bank: state not configured")
)

type bankState interface {
	BankAccount(asset Asset, addr [20]byte) (*Account, error)
	BankPutAccount(asset Asset, addr [20]byte, account *Account) error
	BankIssuance(asset Asset) (*big.Int, error)
	BankPutIssuance(asset Asset, amount *big.Int) error
}

// Engine moves base currency between accounts and tracks issuance per asset.
type Engine struct {
	state       bankState
	emitter     events.Emitter
	existential *big.Int
	keepAlive   map[[20]byte]struct{}
}

// NewEngine constructs a bank engine with a zero existential deposit.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, existential: big.NewInt(0)}
}

// SetState wires the backing state implementation.
func (e *Engine) SetState(state bankState) { e.state = state }

// SetEmitter configures the event emitter used for balance movements.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetExistentialDeposit configures the minimum non-zero account total.
func (e *Engine) SetExistentialDeposit(amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		e.existential = big.NewInt(0)
		return
	}
	e.existential = new(big.Int).Set(amount)
}

// SetKeepAlive marks module accounts that may hold any balance. They are
// never reaped and skip the existential deposit check.
func (e *Engine) SetKeepAlive(addrs ...[20]byte) {
	e.keepAlive = make(map[[20]byte]struct{}, len(addrs))
	for _, addr := range addrs {
		e.keepAlive[addr] = struct{}{}
	}
}

func (e *Engine) kept(addr [20]byte) bool {
	_, ok := e.keepAlive[addr]
	return ok
}

// ExistentialDeposit returns the configured minimum account total.
func (e *Engine) ExistentialDeposit() *big.Int {
	return new(big.Int).Set(e.existential)
}

func (e *Engine) load(asset Asset, addr [20]byte) (*Account, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	if !asset.Valid() {
		return nil, fmt.Errorf("bank: unknown asset %d", asset)
	}
	account, err := e.state.BankAccount(asset, addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = NewAccount()
	}
	account.Normalize()
	return account, nil
}

// Account returns a copy of the balance record.
func (e *Engine) Account(asset Asset, addr [20]byte) (*Account, error) {
	return e.load(asset, addr)
}

// FreeBalance returns the free balance of addr.
func (e *Engine) FreeBalance(asset Asset, addr [20]byte) (*big.Int, error) {
	account, err := e.load(asset, addr)
	if err != nil {
		return nil, err
	}
	return account.Free, nil
}

// TotalIssuance returns the circulating amount of asset.
func (e *Engine) TotalIssuance(asset Asset) (*big.Int, error) {
	if e.state == nil {
		return nil, errStateNotConfigured
	}
	issuance, err := e.state.BankIssuance(asset)
	if err != nil {
		return nil, err
	}
	if issuance == nil {
		return big.NewInt(0), nil
	}
	return issuance, nil
}

func (e *Engine) adjustIssuance(asset Asset, delta *big.Int) error {
	issuance, err := e.TotalIssuance(asset)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(issuance, delta)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	return e.state.BankPutIssuance(asset, next)
}

// reapDust clears a sender left with a non-zero total below the existential
// deposit and returns the amount destroyed.
func (e *Engine) reapDust(addr [20]byte, account *Account) *big.Int {
	total := account.Total()
	if e.kept(addr) || total.Sign() == 0 || total.Cmp(e.existential) >= 0 || account.Reserved.Sign() > 0 {
		return big.NewInt(0)
	}
	dust := new(big.Int).Set(account.Free)
	account.Free.SetInt64(0)
	account.Locks = nil
	return dust
}

// checkExistence rejects a resulting total that is non-zero yet below the
// existential deposit.
func (e *Engine) checkExistence(addr [20]byte, account *Account) error {
	if e.kept(addr) {
		return nil
	}
	total := account.Total()
	if total.Sign() > 0 && total.Cmp(e.existential) < 0 {
		return ErrExistentialDeposit
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit credits newly issued funds to addr.
func (e *Engine) Deposit(asset Asset, addr [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.load(asset, addr)
	if err != nil {
		return err
	}
	account.Free.Add(account.Free, amount)
	if err := e.checkExistence(addr, account); err != nil {
		return err
	}
	if err := e.state.BankPutAccount(asset, addr, account); err != nil {
		return err
	}
	if err := e.adjustIssuance(asset, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.Deposit{Asset: asset.String(), To: addr, Amount: new(big.Int).Set(amount)})
	return nil
}

// Withdraw burns usable funds from addr.
func (e *Engine) Withdraw(asset Asset, addr [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.load(asset, addr)
	if err != nil {
		return err
	}
	if account.Usable().Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	account.Free.Sub(account.Free, amount)
	burned := new(big.Int).Add(amount, e.reapDust(addr, account))
	if err := e.state.BankPutAccount(asset, addr, account); err != nil {
		return err
	}
	return e.adjustIssuance(asset, burned.Neg(burned))
}

// Transfer moves usable funds between accounts.
func (e *Engine) Transfer(asset Asset, from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	sender, err := e.load(asset, from)
	if err != nil {
		return err
	}
	if sender.Usable().Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	recipient, err := e.load(asset, to)
	if err != nil {
		return err
	}
	sender.Free.Sub(sender.Free, amount)
	recipient.Free.Add(recipient.Free, amount)
	if err := e.checkExistence(to, recipient); err != nil {
		return err
	}
	dust := e.reapDust(from, sender)
	if err := e.state.BankPutAccount(asset, from, sender); err != nil {
		return err
	}
	if err := e.state.BankPutAccount(asset, to, recipient); err != nil {
		return err
	}
	if dust.Sign() > 0 {
		if err := e.adjustIssuance(asset, dust.Neg(dust)); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.Transfer{Asset: asset.String(), From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Reserve moves usable native funds into the reserved balance.
func (e *Engine) Reserve(addr [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.load(AssetNative, addr)
	if err != nil {
		return err
	}
	if account.Usable().Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	account.Free.Sub(account.Free, amount)
	account.Reserved.Add(account.Reserved, amount)
	if err := e.state.BankPutAccount(AssetNative, addr, account); err != nil {
		return err
	}
	e.emitter.Emit(events.Reserved{Account: addr, Amount: new(big.Int).Set(amount)})
	return nil
}

// Unreserve returns up to amount of reserved native funds to the free
// balance and reports how much was actually released.
func (e *Engine) Unreserve(addr [20]byte, amount *big.Int) (*big.Int, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	account, err := e.load(AssetNative, addr)
	if err != nil {
		return nil, err
	}
	released := new(big.Int).Set(amount)
	if released.Cmp(account.Reserved) > 0 {
		released.Set(account.Reserved)
	}
	if released.Sign() == 0 {
		return released, nil
	}
	account.Reserved.Sub(account.Reserved, released)
	account.Free.Add(account.Free, released)
	if err := e.state.BankPutAccount(AssetNative, addr, account); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Reserved{Account: addr, Amount: new(big.Int).Set(released), Released: true})
	return released, nil
}

// SetLock creates, updates or (with a zero amount) removes a named lock on
// native funds. Locks do not move funds.
func (e *Engine) SetLock(id string, addr [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	account, err := e.load(AssetNative, addr)
	if err != nil {
		return err
	}
	replaced := false
	for i := range account.Locks {
		if account.Locks[i].ID == id {
			account.Locks[i].Amount = new(big.Int).Set(amount)
			replaced = true
			break
		}
	}
	if !replaced && amount.Sign() > 0 {
		account.Locks = append(account.Locks, Lock{ID: id, Amount: new(big.Int).Set(amount)})
	}
	account.Normalize()
	return e.state.BankPutAccount(AssetNative, addr, account)
}

// LockOf returns the amount held by the named lock.
func (e *Engine) LockOf(id string, addr [20]byte) (*big.Int, error) {
	account, err := e.load(AssetNative, addr)
	if err != nil {
		return nil, err
	}
	for _, lock := range account.Locks {
		if lock.ID == id {
			return new(big.Int).Set(lock.Amount), nil
		}
	}
	return big.NewInt(0), nil
}
