package runtime

import (
	"math/big"

	"daochain/native/bank"
	"daochain/native/dao"
	"daochain/native/staking"
)

// view runs fn against a throwaway scope. Reads see committed state only and
// nothing fn writes is kept.
func (r *Runtime) view(fn func(s *scope) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := newScope(r.db, r.params, 0)
	defer s.db.Discard()
	return fn(s)
}

// Account returns the balance record of addr in asset.
func (r *Runtime) Account(asset bank.Asset, addr [20]byte) (*bank.Account, error) {
	var out *bank.Account
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.bank.Account(asset, addr)
		return err
	})
	return out, err
}

// TotalIssuance returns the issuance of a base currency.
func (r *Runtime) TotalIssuance(asset bank.Asset) (*big.Int, error) {
	var out *big.Int
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.bank.TotalIssuance(asset)
		return err
	})
	return out, err
}

// TokenBalance returns the voting token balance of addr in daoID.
func (r *Runtime) TokenBalance(daoID uint32, addr [20]byte) (*big.Int, error) {
	var out *big.Int
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.tokens.BalanceOf(daoID, addr)
		return err
	})
	return out, err
}

// TokenIssuance returns the voting token issuance of daoID.
func (r *Runtime) TokenIssuance(daoID uint32) (*big.Int, error) {
	var out *big.Int
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.tokens.TotalIssuance(daoID)
		return err
	})
	return out, err
}

// Dao returns the DAO record of id.
func (r *Runtime) Dao(id uint32) (*dao.DAO, error) {
	var out *dao.DAO
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.dao.GetDAO(id)
		return err
	})
	return out, err
}

// Multisig returns the pending proposal of daoID under callHash.
func (r *Runtime) Multisig(daoID uint32, callHash [32]byte) (*dao.Multisig, error) {
	var out *dao.Multisig
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.dao.GetMultisig(daoID, callHash)
		return err
	})
	return out, err
}

// CurrentEra returns the era in progress.
func (r *Runtime) CurrentEra() (uint32, error) {
	var out uint32
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.staking.CurrentEra()
		return err
	})
	return out, err
}

// Ledger returns the staking ledger of addr.
func (r *Runtime) Ledger(addr [20]byte) (*staking.AccountLedger, error) {
	var out *staking.AccountLedger
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.staking.Ledger(addr)
		return err
	})
	return out, err
}

// StakerInfo returns the stake history of addr in daoID.
func (r *Runtime) StakerInfo(daoID uint32, addr [20]byte) (*staking.StakerInfo, error) {
	var out *staking.StakerInfo
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.staking.StakerInfo(daoID, addr)
		return err
	})
	return out, err
}

// DaoStake returns the aggregate stake of daoID in era.
func (r *Runtime) DaoStake(daoID uint32, era uint32) (*staking.DaoStakeInfo, error) {
	var out *staking.DaoStakeInfo
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.staking.DaoStake(daoID, era)
		return err
	})
	return out, err
}

// EraInfo returns the snapshot of era; ok is false for eras never reached.
func (r *Runtime) EraInfo(era uint32) (*staking.EraInfo, bool, error) {
	var (
		out *staking.EraInfo
		ok  bool
	)
	err := r.view(func(s *scope) error {
		var err error
		out, ok, err = s.staking.EraInfo(era)
		return err
	})
	return out, ok, err
}

// Registration returns the staking registration of daoID.
func (r *Runtime) Registration(daoID uint32) (*staking.DaoRegistration, error) {
	var out *staking.DaoRegistration
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.staking.Registration(daoID)
		return err
	})
	return out, err
}

// RegisteredDaos lists the DAOs currently registered for staking.
func (r *Runtime) RegisteredDaos() ([]uint32, error) {
	var out []uint32
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.manager.StakingRegisteredDaos()
		return err
	})
	return out, err
}

// UnregisterQueueLen returns the number of pending unregistration items.
func (r *Runtime) UnregisterQueueLen() (uint64, error) {
	var out uint64
	err := r.view(func(s *scope) error {
		var err error
		out, err = s.manager.Queue(UnregisterTopic).Len()
		return err
	})
	return out, err
}

// StakingHalted reports whether staking mutations are suspended.
func (r *Runtime) StakingHalted() (bool, error) {
	var out bool
	err := r.view(func(s *scope) error {
		out = s.staking.IsHalted()
		return nil
	})
	return out, err
}
