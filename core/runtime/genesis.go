package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/state"
	"daochain/native/bank"
	"daochain/native/common"
	"daochain/native/staking"
)

// ErrGenesisApplied is returned when genesis runs on an initialised
// database.
var ErrGenesisApplied = errors.New("runtime: genesis already applied")

// GenesisBalance seeds the free balance of one account.
type GenesisBalance struct {
	Account [20]byte
	Asset   bank.Asset
	Amount  *big.Int
}

// GenesisHolder receives voting tokens of a genesis DAO on top of the seed
// balance minted to its creator.
type GenesisHolder struct {
	Account [20]byte
	Amount  *big.Int
}

// GenesisDao is created at genesis without charging the creation fee.
// When Staking is set the DAO is also registered as a staking target and
// its deposit is reserved from the balances funded above.
type GenesisDao struct {
	Creator          [20]byte
	Metadata         []byte
	MinimumSupport   common.Perbill
	RequiredApproval common.Perbill
	Holders          []GenesisHolder
	Staking          *staking.DaoInformation
}

// Genesis is the initial chain state.
type Genesis struct {
	Balances []GenesisBalance
	Daos     []GenesisDao
}

// InitGenesis writes the initial state and stamps the state version. It
// fails on a database that was already initialised.
func (r *Runtime) InitGenesis(ctx context.Context, g Genesis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, span := r.tracer.Start(ctx, "runtime.init_genesis")
	defer span.End()

	s := newScope(r.db, r.params, 0)
	if _, ok, err := s.manager.StateVersion(); err != nil {
		return err
	} else if ok {
		return ErrGenesisApplied
	}

	for i, bal := range g.Balances {
		if err := checkAmount(bal.Amount); err != nil {
			return fmt.Errorf("genesis balance %d: %w", i, err)
		}
		if err := s.bank.Deposit(bal.Asset, bal.Account, bal.Amount); err != nil {
			s.db.Discard()
			return fmt.Errorf("genesis balance %d: %w", i, err)
		}
	}

	daoParams := r.params.Dao
	daoParams.CreationFee = big.NewInt(0)
	daoParams.RelayCreationFee = big.NewInt(0)
	s.dao.SetParams(daoParams)
	for i, spec := range g.Daos {
		record, err := s.dao.CreateDAO(spec.Creator, spec.Metadata, spec.MinimumSupport, spec.RequiredApproval, bank.AssetNative)
		if err != nil {
			s.db.Discard()
			return fmt.Errorf("genesis dao %d: %w", i, err)
		}
		for _, holder := range spec.Holders {
			if err := checkAmount(holder.Amount); err != nil {
				s.db.Discard()
				return fmt.Errorf("genesis dao %d holder: %w", i, err)
			}
			if err := s.tokens.MintInto(record.ID, holder.Account, holder.Amount); err != nil {
				s.db.Discard()
				return fmt.Errorf("genesis dao %d holder: %w", i, err)
			}
		}
		if spec.Staking != nil {
			if err := s.staking.RegisterDao(dispatch.Entity(record.ID), *spec.Staking); err != nil {
				s.db.Discard()
				return fmt.Errorf("genesis dao %d staking: %w", i, err)
			}
		}
	}
	if err := s.manager.SetStateVersion(state.StateVersion); err != nil {
		s.db.Discard()
		return err
	}
	if _, err := r.commit(s, 0); err != nil {
		return err
	}
	r.logger.Info("genesis applied", "balances", len(g.Balances), "daos", len(g.Daos))
	return nil
}
