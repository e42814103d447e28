package staking

import (
	"math/big"

	"daochain/core/dispatch"
	"daochain/core/events"
)

// DaoInformation is the public profile of a registered DAO.
type DaoInformation struct {
	Name        []byte
	Description []byte
	Image       []byte
}

func (e *Engine) checkInformation(info DaoInformation) error {
	switch {
	case uint32(len(info.Name)) > e.params.MaxNameLength:
		return ErrMaxNameExceeded
	case uint32(len(info.Description)) > e.params.MaxDescriptionLength:
		return ErrMaxDescriptionExceeded
	case uint32(len(info.Image)) > e.params.MaxImageLength:
		return ErrMaxImageExceeded
	}
	return nil
}

// RegisterDao lists the calling DAO as a staking target and reserves the
// registration deposit from its account.
func (e *Engine) RegisterDao(origin dispatch.Origin, info DaoInformation) error {
	daoID, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.checkInformation(info); err != nil {
		return err
	}
	if _, ok, err := e.state.StakingRegistration(daoID); err != nil {
		return err
	} else if ok {
		return ErrAlreadyRegistered
	}
	pending, err := e.state.StakingUnregistering(daoID)
	if err != nil {
		return err
	}
	if pending {
		return ErrUnregisterInProgress
	}
	deposit := new(big.Int).Set(e.params.RegisterDeposit)
	if err := e.currency.Reserve(origin.Account, deposit); err != nil {
		return err
	}
	reg := &DaoRegistration{
		DaoID:       daoID,
		Account:     origin.Account,
		Name:        append([]byte(nil), info.Name...),
		Description: append([]byte(nil), info.Description...),
		Image:       append([]byte(nil), info.Image...),
		Deposit:     deposit,
	}
	if err := e.state.StakingPutRegistration(reg); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingDao{Kind: events.TypeStakingDaoRegistered, DaoID: daoID, Account: origin.Account})
	return nil
}

// ChangeDaoInformation replaces the profile of the calling DAO.
func (e *Engine) ChangeDaoInformation(origin dispatch.Origin, info DaoInformation) error {
	daoID, err := origin.EnsureEntity()
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.checkInformation(info); err != nil {
		return err
	}
	reg, err := e.requireRegistered(daoID)
	if err != nil {
		return err
	}
	reg.Name = append([]byte(nil), info.Name...)
	reg.Description = append([]byte(nil), info.Description...)
	reg.Image = append([]byte(nil), info.Image...)
	if err := e.state.StakingPutRegistration(reg); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingDao{Kind: events.TypeStakingDaoInfoChanged, DaoID: daoID, Account: reg.Account})
	return nil
}
