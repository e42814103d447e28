package state

import (
	"fmt"
	"math/big"

	"daochain/native/dao"
)

var daoNextIDKey = []byte("dao/next-id")

func daoKey(id uint32) []byte {
	return []byte(fmt.Sprintf("dao/entity/%d", id))
}

func multisigKey(daoID uint32, hash [32]byte) []byte {
	return []byte(fmt.Sprintf("dao/multisig/%d/%x", daoID, hash[:]))
}

func tokenBalanceKey(daoID uint32, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("tokens/balance/%d/%x", daoID, addr[:]))
}

func tokenIssuanceKey(daoID uint32) []byte {
	return []byte(fmt.Sprintf("tokens/issuance/%d", daoID))
}

// DaoNextID returns the identifier the next created DAO receives.
func (m *Manager) DaoNextID() (uint32, error) {
	var id uint32
	if _, err := m.KVGet(daoNextIDKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// DaoPutNextID stores the next DAO identifier.
func (m *Manager) DaoPutNextID(id uint32) error {
	return m.KVPut(daoNextIDKey, id)
}

// DaoGet loads a DAO record. A missing record returns (nil, false, nil).
func (m *Manager) DaoGet(id uint32) (*dao.DAO, bool, error) {
	var stored dao.DAO
	ok, err := m.KVGet(daoKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &stored, true, nil
}

// DaoPut persists a DAO record.
func (m *Manager) DaoPut(record *dao.DAO) error {
	if record == nil {
		return fmt.Errorf("dao: record required")
	}
	return m.KVPut(daoKey(record.ID), record)
}

// DaoTokensFrozen reports whether transfers of the DAO's voting token are
// suspended. Unknown DAOs are not frozen.
func (m *Manager) DaoTokensFrozen(daoID uint32) (bool, error) {
	record, ok, err := m.DaoGet(daoID)
	if err != nil || !ok {
		return false, err
	}
	return record.FrozenTokens, nil
}

// MultisigGet loads an open proposal by DAO and call hash.
func (m *Manager) MultisigGet(daoID uint32, hash [32]byte) (*dao.Multisig, bool, error) {
	var stored dao.Multisig
	ok, err := m.KVGet(multisigKey(daoID, hash), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	if stored.Tally.Ayes == nil {
		stored.Tally.Ayes = big.NewInt(0)
	}
	if stored.Tally.Nays == nil {
		stored.Tally.Nays = big.NewInt(0)
	}
	return &stored, true, nil
}

// MultisigPut persists an open proposal.
func (m *Manager) MultisigPut(record *dao.Multisig) error {
	if record == nil {
		return fmt.Errorf("dao: multisig record required")
	}
	return m.KVPut(multisigKey(record.DaoID, record.CallHash), record)
}

// MultisigDelete removes a proposal together with its tally.
func (m *Manager) MultisigDelete(daoID uint32, hash [32]byte) error {
	return m.KVDelete(multisigKey(daoID, hash))
}

// TokenBalance returns the voting token balance of addr in daoID.
func (m *Manager) TokenBalance(daoID uint32, addr [20]byte) (*big.Int, error) {
	return m.loadBig(tokenBalanceKey(daoID, addr))
}

// TokenPutBalance stores the voting token balance of addr in daoID.
func (m *Manager) TokenPutBalance(daoID uint32, addr [20]byte, amount *big.Int) error {
	return m.putBig(tokenBalanceKey(daoID, addr), amount)
}

// TokenIssuance returns the voting token issuance of daoID.
func (m *Manager) TokenIssuance(daoID uint32) (*big.Int, error) {
	return m.loadBig(tokenIssuanceKey(daoID))
}

// TokenPutIssuance stores the voting token issuance of daoID.
func (m *Manager) TokenPutIssuance(daoID uint32, amount *big.Int) error {
	return m.putBig(tokenIssuanceKey(daoID), amount)
}
