package state

import (
	"fmt"
	"math/big"

	"daochain/native/bank"
)

func bankAccountKey(asset bank.Asset, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("bank/account/%d/%x", uint8(asset), addr[:]))
}

func bankIssuanceKey(asset bank.Asset) []byte {
	return []byte(fmt.Sprintf("bank/issuance/%d", uint8(asset)))
}

// BankAccount loads the balance record of addr in asset. Unknown accounts
// load as empty.
func (m *Manager) BankAccount(asset bank.Asset, addr [20]byte) (*bank.Account, error) {
	var stored bank.Account
	ok, err := m.KVGet(bankAccountKey(asset, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return bank.NewAccount(), nil
	}
	stored.Normalize()
	return &stored, nil
}

// BankPutAccount persists the balance record, dropping it once empty.
func (m *Manager) BankPutAccount(asset bank.Asset, addr [20]byte, account *bank.Account) error {
	if account == nil || account.IsEmpty() {
		return m.KVDelete(bankAccountKey(asset, addr))
	}
	return m.KVPut(bankAccountKey(asset, addr), account)
}

// BankIssuance returns the total issuance of asset.
func (m *Manager) BankIssuance(asset bank.Asset) (*big.Int, error) {
	return m.loadBig(bankIssuanceKey(asset))
}

// BankPutIssuance stores the total issuance of asset.
func (m *Manager) BankPutIssuance(asset bank.Asset, amount *big.Int) error {
	return m.putBig(bankIssuanceKey(asset), amount)
}

func (m *Manager) loadBig(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) putBig(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount for %s", key)
	}
	return m.KVPut(key, amount)
}
