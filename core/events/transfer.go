package events

import (
	"math/big"
	"strings"

	"daochain/core/types"
)

const (
	// TypeTransfer is emitted for base currency balance movements.
	TypeTransfer = "transfer.native"
	// TypeDeposit is emitted when new base currency enters circulation.
	TypeDeposit = "transfer.deposit"
	// TypeReserved is emitted when funds move between free and reserved.
	TypeReserved = "transfer.reserved"
)

type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = accountText(e.From)
	attrs["to"] = accountText(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// Deposit reports newly issued base currency credited to an account.
type Deposit struct {
	Asset  string
	To     [20]byte
	Amount *big.Int
}

func (Deposit) EventType() string { return TypeDeposit }

func (e Deposit) Event() *types.Event {
	return &types.Event{Type: TypeDeposit, Attributes: map[string]string{
		"asset":  normalizeAsset(e.Asset),
		"to":     accountText(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// Reserved reports a reserve (Released=false) or unreserve of funds.
type Reserved struct {
	Account  [20]byte
	Amount   *big.Int
	Released bool
}

func (Reserved) EventType() string { return TypeReserved }

func (e Reserved) Event() *types.Event {
	return &types.Event{Type: TypeReserved, Attributes: map[string]string{
		"account":  accountText(e.Account),
		"amount":   formatAmount(e.Amount),
		"released": boolText(e.Released),
	}}
}

func normalizeAsset(asset string) string {
	return strings.ToLower(strings.TrimSpace(asset))
}
