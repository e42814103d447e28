package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"daochain/core/types"
)

const (
	// TypeDaoCreated is emitted when a new DAO and its voting token are created.
	TypeDaoCreated = "dao.created"
	// TypeDaoParametersSet is emitted when a DAO updates its own settings.
	TypeDaoParametersSet = "dao.parametersSet"
	// TypeDaoTokensMinted is emitted when a DAO mints voting tokens.
	TypeDaoTokensMinted = "dao.tokensMinted"
	// TypeDaoTokensBurned is emitted when a DAO burns voting tokens.
	TypeDaoTokensBurned = "dao.tokensBurned"
	// TypeDaoTokensTransferred is emitted when holders move voting tokens.
	TypeDaoTokensTransferred = "dao.tokensTransferred"
)

// DaoCreated captures the settings a DAO was created with.
type DaoCreated struct {
	DaoID            uint32
	Account          [20]byte
	Creator          [20]byte
	Metadata         []byte
	MinimumSupport   uint32
	RequiredApproval uint32
	SeedBalance      *big.Int
}

// EventType satisfies the Event interface.
func (DaoCreated) EventType() string { return TypeDaoCreated }

// Event converts the structured payload into a broadcastable event.
func (e DaoCreated) Event() *types.Event {
	attrs := map[string]string{
		"daoId":            strconv.FormatUint(uint64(e.DaoID), 10),
		"account":          accountText(e.Account),
		"creator":          accountText(e.Creator),
		"minimumSupport":   strconv.FormatUint(uint64(e.MinimumSupport), 10),
		"requiredApproval": strconv.FormatUint(uint64(e.RequiredApproval), 10),
		"seedBalance":      formatAmount(e.SeedBalance),
	}
	if len(e.Metadata) > 0 {
		attrs["metadata"] = hex.EncodeToString(e.Metadata)
	}
	return &types.Event{Type: TypeDaoCreated, Attributes: attrs}
}

// DaoParametersSet reports the settings after an update.
type DaoParametersSet struct {
	DaoID            uint32
	MetadataChanged  bool
	MinimumSupport   uint32
	RequiredApproval uint32
	FrozenTokens     bool
}

// EventType satisfies the Event interface.
func (DaoParametersSet) EventType() string { return TypeDaoParametersSet }

// Event converts the structured payload into a broadcastable event.
func (e DaoParametersSet) Event() *types.Event {
	return &types.Event{Type: TypeDaoParametersSet, Attributes: map[string]string{
		"daoId":            strconv.FormatUint(uint64(e.DaoID), 10),
		"metadataChanged":  strconv.FormatBool(e.MetadataChanged),
		"minimumSupport":   strconv.FormatUint(uint64(e.MinimumSupport), 10),
		"requiredApproval": strconv.FormatUint(uint64(e.RequiredApproval), 10),
		"frozenTokens":     strconv.FormatBool(e.FrozenTokens),
	}}
}

// DaoTokens captures a mint, burn or transfer of DAO voting tokens. Kind
// selects which of the three event types is produced.
type DaoTokens struct {
	Kind   string
	DaoID  uint32
	From   [20]byte
	Target [20]byte
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (e DaoTokens) EventType() string { return e.Kind }

// Event converts the structured payload into a broadcastable event.
func (e DaoTokens) Event() *types.Event {
	attrs := map[string]string{
		"daoId":  strconv.FormatUint(uint64(e.DaoID), 10),
		"target": accountText(e.Target),
		"amount": formatAmount(e.Amount),
	}
	if e.Kind == TypeDaoTokensTransferred {
		attrs["from"] = accountText(e.From)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}
