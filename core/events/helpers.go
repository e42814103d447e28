package events

import (
	"encoding/hex"
	"math/big"

	"daochain/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func accountText(account [20]byte) string {
	return crypto.FromAccount(account).String()
}

func hashText(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}

func boolText(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
