package genesis

import (
	"fmt"
	"strconv"
	"strings"

	"daochain/crypto"
)

const (
	entityPrefix = "entity:"
	modulePrefix = "module:"
)

// ParseAccount resolves an account reference used in genesis files. Besides
// bech32 and 0x-hex addresses it accepts "entity:<dao id>" for a DAO control
// account and "module:<tag>" for a module account such as the staking pot.
func ParseAccount(text string) ([20]byte, error) {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, entityPrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(trimmed, entityPrefix), 10, 32)
		if err != nil {
			return [20]byte{}, fmt.Errorf("decode entity account %q: %w", text, err)
		}
		return crypto.DeriveEntityAccount(uint32(id)), nil
	case strings.HasPrefix(trimmed, modulePrefix):
		tag := strings.TrimPrefix(trimmed, modulePrefix)
		if tag == "" {
			return [20]byte{}, fmt.Errorf("decode module account %q: tag required", text)
		}
		return crypto.ModuleAccount(tag), nil
	}
	account, err := crypto.ParseAccount(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("decode account %q: %w", text, err)
	}
	return account, nil
}
