package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	DAOPrefix AddressPrefix = "dao"
)

// AddressLength is the byte width of every account on the chain.
const AddressLength = 20

// Address represents a 20-byte account with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	var out Address
	out.prefix = prefix
	copy(out.bytes[:], b)
	return out
}

// FromAccount wraps a raw account identifier with the default prefix.
func FromAccount(account [AddressLength]byte) Address {
	return Address{prefix: DAOPrefix, bytes: account}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes[:]...)
}

// Account returns the raw account identifier.
func (a Address) Account() [AddressLength]byte { return a.bytes }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	if AddressPrefix(prefix) != DAOPrefix {
		return Address{}, fmt.Errorf("unsupported address prefix %q", prefix)
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ParseAccount accepts either a bech32 address or a 0x-prefixed hex string.
func ParseAccount(text string) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return out, fmt.Errorf("account must not be empty")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return out, fmt.Errorf("decode hex account: %w", err)
		}
		if len(raw) != AddressLength {
			return out, fmt.Errorf("invalid address length %d", len(raw))
		}
		copy(out[:], raw)
		return out, nil
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	return addr.Account(), nil
}
