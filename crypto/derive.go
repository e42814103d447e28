package crypto

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	entityDomainTag = "daochain/entity"
	moduleDomainTag = "daochain/module/"
)

// DeriveEntityAccount maps a DAO identifier to its control account. The
// mapping is part of the chain's address space and must never change.
func DeriveEntityAccount(id uint32) [AddressLength]byte {
	buf := make([]byte, len(entityDomainTag)+4)
	copy(buf, entityDomainTag)
	binary.BigEndian.PutUint32(buf[len(entityDomainTag):], id)
	return accountFromDigest(ethcrypto.Keccak256(buf))
}

// ModuleAccount derives the keyless account owned by a runtime module, e.g.
// the staking reward pot.
func ModuleAccount(tag string) [AddressLength]byte {
	buf := make([]byte, 0, len(moduleDomainTag)+len(tag))
	buf = append(buf, moduleDomainTag...)
	buf = append(buf, tag...)
	return accountFromDigest(ethcrypto.Keccak256(buf))
}

// HashCall returns the content address of an encoded call.
func HashCall(encoded []byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(encoded))
}

func accountFromDigest(digest []byte) [AddressLength]byte {
	var out [AddressLength]byte
	copy(out[:], digest[len(digest)-AddressLength:])
	return out
}
