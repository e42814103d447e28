package trie

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

// EmptyRoot is the root of a list with no items.
var EmptyRoot = gethtypes.EmptyRootHash

// OrderedRoot commits to a list of items with a Merkle Patricia trie keyed
// by the rlp-encoded position of each item. Two lists share a root only if
// they hold the same items in the same order.
//
// The stack trie only accepts keys in ascending byte order, and rlp(0) sorts
// after rlp(1..127), so insertion runs 1..127, then 0, then the rest.
func OrderedRoot(items [][]byte) (common.Hash, error) {
	if len(items) == 0 {
		return EmptyRoot, nil
	}
	st := gethtrie.NewStackTrie(nil)
	insert := func(i int) error {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return err
		}
		return st.Update(key, items[i])
	}
	for i := 1; i < len(items) && i <= 0x7f; i++ {
		if err := insert(i); err != nil {
			return common.Hash{}, err
		}
	}
	if err := insert(0); err != nil {
		return common.Hash{}, err
	}
	for i := 0x80; i < len(items); i++ {
		if err := insert(i); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}

// RLPRoot rlp-encodes each value and returns the ordered root of the
// encodings.
func RLPRoot[T any](values []T) (common.Hash, error) {
	items := make([][]byte, len(values))
	for i := range values {
		enc, err := rlp.EncodeToBytes(values[i])
		if err != nil {
			return common.Hash{}, err
		}
		items[i] = enc
	}
	return OrderedRoot(items)
}
