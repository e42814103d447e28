package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"
)

func items(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i), byte(i >> 8), 0xaa}
	}
	return out
}

// referenceRoot inserts keys in plain index order into a regular trie.
func referenceRoot(t *testing.T, values [][]byte) common.Hash {
	t.Helper()
	tr := gethtrie.NewEmpty(nil)
	for i, v := range values {
		key, err := rlp.EncodeToBytes(uint64(i))
		require.NoError(t, err)
		require.NoError(t, tr.Update(key, v))
	}
	return tr.Hash()
}

func TestOrderedRootEmpty(t *testing.T) {
	root, err := OrderedRoot(nil)
	require.NoError(t, err)
	require.Equal(t, EmptyRoot, root)
}

func TestOrderedRootMatchesPlainTrie(t *testing.T) {
	for _, n := range []int{1, 2, 127, 128, 129, 300} {
		values := items(n)
		root, err := OrderedRoot(values)
		require.NoError(t, err)
		require.Equal(t, referenceRoot(t, values), root, "n=%d", n)
	}
}

func TestOrderedRootIsOrderSensitive(t *testing.T) {
	a, err := OrderedRoot([][]byte{{1}, {2}})
	require.NoError(t, err)
	b, err := OrderedRoot([][]byte{{2}, {1}})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRLPRoot(t *testing.T) {
	type entry struct {
		Hash    [32]byte
		Success bool
	}
	values := []entry{{Hash: [32]byte{1}, Success: true}, {Hash: [32]byte{2}}}
	root, err := RLPRoot(values)
	require.NoError(t, err)

	encoded := make([][]byte, len(values))
	for i := range values {
		encoded[i], err = rlp.EncodeToBytes(values[i])
		require.NoError(t, err)
	}
	require.Equal(t, referenceRoot(t, encoded), root)
}
