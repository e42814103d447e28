package dispatch

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type transferArgs struct {
	To     [20]byte
	Amount *big.Int
}

func TestCallRoundTripAndHash(t *testing.T) {
	call, err := NewCall("bank", "transfer", transferArgs{To: [20]byte{1}, Amount: big.NewInt(10)})
	require.NoError(t, err)
	require.Equal(t, "bank.transfer", call.Name())

	encoded, err := call.Encode()
	require.NoError(t, err)
	decoded, err := DecodeCall(encoded)
	require.NoError(t, err)
	require.Equal(t, call, decoded)

	var args transferArgs
	require.NoError(t, decoded.DecodeArgs(&args))
	require.Equal(t, int64(10), args.Amount.Int64())

	h1, err := call.Hash()
	require.NoError(t, err)
	other, err := NewCall("bank", "transfer", transferArgs{To: [20]byte{1}, Amount: big.NewInt(11)})
	require.NoError(t, err)
	h2, err := other.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestDecodeCallRejectsGarbage(t *testing.T) {
	_, err := DecodeCall(nil)
	require.ErrorIs(t, err, ErrMalformedCall)
	_, err = DecodeCall([]byte{0xff, 0x01})
	require.ErrorIs(t, err, ErrMalformedCall)
}

func TestDecodeCallBoundsNesting(t *testing.T) {
	leaf, err := NewCall("bank", "transfer", transferArgs{Amount: big.NewInt(1)})
	require.NoError(t, err)

	call := leaf
	for i := 0; i < MaxDecodeDepth; i++ {
		call, err = NewBatch(call)
		require.NoError(t, err)
	}
	encoded, err := call.Encode()
	require.NoError(t, err)
	_, err = DecodeCall(encoded)
	require.NoError(t, err)

	call, err = NewBatch(call)
	require.NoError(t, err)
	encoded, err = call.Encode()
	require.NoError(t, err)
	_, err = DecodeCall(encoded)
	require.ErrorIs(t, err, ErrDecodeDepth)
}

func TestOriginGuards(t *testing.T) {
	signed := Signed([20]byte{9})
	acct, err := signed.EnsureSigned()
	require.NoError(t, err)
	require.Equal(t, [20]byte{9}, acct)
	_, err = signed.EnsureEntity()
	require.ErrorIs(t, err, ErrBadOrigin)
	require.ErrorIs(t, signed.EnsureRoot(), ErrBadOrigin)

	entity := Entity(4)
	id, err := entity.EnsureEntity()
	require.NoError(t, err)
	require.Equal(t, uint32(4), id)
	acct, err = entity.EnsureSigned()
	require.NoError(t, err)
	require.Equal(t, entity.Account, acct)

	_, err = Root().EnsureSigned()
	require.ErrorIs(t, err, ErrBadOrigin)
}
