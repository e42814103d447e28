package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferCollectsPayloadsInOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(StakingHaltChanged{Halted: true})
	buf.Emit(MultisigCancelled{DaoID: 3, CallHash: [32]byte{0xaa}})

	got := buf.Events()
	require.Len(t, got, 2)
	require.Equal(t, TypeStakingHaltChanged, got[0].Type)
	require.Equal(t, "true", got[0].Attributes["halted"])
	require.Equal(t, TypeMultisigCancelled, got[1].Type)
	require.Equal(t, "3", got[1].Attributes["daoId"])

	child := Buffer{}
	child.Emit(Transfer{Asset: "Native", Amount: big.NewInt(5)})
	buf.Append(child.Events()...)
	require.Len(t, buf.Events(), 3)
	require.Equal(t, "native", buf.Events()[2].Attributes["asset"])

	buf.Reset()
	require.Empty(t, buf.Events())
}

func TestMultisigExecutedOmitsEmptyResult(t *testing.T) {
	evt := MultisigExecuted{DaoID: 1, Success: true}.Event()
	_, ok := evt.Attributes["result"]
	require.False(t, ok)

	evt = MultisigExecuted{DaoID: 1, Result: "bank: insufficient balance"}.Event()
	require.Equal(t, "false", evt.Attributes["success"])
	require.Equal(t, "bank: insufficient balance", evt.Attributes["result"])
}
