package staking

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

func expectHistory(t *testing.T, info *StakerInfo, want ...[2]int64) {
	t.Helper()
	got := make([][2]int64, 0, len(info.Stakes))
	for _, s := range info.Stakes {
		got = append(got, [2]int64{s.Staked.Int64(), int64(s.Era)})
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected history %v, got %v", want, got)
	}
}

func expectClaim(t *testing.T, info *StakerInfo, era uint32, staked int64) {
	t.Helper()
	gotEra, gotStaked := info.Claim()
	if gotEra != era || gotStaked.Int64() != staked {
		t.Fatalf("expected claim of %d in era %d, got %s in era %d", staked, era, gotStaked, gotEra)
	}
}

func TestStakerInfoStakeCollapsesSameEra(t *testing.T) {
	info := &StakerInfo{}
	if err := info.Stake(1, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := info.Stake(1, big.NewInt(50)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	expectHistory(t, info, [2]int64{150, 1})

	if err := info.Stake(3, big.NewInt(10)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	expectHistory(t, info, [2]int64{150, 1}, [2]int64{160, 3})
	if info.Latest().Int64() != 160 {
		t.Fatalf("expected latest 160, got %s", info.Latest())
	}

	if err := info.Stake(2, big.NewInt(1)); !errors.Is(err, errUnexpectedEra) {
		t.Fatalf("expected errUnexpectedEra on stake, got %v", err)
	}
	if err := info.Unstake(2, big.NewInt(1)); !errors.Is(err, errUnexpectedEra) {
		t.Fatalf("expected errUnexpectedEra on unstake, got %v", err)
	}
}

func TestStakerInfoUnstakeDropsLeadingZero(t *testing.T) {
	info := &StakerInfo{}
	if err := info.Stake(4, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := info.Unstake(4, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if !info.IsEmpty() {
		t.Fatalf("expected empty history, got %d entries", info.Len())
	}

	if err := info.Stake(5, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := info.Unstake(6, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	expectHistory(t, info, [2]int64{100, 5}, [2]int64{0, 6})
	if info.Latest().Sign() != 0 {
		t.Fatalf("expected zero latest, got %s", info.Latest())
	}
}

func TestStakerInfoClaimAdvancesOneEra(t *testing.T) {
	info := &StakerInfo{}
	if err := info.Stake(1, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := info.Stake(4, big.NewInt(50)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	expectClaim(t, info, 1, 100)
	expectHistory(t, info, [2]int64{100, 2}, [2]int64{150, 4})

	expectClaim(t, info, 2, 100)
	expectClaim(t, info, 3, 100)
	expectHistory(t, info, [2]int64{150, 4})

	expectClaim(t, info, 4, 150)
	expectHistory(t, info, [2]int64{150, 5})
}

func TestStakerInfoClaimDropsExitedPosition(t *testing.T) {
	info := &StakerInfo{}
	if err := info.Stake(1, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := info.Unstake(2, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	expectClaim(t, info, 1, 100)
	if !info.IsEmpty() {
		t.Fatalf("expected exited position to be dropped, got %d entries", info.Len())
	}
	if _, staked := info.Claim(); staked.Sign() != 0 {
		t.Fatalf("expected nothing left to claim, got %s", staked)
	}
}

func TestLedgerChunksMergeAndPartition(t *testing.T) {
	ledger := NewAccountLedger()
	ledger.AddChunk(UnlockingChunk{Amount: big.NewInt(10), UnlockEra: 5})
	ledger.AddChunk(UnlockingChunk{Amount: big.NewInt(20), UnlockEra: 3})
	ledger.AddChunk(UnlockingChunk{Amount: big.NewInt(5), UnlockEra: 5})
	ledger.AddChunk(UnlockingChunk{Amount: big.NewInt(1), UnlockEra: 9})

	if len(ledger.Unbonding) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(ledger.Unbonding))
	}
	if ledger.Unbonding[0].UnlockEra != 3 {
		t.Fatalf("expected earliest chunk first, got era %d", ledger.Unbonding[0].UnlockEra)
	}
	if ledger.Unbonding[1].Amount.Int64() != 15 {
		t.Fatalf("expected merged chunk of 15, got %s", ledger.Unbonding[1].Amount)
	}

	for era := uint32(0); era < 12; era++ {
		matured, pending := ledger.Partition(era)
		for _, chunk := range matured {
			if chunk.UnlockEra > era {
				t.Fatalf("era %d: chunk unlocking at %d reported matured", era, chunk.UnlockEra)
			}
		}
		for _, chunk := range pending {
			if chunk.UnlockEra <= era {
				t.Fatalf("era %d: chunk unlocking at %d reported pending", era, chunk.UnlockEra)
			}
		}
		if total := new(big.Int).Add(SumChunks(matured), SumChunks(pending)); total.Int64() != 36 {
			t.Fatalf("era %d: expected partition total 36, got %s", era, total)
		}
	}
}

func TestIsActiveIsStrict(t *testing.T) {
	params := DefaultParams()
	params.StakeThresholdForActiveDao = big.NewInt(1_000)
	for _, tc := range []struct {
		total int64
		want  bool
	}{{999, false}, {1_000, false}, {1_001, true}} {
		if got := params.IsActive(big.NewInt(tc.total)); got != tc.want {
			t.Fatalf("IsActive(%d) = %v, want %v", tc.total, got, tc.want)
		}
	}
}
