package staking

import (
	"errors"
	"math/big"
	"sort"
)

var errUnexpectedEra = errors.New("staking: stake info era is ahead of the current era")

// EraStake is the amount staked from Era onwards.
type EraStake struct {
	Staked *big.Int
	Era    uint32
}

// StakerInfo is a sparse history of one account's stake in one DAO. Eras are
// strictly increasing and the last entry is the current stake. Claiming
// consumes the history from the front.
type StakerInfo struct {
	Stakes []EraStake
}

// Latest returns the current staked amount.
func (s *StakerInfo) Latest() *big.Int {
	if len(s.Stakes) == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.Stakes[len(s.Stakes)-1].Staked)
}

// Len returns the number of history entries.
func (s *StakerInfo) Len() int { return len(s.Stakes) }

// IsEmpty reports whether the record can be dropped from state.
func (s *StakerInfo) IsEmpty() bool { return len(s.Stakes) == 0 }

func (s *StakerInfo) update(era uint32, staked *big.Int) error {
	if n := len(s.Stakes); n > 0 {
		last := &s.Stakes[n-1]
		if last.Era > era {
			return errUnexpectedEra
		}
		if last.Era == era {
			last.Staked = staked
			return nil
		}
	}
	s.Stakes = append(s.Stakes, EraStake{Staked: staked, Era: era})
	return nil
}

// Stake adds value to the current stake as of era.
func (s *StakerInfo) Stake(era uint32, value *big.Int) error {
	return s.update(era, new(big.Int).Add(s.Latest(), value))
}

// Unstake removes value from the current stake as of era, saturating at
// zero. A leading zero entry carries no claimable reward and is dropped.
func (s *StakerInfo) Unstake(era uint32, value *big.Int) error {
	next := new(big.Int).Sub(s.Latest(), value)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	if err := s.update(era, next); err != nil {
		return err
	}
	if len(s.Stakes) > 0 && s.Stakes[0].Staked.Sign() == 0 {
		s.Stakes = s.Stakes[1:]
	}
	return nil
}

// Claim returns the oldest unclaimed era with its stake and advances the
// history by exactly one era.
func (s *StakerInfo) Claim() (uint32, *big.Int) {
	if len(s.Stakes) == 0 {
		return 0, big.NewInt(0)
	}
	first := s.Stakes[0]
	if len(s.Stakes) == 1 || s.Stakes[1].Era > first.Era+1 {
		s.Stakes[0] = EraStake{Staked: new(big.Int).Set(first.Staked), Era: first.Era + 1}
	} else {
		s.Stakes = s.Stakes[1:]
	}
	kept := s.Stakes[:0]
	for _, stake := range s.Stakes {
		if stake.Staked.Sign() != 0 {
			kept = append(kept, stake)
		}
	}
	s.Stakes = kept
	return first.Era, new(big.Int).Set(first.Staked)
}

// UnlockingChunk is stake waiting out the unbonding period.
type UnlockingChunk struct {
	Amount    *big.Int
	UnlockEra uint32
}

// AccountLedger tracks everything an account has locked for staking. Locked
// covers active stake and unbonding chunks until they are withdrawn.
type AccountLedger struct {
	Locked    *big.Int
	Unbonding []UnlockingChunk
}

// NewAccountLedger returns an empty ledger.
func NewAccountLedger() *AccountLedger {
	return &AccountLedger{Locked: big.NewInt(0)}
}

// IsEmpty reports whether the record can be dropped from state.
func (l *AccountLedger) IsEmpty() bool {
	return (l.Locked == nil || l.Locked.Sign() == 0) && len(l.Unbonding) == 0
}

// AddChunk inserts chunk keeping the list sorted by unlock era, merging
// chunks that unlock in the same era.
func (l *AccountLedger) AddChunk(chunk UnlockingChunk) {
	idx := sort.Search(len(l.Unbonding), func(i int) bool {
		return l.Unbonding[i].UnlockEra >= chunk.UnlockEra
	})
	if idx < len(l.Unbonding) && l.Unbonding[idx].UnlockEra == chunk.UnlockEra {
		l.Unbonding[idx].Amount = new(big.Int).Add(l.Unbonding[idx].Amount, chunk.Amount)
		return
	}
	l.Unbonding = append(l.Unbonding, UnlockingChunk{})
	copy(l.Unbonding[idx+1:], l.Unbonding[idx:])
	l.Unbonding[idx] = UnlockingChunk{Amount: new(big.Int).Set(chunk.Amount), UnlockEra: chunk.UnlockEra}
}

// Partition splits the chunks into those unlocked by era and the rest.
func (l *AccountLedger) Partition(era uint32) (matured, pending []UnlockingChunk) {
	for _, chunk := range l.Unbonding {
		if chunk.UnlockEra <= era {
			matured = append(matured, chunk)
		} else {
			pending = append(pending, chunk)
		}
	}
	return matured, pending
}

// SumChunks totals chunk amounts.
func SumChunks(chunks []UnlockingChunk) *big.Int {
	total := big.NewInt(0)
	for _, chunk := range chunks {
		total.Add(total, chunk.Amount)
	}
	return total
}

// DaoStakeInfo aggregates the stake behind one DAO in one era.
type DaoStakeInfo struct {
	Total           *big.Int
	NumberOfStakers uint32
	RewardClaimed   bool
	Active          bool
}

// NewDaoStakeInfo returns an empty aggregate.
func NewDaoStakeInfo() *DaoStakeInfo {
	return &DaoStakeInfo{Total: big.NewInt(0)}
}

// RewardInfo splits rewards between the DAO and staker pools.
type RewardInfo struct {
	Dao     *big.Int
	Stakers *big.Int
}

// NewRewardInfo returns an empty split.
func NewRewardInfo() RewardInfo {
	return RewardInfo{Dao: big.NewInt(0), Stakers: big.NewInt(0)}
}

// EraInfo is the global staking snapshot of one era. ActiveStake is the sum
// of totals of active DAOs and is the denominator of the DAO pool split.
type EraInfo struct {
	Rewards     RewardInfo
	Staked      *big.Int
	Locked      *big.Int
	ActiveStake *big.Int
}

// NewEraInfo returns an empty snapshot.
func NewEraInfo() *EraInfo {
	return &EraInfo{Rewards: NewRewardInfo(), Staked: big.NewInt(0), Locked: big.NewInt(0), ActiveStake: big.NewInt(0)}
}

// DaoRegistration is a DAO's entry in the staking registry.
type DaoRegistration struct {
	DaoID       uint32
	Account     [20]byte
	Name        []byte
	Description []byte
	Image       []byte
	Deposit     *big.Int
}

// UnregisterMessage is deferred work for unwinding the stakers of an
// unregistered DAO. StakersToUnstake is the residual count; Cursor is the
// position of the next entry in the DAO's unregistration snapshot.
type UnregisterMessage struct {
	DaoID            uint32
	Era              uint32
	StakersToUnstake uint32
	Cursor           uint32
}
