package dao

import (
	"bytes"
	"math/big"
	"sort"

	"daochain/native/common"
)

// Vote is one voter's balance-weighted position.
type Vote struct {
	Aye    bool
	Weight *big.Int
}

func (v Vote) clone() *Vote {
	return &Vote{Aye: v.Aye, Weight: new(big.Int).Set(v.Weight)}
}

// VoteRecord pairs a voter with their vote.
type VoteRecord struct {
	Voter [20]byte
	Vote  Vote
}

// Tally is the running vote count of one proposal. Ayes and Nays are always
// the sums of the records; they are only changed together with a record.
// Records stay sorted by voter and hold at most Limit entries.
type Tally struct {
	Ayes    *big.Int
	Nays    *big.Int
	Records []VoteRecord
	Limit   uint32
}

// NewTally returns an empty tally bounded to limit voters.
func NewTally(limit uint32) *Tally {
	return &Tally{Ayes: big.NewInt(0), Nays: big.NewInt(0), Limit: limit}
}

func (t *Tally) normalize() {
	if t.Ayes == nil {
		t.Ayes = big.NewInt(0)
	}
	if t.Nays == nil {
		t.Nays = big.NewInt(0)
	}
}

func (t *Tally) search(voter [20]byte) (int, bool) {
	idx := sort.Search(len(t.Records), func(i int) bool {
		return bytes.Compare(t.Records[i].Voter[:], voter[:]) >= 0
	})
	return idx, idx < len(t.Records) && t.Records[idx].Voter == voter
}

func (t *Tally) bucket(aye bool) *big.Int {
	if aye {
		return t.Ayes
	}
	return t.Nays
}

// ProcessVote replaces the voter's record with vote, or removes it when vote
// is nil. It returns the record that was replaced, if any. On error the
// tally is left unchanged.
func (t *Tally) ProcessVote(voter [20]byte, vote *Vote) (*Vote, error) {
	t.normalize()
	idx, found := t.search(voter)
	if vote == nil && !found {
		return nil, ErrNotAVoter
	}
	if vote != nil && !found && uint32(len(t.Records)) >= t.Limit {
		return nil, ErrTooManyVoters
	}

	var previous *Vote
	if found {
		previous = t.Records[idx].Vote.clone()
		old := t.bucket(previous.Aye)
		old.Sub(old, previous.Weight)
		if old.Sign() < 0 {
			panic("dao: tally aggregate below recorded vote")
		}
	}

	switch {
	case vote == nil:
		t.Records = append(t.Records[:idx], t.Records[idx+1:]...)
	default:
		weight := big.NewInt(0)
		if vote.Weight != nil {
			weight.Set(vote.Weight)
		}
		next := t.bucket(vote.Aye)
		next.Add(next, weight)
		record := VoteRecord{Voter: voter, Vote: Vote{Aye: vote.Aye, Weight: weight}}
		if found {
			t.Records[idx] = record
		} else {
			t.Records = append(t.Records, VoteRecord{})
			copy(t.Records[idx+1:], t.Records[idx:])
			t.Records[idx] = record
		}
	}
	return previous, nil
}

// VoteOf returns the voter's current record.
func (t *Tally) VoteOf(voter [20]byte) (*Vote, bool) {
	idx, found := t.search(voter)
	if !found {
		return nil, false
	}
	return t.Records[idx].Vote.clone(), true
}

// Voters returns the number of recorded voters.
func (t *Tally) Voters() int { return len(t.Records) }

// Support is ayes over total issuance; zero issuance yields zero.
func (t *Tally) Support(issuance *big.Int) common.Perbill {
	t.normalize()
	return common.PerbillFromRational(t.Ayes, issuance)
}

// Approval is ayes over all cast weight; no votes yields zero.
func (t *Tally) Approval() common.Perbill {
	t.normalize()
	return common.PerbillFromRational(t.Ayes, new(big.Int).Add(t.Ayes, t.Nays))
}

// Clone returns a deep copy.
func (t *Tally) Clone() *Tally {
	t.normalize()
	out := &Tally{
		Ayes:    new(big.Int).Set(t.Ayes),
		Nays:    new(big.Int).Set(t.Nays),
		Records: make([]VoteRecord, len(t.Records)),
		Limit:   t.Limit,
	}
	for i, record := range t.Records {
		out.Records[i] = VoteRecord{Voter: record.Voter, Vote: *record.Vote.clone()}
	}
	return out
}
