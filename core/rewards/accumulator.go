package rewards

import "math/big"

// Accumulator spreads the planned issuance of one era evenly over its
// blocks. The division remainder is paid one unit per block at the start
// of the era so the full plan is issued after Length blocks.
type Accumulator struct {
	Era             uint32
	Length          uint64
	BlocksProcessed uint64

	Planned *big.Int
	Accrued *big.Int

	base      *big.Int
	remainder uint64
}

// NewAccumulator initialises a fresh accumulator for the supplied era.
func NewAccumulator(era uint32, length uint64, planned *big.Int) *Accumulator {
	acc := &Accumulator{
		Era:     era,
		Length:  length,
		Planned: normalizeBig(planned),
		Accrued: big.NewInt(0),
		base:    big.NewInt(0),
	}
	if length == 0 {
		return acc
	}
	acc.base, acc.remainder = splitPerBlock(acc.Planned, new(big.Int).SetUint64(length))
	return acc
}

// AmountAt returns the issuance of the block at offset index into the era.
// Blocks past Length issue nothing.
func (a *Accumulator) AmountAt(index uint64) *big.Int {
	if a == nil || index >= a.Length {
		return big.NewInt(0)
	}
	amount := new(big.Int).Set(a.base)
	if index < a.remainder {
		amount.Add(amount, big.NewInt(1))
	}
	return amount
}

// AccrueBlock issues the next block of the era and returns its amount.
func (a *Accumulator) AccrueBlock() *big.Int {
	if a == nil || a.Length == 0 {
		return big.NewInt(0)
	}
	amount := a.AmountAt(a.BlocksProcessed)
	a.BlocksProcessed++
	a.Accrued.Add(a.Accrued, amount)
	return amount
}

func splitPerBlock(total, length *big.Int) (*big.Int, uint64) {
	if total == nil {
		return big.NewInt(0), 0
	}
	base := big.NewInt(0)
	remainder := big.NewInt(0)
	base.QuoRem(new(big.Int).Set(total), length, remainder)
	return base, remainder.Uint64()
}

func normalizeBig(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}
