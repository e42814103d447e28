package common

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Perbill is a fraction in [0, 1] expressed in parts per billion.
type Perbill uint32

const (
	perbillAccuracy = 1_000_000_000
	// PerbillOne is the fraction 1.
	PerbillOne Perbill = perbillAccuracy
)

var perbillDenominator = uint256.NewInt(perbillAccuracy)

// ErrInvalidPerbill is returned for raw parts above one billion.
var ErrInvalidPerbill = errors.New("perbill: value exceeds one")

// PerbillFromPercent converts a whole percentage, saturating at 100.
func PerbillFromPercent(percent uint32) Perbill {
	if percent >= 100 {
		return PerbillOne
	}
	return Perbill(percent * (perbillAccuracy / 100))
}

// PerbillFromParts validates raw parts per billion.
func PerbillFromParts(parts uint32) (Perbill, error) {
	if parts > perbillAccuracy {
		return 0, fmt.Errorf("%w: %d parts exceed one", ErrInvalidPerbill, parts)
	}
	return Perbill(parts), nil
}

// PerbillFromRational returns floor(n / d) as a fraction, saturating at one
// when n >= d. A zero denominator yields zero so that an empty supply never
// satisfies a threshold.
func PerbillFromRational(n, d *big.Int) Perbill {
	if n == nil || d == nil || d.Sign() <= 0 || n.Sign() <= 0 {
		return 0
	}
	if n.Cmp(d) >= 0 {
		return PerbillOne
	}
	num, overflowN := uint256.FromBig(n)
	den, overflowD := uint256.FromBig(d)
	if !overflowN && !overflowD {
		parts, overflow := new(uint256.Int).MulDivOverflow(num, perbillDenominator, den)
		if !overflow {
			return Perbill(parts.Uint64())
		}
	}
	parts := new(big.Int).Mul(n, big.NewInt(perbillAccuracy))
	parts.Quo(parts, d)
	return Perbill(parts.Uint64())
}

// Mul returns floor(x * p).
func (p Perbill) Mul(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 || p == 0 {
		return big.NewInt(0)
	}
	if p >= PerbillOne {
		return new(big.Int).Set(x)
	}
	value, overflow := uint256.FromBig(x)
	if !overflow {
		out, overflow := new(uint256.Int).MulDivOverflow(value, uint256.NewInt(uint64(p)), perbillDenominator)
		if !overflow {
			return out.ToBig()
		}
	}
	out := new(big.Int).Mul(x, big.NewInt(int64(p)))
	return out.Quo(out, big.NewInt(perbillAccuracy))
}

// Parts returns the raw parts per billion.
func (p Perbill) Parts() uint32 { return uint32(p) }

func (p Perbill) String() string {
	return fmt.Sprintf("%d.%07d%%", uint32(p)/10_000_000, uint32(p)%10_000_000)
}
