package node

import (
	"errors"
	"math"
)

var (
	ErrQuotaPendingExceeded = errors.New("node: signer pending quota exceeded")
	ErrQuotaBytesExceeded   = errors.New("node: signer byte quota exceeded")
	ErrQuotaCounterOverflow = errors.New("node: quota counter overflow")
)

// QuotaUsage captures what one signer currently holds in the pool.
type QuotaUsage struct {
	Pending uint32
	Bytes   uint64
}

// Quota bounds a single signer's share of the pool. Zero fields disable the
// corresponding limit.
type Quota struct {
	MaxPending uint32
	MaxBytes   uint64
}

// CheckQuota verifies whether additional pending extrinsics and call bytes
// fit within the quota. The returned usage reflects the updated counters
// when the quota is not exceeded; on failure prev is returned unchanged.
func CheckQuota(q Quota, prev QuotaUsage, addPending uint32, addBytes uint64) (QuotaUsage, error) {
	next := prev
	if addPending > 0 {
		if next.Pending > math.MaxUint32-addPending {
			return prev, ErrQuotaCounterOverflow
		}
		next.Pending += addPending
	}
	if q.MaxPending > 0 && next.Pending > q.MaxPending {
		return prev, ErrQuotaPendingExceeded
	}

	if addBytes > 0 {
		if next.Bytes > math.MaxUint64-addBytes {
			return prev, ErrQuotaCounterOverflow
		}
		next.Bytes += addBytes
	}
	if q.MaxBytes > 0 && next.Bytes > q.MaxBytes {
		return prev, ErrQuotaBytesExceeded
	}
	return next, nil
}

// release subtracts a removed extrinsic, saturating at zero.
func (u QuotaUsage) release(bytes uint64) QuotaUsage {
	if u.Pending > 0 {
		u.Pending--
	}
	if u.Bytes >= bytes {
		u.Bytes -= bytes
	} else {
		u.Bytes = 0
	}
	return u
}
