package node

import (
	"errors"
	"fmt"
	"sync"

	"daochain/core/runtime"
)

var (
	ErrPoolFull   = errors.New("node: pool full")
	ErrDuplicate  = errors.New("node: extrinsic already pending")
	ErrEmptyCall  = errors.New("node: empty call")
	ErrCallTooBig = errors.New("node: call exceeds size limit")
)

// PoolConfig bounds the pending pool.
type PoolConfig struct {
	MaxPending   int
	MaxCallBytes int
	Quota        Quota
}

// Pool holds submitted extrinsics in arrival order until a block takes them.
// It is safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	cfg      PoolConfig
	queue    []runtime.Extrinsic
	hashes   map[[32]byte]struct{}
	bySigner map[[20]byte]QuotaUsage
}

func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:      cfg,
		hashes:   make(map[[32]byte]struct{}),
		bySigner: make(map[[20]byte]QuotaUsage),
	}
}

// Add admits ext and returns its hash.
func (p *Pool) Add(ext runtime.Extrinsic) ([32]byte, error) {
	hash := ext.Hash()
	if len(ext.Call) == 0 {
		return hash, ErrEmptyCall
	}
	if p.cfg.MaxCallBytes > 0 && len(ext.Call) > p.cfg.MaxCallBytes {
		return hash, fmt.Errorf("%w: %d > %d bytes", ErrCallTooBig, len(ext.Call), p.cfg.MaxCallBytes)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hashes[hash]; ok {
		return hash, ErrDuplicate
	}
	if p.cfg.MaxPending > 0 && len(p.queue) >= p.cfg.MaxPending {
		return hash, ErrPoolFull
	}
	usage, err := CheckQuota(p.cfg.Quota, p.bySigner[ext.Signer], 1, uint64(len(ext.Call)))
	if err != nil {
		return hash, err
	}
	p.bySigner[ext.Signer] = usage
	p.hashes[hash] = struct{}{}
	p.queue = append(p.queue, copyExtrinsic(ext))
	return hash, nil
}

// Drain removes and returns every pending extrinsic in arrival order.
func (p *Pool) Drain() []runtime.Extrinsic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = nil
	for _, ext := range out {
		p.forget(ext)
	}
	return out
}

// Requeue puts extrinsics that did not fit in a block back at the front of
// the pool, ahead of anything submitted meanwhile. Quotas are not checked
// again.
func (p *Pool) Requeue(exts []runtime.Extrinsic) {
	if len(exts) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	front := make([]runtime.Extrinsic, 0, len(exts)+len(p.queue))
	for _, ext := range exts {
		hash := ext.Hash()
		if _, ok := p.hashes[hash]; ok {
			continue
		}
		p.hashes[hash] = struct{}{}
		usage := p.bySigner[ext.Signer]
		usage.Pending++
		usage.Bytes += uint64(len(ext.Call))
		p.bySigner[ext.Signer] = usage
		front = append(front, ext)
	}
	p.queue = append(front, p.queue...)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Usage reports what signer currently holds in the pool.
func (p *Pool) Usage(signer [20]byte) QuotaUsage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bySigner[signer]
}

func (p *Pool) forget(ext runtime.Extrinsic) {
	delete(p.hashes, ext.Hash())
	usage := p.bySigner[ext.Signer].release(uint64(len(ext.Call)))
	if usage == (QuotaUsage{}) {
		delete(p.bySigner, ext.Signer)
		return
	}
	p.bySigner[ext.Signer] = usage
}

func copyExtrinsic(ext runtime.Extrinsic) runtime.Extrinsic {
	return runtime.Extrinsic{Signer: ext.Signer, Call: append([]byte(nil), ext.Call...)}
}
