package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"daochain/core/runtime"
)

// Chain is the part of the runtime the block loop drives.
type Chain interface {
	Height() uint64
	ProcessBlock(ctx context.Context, height uint64, exts []runtime.Extrinsic) (*runtime.BlockResult, []runtime.Extrinsic, error)
}

const defaultReceiptCapacity = 4_096

// Option customises a Node.
type Option func(*Node)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithReceiptCapacity bounds how many recent receipts stay queryable by
// hash.
func WithReceiptCapacity(capacity int) Option {
	return func(n *Node) {
		if capacity > 0 {
			n.receiptCap = capacity
		}
	}
}

// BlockListener is told about every sealed block, e.g. to archive it.
type BlockListener interface {
	RecordBlock(ctx context.Context, result *runtime.BlockResult) error
}

func WithBlockListener(listener BlockListener) Option {
	return func(n *Node) {
		if listener != nil {
			n.listeners = append(n.listeners, listener)
		}
	}
}

// Node is a single-producer dev chain: it collects extrinsics in a pool and
// seals a block on every tick.
type Node struct {
	chain     Chain
	pool      *Pool
	interval  time.Duration
	logger    *slog.Logger
	listeners []BlockListener

	mu         sync.RWMutex
	last       *runtime.BlockResult
	receipts   map[[32]byte]*runtime.Receipt
	order      [][32]byte
	receiptCap int
}

func New(chain Chain, pool *Pool, interval time.Duration, opts ...Option) *Node {
	n := &Node{
		chain:      chain,
		pool:       pool,
		interval:   interval,
		logger:     slog.Default(),
		receipts:   make(map[[32]byte]*runtime.Receipt),
		receiptCap: defaultReceiptCapacity,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Submit queues an extrinsic for the next block.
func (n *Node) Submit(ext runtime.Extrinsic) ([32]byte, error) {
	return n.pool.Add(ext)
}

func (n *Node) Pending() int { return n.pool.Len() }

// LastBlock returns the most recently sealed block, or nil before the first.
func (n *Node) LastBlock() *runtime.BlockResult {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last
}

// Receipt looks up a recent receipt by extrinsic hash.
func (n *Node) Receipt(hash [32]byte) (*runtime.Receipt, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	receipt, ok := n.receipts[hash]
	return receipt, ok
}

// ProduceBlock seals one block from the pending pool. Extrinsics the block
// had no room for go back to the front of the pool.
func (n *Node) ProduceBlock(ctx context.Context) (*runtime.BlockResult, error) {
	exts := n.pool.Drain()
	height := n.chain.Height() + 1
	result, deferred, err := n.chain.ProcessBlock(ctx, height, exts)
	n.pool.Requeue(deferred)
	if err != nil {
		return nil, err
	}
	n.record(result)
	for _, listener := range n.listeners {
		if err := listener.RecordBlock(ctx, result); err != nil {
			n.logger.Warn("block listener failed", "height", result.Height, "error", err)
		}
	}
	n.logger.Info("block sealed",
		"height", result.Height,
		"era", result.Era,
		"extrinsics", len(result.Receipts),
		"deferred", len(deferred),
		"weight", result.Weight)
	return result, nil
}

func (n *Node) record(result *runtime.BlockResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = result
	for _, receipt := range result.Receipts {
		if _, ok := n.receipts[receipt.Hash]; !ok {
			n.order = append(n.order, receipt.Hash)
		}
		n.receipts[receipt.Hash] = receipt
	}
	for len(n.order) > n.receiptCap {
		delete(n.receipts, n.order[0])
		n.order = n.order[1:]
	}
}

// Run seals blocks every interval until ctx is cancelled. A block that
// fails to process stops the loop since the runtime cannot continue past
// a half-applied block.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	n.logger.Info("block loop started", "interval", n.interval.String(), "height", n.chain.Height())
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("block loop stopped", "height", n.chain.Height())
			return nil
		case <-ticker.C:
			if _, err := n.ProduceBlock(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				n.logger.Error("block production failed", "height", n.chain.Height()+1, "error", err)
				return err
			}
		}
	}
}
