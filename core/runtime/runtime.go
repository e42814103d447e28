package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"daochain/core/dispatch"
	"daochain/core/rewards"
	"daochain/core/state"
	"daochain/core/types"
	"daochain/crypto"
	"daochain/native/staking"
	"daochain/observability"
	"daochain/observability/otel"
	"daochain/storage"
	"daochain/storage/trie"
)

var (
	// ErrInvariantViolation wraps a panic raised while executing a call.
	ErrInvariantViolation = errors.New("runtime: invariant violation")
	// ErrBlockFull is returned when an extrinsic does not fit in the weight
	// left in the current block.
	ErrBlockFull = errors.New("runtime: block weight exhausted")
	// ErrNoBlock is returned when extrinsics are applied outside a block.
	ErrNoBlock = errors.New("runtime: no block in progress")
	// ErrBlockInProgress is returned when a block is initialised before the
	// previous one was finalised.
	ErrBlockInProgress = errors.New("runtime: block already in progress")
	// ErrHeightNotIncreasing is returned for a block height at or below the
	// last finalised one.
	ErrHeightNotIncreasing = errors.New("runtime: block height must increase")
)

// hookWeight is charged for the era tick and inflation at block start.
const hookWeight dispatch.Weight = 100_000

var heightKey = []byte("system/height")

// Extrinsic is a signed request to dispatch an encoded call.
type Extrinsic struct {
	Signer [20]byte
	Call   []byte
}

// Hash identifies the extrinsic by signer and call bytes.
func (x Extrinsic) Hash() [32]byte {
	buf := make([]byte, 0, len(x.Signer)+len(x.Call))
	buf = append(buf, x.Signer[:]...)
	buf = append(buf, x.Call...)
	return crypto.HashCall(buf)
}

// Receipt reports the outcome of one applied extrinsic. Events are only
// present for successful extrinsics.
type Receipt struct {
	Height  uint64
	Index   uint32
	Hash    [32]byte
	Call    string
	Success bool
	Error   string
	Weight  dispatch.Weight
	Events  []*types.Event
}

// BlockResult summarises a processed block.
type BlockResult struct {
	Height     uint64
	Era        uint32
	NewEra     bool
	Issued     *big.Int
	Weight     dispatch.Weight
	Receipts   []*Receipt
	Unregister staking.StepResult
	Events     []*types.Event
	// ExtrinsicsRoot commits to the hashes of the applied extrinsics in
	// order; ReceiptsRoot to their outcomes.
	ExtrinsicsRoot [32]byte
	ReceiptsRoot   [32]byte
}

// receiptLeaf is the part of a receipt the receipts root commits to.
type receiptLeaf struct {
	Hash    [32]byte
	Success bool
	Error   string
	Weight  uint64
}

func blockRoots(receipts []*Receipt) (extrinsics, outcomes [32]byte, err error) {
	hashes := make([][]byte, len(receipts))
	leaves := make([]receiptLeaf, len(receipts))
	for i, receipt := range receipts {
		hashes[i] = receipt.Hash[:]
		leaves[i] = receiptLeaf{Hash: receipt.Hash, Success: receipt.Success, Error: receipt.Error, Weight: uint64(receipt.Weight)}
	}
	if extrinsics, err = trie.OrderedRoot(hashes); err != nil {
		return extrinsics, outcomes, err
	}
	outcomes, err = trie.RLPRoot(leaves)
	return extrinsics, outcomes, err
}

// EventSink receives events of committed state changes in commit order.
type EventSink interface {
	Publish(height uint64, evts []*types.Event)
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used at call and block boundaries.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer overrides the tracer used for extrinsic and block spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithEventSink registers a subscriber for committed events.
func WithEventSink(sink EventSink) Option {
	return func(r *Runtime) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// Runtime executes extrinsics and block hooks against a database. All entry
// points are serialised; each extrinsic is all-or-nothing.
type Runtime struct {
	mu     sync.Mutex
	db     storage.Database
	params Params
	logger *slog.Logger
	tracer trace.Tracer
	sinks  []EventSink

	height  uint64
	inBlock bool
	block   *BlockResult
}

// New constructs a runtime over db. The database must be empty or carry the
// current state version.
func New(db storage.Database, params Params, opts ...Option) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("runtime: database required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := state.EnsureStateVersion(db, false); err != nil {
		return nil, err
	}
	r := &Runtime{
		db:     db,
		params: params,
		logger: slog.Default(),
		tracer: otel.Tracer("runtime"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := state.NewManager(db).KVGet(heightKey, &r.height); err != nil {
		return nil, fmt.Errorf("runtime: load height: %w", err)
	}
	return r, nil
}

// Params returns the runtime parameters.
func (r *Runtime) Params() Params { return r.params }

// Height returns the last finalised block height.
func (r *Runtime) Height() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

func (r *Runtime) publish(height uint64, evts []*types.Event) {
	if len(evts) == 0 {
		return
	}
	observability.Events().Record(evts)
	for _, sink := range r.sinks {
		sink.Publish(height, evts)
	}
}

// commit flushes a top-level scope into the database and publishes its
// events.
func (r *Runtime) commit(s *scope, height uint64) ([]*types.Event, error) {
	if err := s.db.Commit(); err != nil {
		return nil, fmt.Errorf("runtime: commit: %w", err)
	}
	evts := s.buffer.Events()
	r.publish(height, evts)
	return evts, nil
}

// InitializeBlock opens block height: it advances the era clock and issues
// the block's share of the era inflation to the staking pot.
func (r *Runtime) InitializeBlock(ctx context.Context, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inBlock {
		return ErrBlockInProgress
	}
	if height <= r.height && r.height != 0 {
		return fmt.Errorf("%w: %d after %d", ErrHeightNotIncreasing, height, r.height)
	}
	_, span := r.tracer.Start(ctx, "runtime.initialize_block", trace.WithAttributes(attribute.Int64("height", int64(height))))
	defer span.End()

	result := &BlockResult{Height: height, Issued: big.NewInt(0), Weight: hookWeight}
	s := newScope(r.db, r.params, 0)
	newEra, err := s.staking.OnInitialize(height)
	if err != nil {
		s.db.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("runtime: era tick: %w", err)
	}
	result.NewEra = newEra
	if result.Era, err = s.staking.CurrentEra(); err != nil {
		s.db.Discard()
		return err
	}
	issued, err := r.inflate(s, height, result.Era)
	if err != nil {
		// Issuance is best effort; a failed block reward must not stall the
		// chain.
		r.logger.Warn("block inflation skipped", "height", height, "era", result.Era, "error", err)
	} else {
		result.Issued = issued
	}
	evts, err := r.commit(s, height)
	if err != nil {
		return err
	}
	result.Events = append(result.Events, evts...)
	if newEra {
		r.logger.Info("new era", "era", result.Era, "height", height)
	}
	observability.Staking().SetEra(result.Era)

	r.inBlock = true
	r.block = result
	return nil
}

// inflate mints the block's share of the era's planned issuance into the
// staking pot. It runs in a nested scope so a failure leaves no partial
// deposit behind.
func (r *Runtime) inflate(s *scope, height uint64, era uint32) (*big.Int, error) {
	planned := r.params.Rewards.EmissionForEra(era)
	if planned.Sign() == 0 {
		return big.NewInt(0), nil
	}
	next, err := s.manager.StakingNextEraStartingBlock()
	if err != nil {
		return nil, err
	}
	length := r.params.Staking.BlocksPerEra
	if next < length || height+length < next {
		return big.NewInt(0), nil
	}
	index := height + length - next
	amount := rewards.NewAccumulator(era, length, planned).AmountAt(index)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := s.nested(func(child *scope) error { return child.staking.Rewards(amount) }); err != nil {
		return nil, err
	}
	return amount, nil
}

// ApplyExtrinsic dispatches one extrinsic in the open block. Call failures
// are reported in the receipt and leave no state behind; the returned error
// is reserved for extrinsics that cannot be included at all and for storage
// failures.
func (r *Runtime) ApplyExtrinsic(ctx context.Context, ext Extrinsic) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inBlock {
		return nil, ErrNoBlock
	}
	started := time.Now()
	receipt := &Receipt{
		Height: r.block.Height,
		Index:  uint32(len(r.block.Receipts)),
		Hash:   ext.Hash(),
	}

	call, err := dispatch.DecodeCall(ext.Call)
	var bound dispatch.Weight
	if err == nil {
		receipt.Call = call.Name()
		bound, err = weightBound(call, 0)
	}
	if err != nil {
		receipt.Error = err.Error()
		r.block.Receipts = append(r.block.Receipts, receipt)
		observability.Runtime().ObserveExtrinsic(receipt.Call, false, time.Since(started))
		r.logger.Warn("extrinsic rejected", "hash", fmt.Sprintf("%x", receipt.Hash), "error", err)
		return receipt, nil
	}
	if r.block.Weight+bound > r.params.BlockWeightLimit {
		return nil, fmt.Errorf("%w: %s needs %d, %d left", ErrBlockFull, receipt.Call, bound, r.params.BlockWeightLimit-r.block.Weight)
	}

	_, span := r.tracer.Start(ctx, "runtime.apply_extrinsic", trace.WithAttributes(
		attribute.String("call", receipt.Call),
		attribute.Int64("height", int64(receipt.Height)),
	))
	defer span.End()

	s := newScope(r.db, r.params, 0)
	post, err := s.run(dispatch.Signed(ext.Signer), call)
	receipt.Weight = post.ActualWeight
	if receipt.Weight == 0 {
		receipt.Weight = bound
	}
	if err != nil {
		s.db.Discard()
		receipt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("extrinsic failed", "call", receipt.Call, "signer", crypto.FromAccount(ext.Signer).String(), "error", err)
	} else {
		evts, commitErr := r.commit(s, receipt.Height)
		if commitErr != nil {
			return nil, commitErr
		}
		receipt.Success = true
		receipt.Events = evts
		r.logger.Debug("extrinsic applied", "call", receipt.Call, "weight", receipt.Weight, "events", len(evts))
	}
	r.block.Weight += receipt.Weight
	r.block.Receipts = append(r.block.Receipts, receipt)
	span.SetAttributes(attribute.Bool("success", receipt.Success), attribute.Int64("weight", int64(receipt.Weight)))
	observability.Runtime().ObserveExtrinsic(receipt.Call, receipt.Success, time.Since(started))
	return receipt, nil
}

// FinalizeBlock spends the weight left in the block on the unregistration
// queue, persists the block height and closes the block.
func (r *Runtime) FinalizeBlock(ctx context.Context) (*BlockResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inBlock {
		return nil, ErrNoBlock
	}
	result := r.block
	_, span := r.tracer.Start(ctx, "runtime.finalize_block", trace.WithAttributes(attribute.Int64("height", int64(result.Height))))
	defer span.End()

	s := newScope(r.db, r.params, 0)
	var remaining dispatch.Weight
	if result.Weight < r.params.BlockWeightLimit {
		remaining = r.params.BlockWeightLimit - result.Weight
	}
	step, err := s.staking.ProcessUnregisterQueue(remaining)
	if err != nil {
		s.db.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("runtime: unregister queue: %w", err)
	}
	result.Unregister = step
	result.Weight += step.Weight
	if result.ExtrinsicsRoot, result.ReceiptsRoot, err = blockRoots(result.Receipts); err != nil {
		s.db.Discard()
		return nil, fmt.Errorf("runtime: block roots: %w", err)
	}
	if err := s.manager.KVPut(heightKey, result.Height); err != nil {
		s.db.Discard()
		return nil, err
	}
	depth, err := s.manager.Queue(UnregisterTopic).Len()
	if err != nil {
		s.db.Discard()
		return nil, err
	}
	evts, err := r.commit(s, result.Height)
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, evts...)
	if step.Status != staking.StepIdle {
		observability.Staking().ObserveQueue(step.Status.String(), depth)
		r.logger.Info("unregister queue step", "dao", step.DaoID, "status", step.Status.String(), "processed", step.Processed, "remaining", step.Remaining)
	}
	observability.Runtime().ObserveBlock(result.Height, result.Weight)

	r.height = result.Height
	r.inBlock = false
	r.block = nil
	return result, nil
}

// ProcessBlock runs a whole block: initialisation, as many extrinsics as fit
// and finalisation. Extrinsics that did not fit are returned in order so the
// caller can carry them into the next block.
func (r *Runtime) ProcessBlock(ctx context.Context, height uint64, exts []Extrinsic) (*BlockResult, []Extrinsic, error) {
	if err := r.InitializeBlock(ctx, height); err != nil {
		return nil, exts, err
	}
	var deferred []Extrinsic
	for i, ext := range exts {
		if _, err := r.ApplyExtrinsic(ctx, ext); err != nil {
			if errors.Is(err, ErrBlockFull) {
				deferred = append(deferred, exts[i:]...)
				break
			}
			return nil, exts[i:], err
		}
	}
	result, err := r.FinalizeBlock(ctx)
	if err != nil {
		return nil, deferred, err
	}
	return result, deferred, nil
}
