package node

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"daochain/core/dispatch"
	"daochain/core/runtime"
	"daochain/native/bank"
	"daochain/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChain seals at most capacity extrinsics per block.
type fakeChain struct {
	mu       sync.Mutex
	height   uint64
	capacity int
	blocks   [][]runtime.Extrinsic
	fail     error
}

func (f *fakeChain) Height() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

func (f *fakeChain) ProcessBlock(_ context.Context, height uint64, exts []runtime.Extrinsic) (*runtime.BlockResult, []runtime.Extrinsic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, exts, f.fail
	}
	var deferred []runtime.Extrinsic
	if f.capacity > 0 && len(exts) > f.capacity {
		deferred = exts[f.capacity:]
		exts = exts[:f.capacity]
	}
	result := &runtime.BlockResult{Height: height}
	for i, ext := range exts {
		result.Receipts = append(result.Receipts, &runtime.Receipt{Height: height, Index: uint32(i), Hash: ext.Hash(), Success: true})
	}
	f.blocks = append(f.blocks, exts)
	f.height = height
	return result, deferred, nil
}

func ext(signer byte, payload ...byte) runtime.Extrinsic {
	return runtime.Extrinsic{Signer: [20]byte{signer}, Call: append([]byte{0xc0}, payload...)}
}

func TestPoolAdmission(t *testing.T) {
	pool := NewPool(PoolConfig{MaxPending: 3, MaxCallBytes: 4, Quota: Quota{MaxPending: 2}})

	_, err := pool.Add(runtime.Extrinsic{Signer: [20]byte{1}})
	require.ErrorIs(t, err, ErrEmptyCall)
	_, err = pool.Add(ext(1, 1, 2, 3, 4))
	require.ErrorIs(t, err, ErrCallTooBig)

	_, err = pool.Add(ext(1, 1))
	require.NoError(t, err)
	_, err = pool.Add(ext(1, 1))
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = pool.Add(ext(1, 2))
	require.NoError(t, err)
	_, err = pool.Add(ext(1, 3))
	require.ErrorIs(t, err, ErrQuotaPendingExceeded)

	_, err = pool.Add(ext(2, 1))
	require.NoError(t, err)
	_, err = pool.Add(ext(3, 1))
	require.ErrorIs(t, err, ErrPoolFull)

	drained := pool.Drain()
	require.Len(t, drained, 3)
	require.Equal(t, [20]byte{1}, drained[0].Signer)
	require.Equal(t, QuotaUsage{}, pool.Usage([20]byte{1}))
	require.Zero(t, pool.Len())
}

func TestRequeueKeepsDeferredAhead(t *testing.T) {
	pool := NewPool(PoolConfig{})
	_, err := pool.Add(ext(1, 1))
	require.NoError(t, err)
	deferred := pool.Drain()

	_, err = pool.Add(ext(2, 1))
	require.NoError(t, err)
	pool.Requeue(deferred)

	pending := pool.Drain()
	require.Len(t, pending, 2)
	require.Equal(t, [20]byte{1}, pending[0].Signer)
	require.Equal(t, [20]byte{2}, pending[1].Signer)
}

func TestProduceBlockCarriesDeferredExtrinsics(t *testing.T) {
	chain := &fakeChain{capacity: 2}
	node := New(chain, NewPool(PoolConfig{}), time.Second, WithReceiptCapacity(3))

	var hashes [][32]byte
	for i := byte(1); i <= 3; i++ {
		hash, err := node.Submit(ext(i, i))
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}

	result, err := node.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Height)
	require.Len(t, result.Receipts, 2)
	require.Equal(t, 1, node.Pending())

	_, ok := node.Receipt(hashes[2])
	require.False(t, ok)

	_, err = node.Submit(ext(4, 4))
	require.NoError(t, err)
	result, err = node.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, result.Height)
	require.Equal(t, hashes[2], result.Receipts[0].Hash)
	require.Same(t, result, node.LastBlock())

	// capacity 3 evicts the oldest receipt
	_, ok = node.Receipt(hashes[0])
	require.False(t, ok)
	receipt, ok := node.Receipt(hashes[2])
	require.True(t, ok)
	require.EqualValues(t, 2, receipt.Height)
}

func TestRunStopsOnCancel(t *testing.T) {
	chain := &fakeChain{}
	node := New(chain, NewPool(PoolConfig{}), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	require.Eventually(t, func() bool { return chain.Height() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("block loop did not stop")
	}
}

func TestRunReturnsBlockFailure(t *testing.T) {
	boom := errors.New("disk gone")
	chain := &fakeChain{fail: boom}
	node := New(chain, NewPool(PoolConfig{}), time.Millisecond)

	_, err := node.Submit(ext(1, 1))
	require.NoError(t, err)
	err = node.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, node.Pending())
}

func TestNodeDrivesRuntime(t *testing.T) {
	alice, bob := [20]byte{1}, [20]byte{2}
	params := runtime.DefaultParams()
	rt, err := runtime.New(storage.NewMemDB(), params)
	require.NoError(t, err)
	require.NoError(t, rt.InitGenesis(context.Background(), runtime.Genesis{
		Balances: []runtime.GenesisBalance{{Account: alice, Asset: bank.AssetNative, Amount: big.NewInt(1_000)}},
	}))

	call, err := dispatch.NewCall(runtime.ModuleBank, "transfer", runtime.BankTransferArgs{To: bob, Amount: big.NewInt(400)})
	require.NoError(t, err)
	encoded, err := call.Encode()
	require.NoError(t, err)

	node := New(rt, NewPool(PoolConfig{MaxPending: 16}), time.Second)
	hash, err := node.Submit(runtime.Extrinsic{Signer: alice, Call: encoded})
	require.NoError(t, err)

	result, err := node.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Height)
	require.EqualValues(t, 1, rt.Height())

	receipt, ok := node.Receipt(hash)
	require.True(t, ok)
	require.True(t, receipt.Success, receipt.Error)

	acct, err := rt.Account(bank.AssetNative, bob)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400), acct.Free)
}

type recordingListener struct {
	heights []uint64
}

func (r *recordingListener) RecordBlock(_ context.Context, result *runtime.BlockResult) error {
	r.heights = append(r.heights, result.Height)
	if result.Height == 1 {
		return errors.New("archive offline")
	}
	return nil
}

func TestBlockListenerFailureDoesNotStopProduction(t *testing.T) {
	listener := &recordingListener{}
	node := New(&fakeChain{}, NewPool(PoolConfig{}), time.Second, WithBlockListener(listener))

	for i := 0; i < 2; i++ {
		_, err := node.ProduceBlock(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, []uint64{1, 2}, listener.heights)
}
