package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"clawboard-backend/chain"
	coreindex "clawboard-backend/core/index"
)

var factoryAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

// fakeSource serves canned logs for whatever range is asked. When block is
// set, FilterLogs parks until the channel is closed.
type fakeSource struct {
	head    uint64
	logs    []types.Log
	headErr error
	logsErr error
	block   chan struct{}

	mu          sync.Mutex
	filterCalls int
	lastQuery   ethereum.FilterQuery
}

func (f *fakeSource) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterCalls
}

func (f *fakeSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	f.filterCalls++
	f.lastQuery = q
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	out := make([]types.Log, 0)
	for _, lg := range f.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

// memStore keeps the snapshot in memory and can fail saves on demand.
type memStore struct {
	snap    *coreindex.Snapshot
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (*coreindex.Snapshot, error) {
	if m.snap == nil {
		return coreindex.NewSnapshot(factoryAddr.Hex(), 8453, 100), nil
	}
	return m.snap, nil
}

func (m *memStore) Save(ctx context.Context, snap *coreindex.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = snap.Clone()
	return nil
}

func (m *memStore) Close() {}

func newTestIndexer(t *testing.T, source *fakeSource, store *memStore, opts Options) *Indexer {
	t.Helper()
	reg, err := chain.NewRegistry(factoryAddr.Hex(), 8453, 100)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	ix, err := New(context.Background(), source, reg, store, opts)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	return ix
}

func TestSyncAppliesBatchInOrder(t *testing.T) {
	// Two bounty creations land after the checkpoint; the later block carries
	// the earlier deadline, so deadline-ordered reads surface it first.
	source := &fakeSource{
		head: 102,
		logs: []types.Log{
			chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xaa"}, factoryAddr,
				"0xB000000000000000000000000000000000000001",
				"0x4000000000000000000000000000000000000001",
				"0x7000000000000000000000000000000000000001",
				big.NewInt(1000), 2000, nil),
			chain.BountyCreatedLog(chain.LogMeta{Block: 102, LogIndex: 0, TxHash: "0xbb"}, factoryAddr,
				"0xB000000000000000000000000000000000000002",
				"0x4000000000000000000000000000000000000001",
				"0x7000000000000000000000000000000000000001",
				big.NewInt(2000), 1000, nil),
		},
	}
	store := &memStore{}
	ix := newTestIndexer(t, source, store, Options{})

	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if got := ix.LastBlock(); got != 102 {
		t.Errorf("lastBlock = %d, want 102", got)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if store.snap.LastBlock != 102 {
		t.Errorf("persisted lastBlock = %d, want 102", store.snap.LastBlock)
	}

	open := ix.OpenBounties(coreindex.BountyFilter{})
	if len(open) != 2 {
		t.Fatalf("open bounties = %d, want 2", len(open))
	}
	if open[0].Address != "0xb000000000000000000000000000000000000002" {
		t.Errorf("first bounty = %s, want the one with the earlier deadline", open[0].Address)
	}
	if open[1].Address != "0xb000000000000000000000000000000000000001" {
		t.Errorf("second bounty = %s", open[1].Address)
	}

	t.Run("filter targets only the factory", func(t *testing.T) {
		if len(source.lastQuery.Addresses) != 1 || source.lastQuery.Addresses[0] != factoryAddr {
			t.Errorf("query addresses = %v", source.lastQuery.Addresses)
		}
		if source.lastQuery.FromBlock.Uint64() != 101 {
			t.Errorf("fromBlock = %s, want 101", source.lastQuery.FromBlock)
		}
	})
}

func TestSyncNoNewBlocksIsNoop(t *testing.T) {
	source := &fakeSource{head: 100}
	store := &memStore{}
	ix := newTestIndexer(t, source, store, Options{})

	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if source.filterCalls != 0 {
		t.Errorf("filterCalls = %d, want 0 when head is at the checkpoint", source.filterCalls)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
}

func TestSyncConcurrentCallsShareOnePass(t *testing.T) {
	release := make(chan struct{})
	source := &fakeSource{head: 101, block: release}
	ix := newTestIndexer(t, source, &memStore{}, Options{})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = ix.Sync(context.Background())
	}()

	// Wait until the first pass is parked inside FilterLogs, then pile the
	// rest of the callers on behind it.
	deadline := time.Now().Add(2 * time.Second)
	for source.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first sync never reached FilterLogs")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for i := 1; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ix.Sync(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}
	if got := source.calls(); got != 1 {
		t.Errorf("filterCalls = %d, want 1; waiting callers must share the in-flight pass", got)
	}
	if got := ix.LastBlock(); got != 101 {
		t.Errorf("lastBlock = %d, want 101", got)
	}
}

func TestSyncCapsBlockRange(t *testing.T) {
	source := &fakeSource{head: 100_000}
	store := &memStore{}
	ix := newTestIndexer(t, source, store, Options{MaxBlockRange: 500})

	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := source.lastQuery.ToBlock.Uint64(); got != 600 {
		t.Errorf("toBlock = %d, want 600", got)
	}
	if got := ix.LastBlock(); got != 600 {
		t.Errorf("lastBlock = %d, want 600 after capped batch", got)
	}

	// A second pass picks up where the first stopped.
	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if got := source.lastQuery.FromBlock.Uint64(); got != 601 {
		t.Errorf("second fromBlock = %d, want 601", got)
	}
}

func TestSyncRPCFailureLeavesCheckpoint(t *testing.T) {
	source := &fakeSource{head: 200, logsErr: errors.New("rpc down")}
	store := &memStore{}
	ix := newTestIndexer(t, source, store, Options{})

	if err := ix.Sync(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}
	if got := ix.LastBlock(); got != 100 {
		t.Errorf("lastBlock = %d, want unchanged 100", got)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0 after failed batch", store.saves)
	}
}

func TestSyncPersistFailureLeavesSnapshot(t *testing.T) {
	source := &fakeSource{
		head: 101,
		logs: []types.Log{
			chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xaa"}, factoryAddr,
				"0xB000000000000000000000000000000000000001",
				"0x4000000000000000000000000000000000000001",
				"0x7000000000000000000000000000000000000001",
				big.NewInt(1000), 2000, nil),
		},
	}
	store := &memStore{saveErr: errors.New("disk full")}
	ix := newTestIndexer(t, source, store, Options{})

	if err := ix.Sync(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}
	if got := ix.LastBlock(); got != 100 {
		t.Errorf("lastBlock = %d, want unchanged 100", got)
	}
	if len(ix.OpenBounties(coreindex.BountyFilter{})) != 0 {
		t.Error("unpersisted events leaked into the read snapshot")
	}
}

func TestSyncSkipsBadLogsAndContinues(t *testing.T) {
	good := chain.BountyCreatedLog(chain.LogMeta{Block: 102, LogIndex: 1, TxHash: "0xbb"}, factoryAddr,
		"0xB000000000000000000000000000000000000002",
		"0x4000000000000000000000000000000000000001",
		"0x7000000000000000000000000000000000000001",
		big.NewInt(2000), 1000, nil)

	bad := chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xaa"}, factoryAddr,
		"0xB000000000000000000000000000000000000001",
		"0x4000000000000000000000000000000000000001",
		"0x7000000000000000000000000000000000000001",
		big.NewInt(1000), 2000, nil)
	bad.Data = bad.Data[:4] // undecodable

	foreign := types.Log{
		Address:     factoryAddr,
		Topics:      []common.Hash{common.HexToHash("0xdeadbeef")},
		BlockNumber: 101,
		Index:       1,
	}

	// Claim for a bounty the snapshot never saw created.
	orphan := chain.BountyClaimedLog(chain.LogMeta{Block: 101, LogIndex: 2, TxHash: "0xcc"}, factoryAddr,
		"0xB00000000000000000000000000000000000000f",
		"0x4000000000000000000000000000000000000002")

	source := &fakeSource{head: 102, logs: []types.Log{good, bad, foreign, orphan}}
	store := &memStore{}
	ix := newTestIndexer(t, source, store, Options{})

	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := ix.LastBlock(); got != 102 {
		t.Errorf("lastBlock = %d, want 102; bad logs must not wedge the batch", got)
	}
	open := ix.OpenBounties(coreindex.BountyFilter{})
	if len(open) != 1 || open[0].Address != "0xb000000000000000000000000000000000000002" {
		t.Errorf("open bounties = %+v, want only the decodable one", open)
	}
}

func TestAwaitIndexed(t *testing.T) {
	t.Run("already indexed returns immediately", func(t *testing.T) {
		source := &fakeSource{
			head: 101,
			logs: []types.Log{
				chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xAAbb"}, factoryAddr,
					"0xB000000000000000000000000000000000000001",
					"0x4000000000000000000000000000000000000001",
					"0x7000000000000000000000000000000000000001",
					big.NewInt(1000), 2000, nil),
			},
		}
		ix := newTestIndexer(t, source, &memStore{}, Options{})
		if err := ix.Sync(context.Background()); err != nil {
			t.Fatalf("sync: %v", err)
		}

		// Hash matching is case-insensitive.
		txHash := "0x" + strings.ToUpper(common.HexToHash("0xAAbb").Hex()[2:])
		if !ix.AwaitIndexed(context.Background(), txHash) {
			t.Error("expected already-synced transaction to report indexed")
		}
	})

	t.Run("sync inside the wait picks up the transaction", func(t *testing.T) {
		source := &fakeSource{
			head: 101,
			logs: []types.Log{
				chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xcc"}, factoryAddr,
					"0xB000000000000000000000000000000000000001",
					"0x4000000000000000000000000000000000000001",
					"0x7000000000000000000000000000000000000001",
					big.NewInt(1000), 2000, nil),
			},
		}
		ix := newTestIndexer(t, source, &memStore{}, Options{AwaitTimeout: 2 * time.Second})

		if !ix.AwaitIndexed(context.Background(), common.HexToHash("0xcc").Hex()) {
			t.Error("expected transaction to be picked up by the in-wait sync")
		}
	})

	t.Run("unknown transaction times out false", func(t *testing.T) {
		source := &fakeSource{head: 100}
		ix := newTestIndexer(t, source, &memStore{}, Options{
			AwaitTimeout:  200 * time.Millisecond,
			AwaitInterval: 50 * time.Millisecond,
		})

		start := time.Now()
		if ix.AwaitIndexed(context.Background(), "0xdoesnotexist") {
			t.Error("expected timeout to report not indexed")
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("returned after %s, want the full timeout window", elapsed)
		}
	})

	t.Run("empty hash is rejected", func(t *testing.T) {
		ix := newTestIndexer(t, &fakeSource{head: 100}, &memStore{}, Options{})
		if ix.AwaitIndexed(context.Background(), "  ") {
			t.Error("blank hash must not report indexed")
		}
	})
}

func TestSeenTxEvictsOldest(t *testing.T) {
	ix := newTestIndexer(t, &fakeSource{head: 100}, &memStore{}, Options{})

	ix.mu.Lock()
	for i := 0; i < maxSeenTx+10; i++ {
		ix.rememberTxLocked(fmt.Sprintf("0x%06x", i))
	}
	// Duplicates never grow the set.
	ix.rememberTxLocked(fmt.Sprintf("0x%06x", maxSeenTx+9))
	ix.mu.Unlock()

	if got := len(ix.seenTx); got != maxSeenTx {
		t.Errorf("seenTx size = %d, want capped at %d", got, maxSeenTx)
	}
	if got := len(ix.seenOrder); got != maxSeenTx {
		t.Errorf("seenOrder size = %d, want %d", got, maxSeenTx)
	}
	if ix.TxIndexed(fmt.Sprintf("0x%06x", 0)) {
		t.Error("oldest hash should have been evicted")
	}
	if !ix.TxIndexed(fmt.Sprintf("0x%06x", maxSeenTx+9)) {
		t.Error("newest hash should still be present")
	}
}

func TestSnapshotIsStableAcrossSync(t *testing.T) {
	source := &fakeSource{
		head: 101,
		logs: []types.Log{
			chain.BountyCreatedLog(chain.LogMeta{Block: 101, LogIndex: 0, TxHash: "0xaa"}, factoryAddr,
				"0xB000000000000000000000000000000000000001",
				"0x4000000000000000000000000000000000000001",
				"0x7000000000000000000000000000000000000001",
				big.NewInt(1000), 2000, nil),
		},
	}
	ix := newTestIndexer(t, source, &memStore{}, Options{})

	before := ix.Snapshot()
	if err := ix.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(before.Bounties) != 0 {
		t.Error("snapshot held across a sync was mutated")
	}
	if len(ix.Snapshot().Bounties) != 1 {
		t.Error("new snapshot missing applied events")
	}
}
