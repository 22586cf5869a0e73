package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"clawboard-backend/chain"
	coreindex "clawboard-backend/core/index"
	idxstore "clawboard-backend/storage/index"
)

// Options tune the sync engine. Zero values pick the defaults.
type Options struct {
	MaxBlockRange uint64        // cap on blocks fetched per sync call
	AwaitTimeout  time.Duration // hard deadline for AwaitIndexed
	AwaitInterval time.Duration // initial AwaitIndexed poll interval
}

const (
	defaultMaxBlockRange = 5000
	defaultAwaitTimeout  = 15 * time.Second
	defaultAwaitInterval = 250 * time.Millisecond
	maxAwaitInterval     = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxBlockRange == 0 {
		o.MaxBlockRange = defaultMaxBlockRange
	}
	if o.AwaitTimeout == 0 {
		o.AwaitTimeout = defaultAwaitTimeout
	}
	if o.AwaitInterval == 0 {
		o.AwaitInterval = defaultAwaitInterval
	}
	return o
}

// Indexer owns one domain's snapshot: Sync is the single writer path, query
// methods are the readers. Published snapshots are never mutated again, so
// readers holding one across a sync still see a consistent batch.
type Indexer struct {
	source chain.LogSource
	reg    chain.Registry
	store  idxstore.Store
	opts   Options

	mu        sync.RWMutex
	snap      *coreindex.Snapshot
	seenTx    map[string]struct{}
	seenOrder []string

	group singleflight.Group
}

// maxSeenTx bounds the observed-transaction set; AwaitIndexed only ever asks
// about recent submissions, so the oldest hashes are safe to forget.
const maxSeenTx = 4096

// rememberTxLocked records an observed transaction hash, evicting the oldest
// once the set is full. Callers hold ix.mu.
func (ix *Indexer) rememberTxLocked(tx string) {
	if _, ok := ix.seenTx[tx]; ok {
		return
	}
	ix.seenTx[tx] = struct{}{}
	ix.seenOrder = append(ix.seenOrder, tx)
	for len(ix.seenOrder) > maxSeenTx {
		delete(ix.seenTx, ix.seenOrder[0])
		ix.seenOrder = ix.seenOrder[1:]
	}
}

// New loads the persisted snapshot (failing open to a fresh one per the
// store's contract) and returns a ready indexer.
func New(ctx context.Context, source chain.LogSource, reg chain.Registry, store idxstore.Store, opts Options) (*Indexer, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}
	lastSyncedBlock.Set(float64(snap.LastBlock))
	return &Indexer{
		source: source,
		reg:    reg,
		store:  store,
		opts:   opts.withDefaults(),
		snap:   snap,
		seenTx: make(map[string]struct{}),
	}, nil
}

// Sync fetches logs from lastBlock+1 through the chain head (capped per
// call), applies them in (blockNumber, logIndex) order, and persists the
// result before readers can see it. Concurrent callers share one in-flight
// pass. An RPC failure aborts the whole batch: the checkpoint does not move
// and the last good snapshot stays in place.
func (ix *Indexer) Sync(ctx context.Context) error {
	_, err, _ := ix.group.Do("sync", func() (interface{}, error) {
		return nil, ix.syncOnce(ctx)
	})
	return err
}

func (ix *Indexer) syncOnce(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { observeSync(err, started) }()

	head, err := ix.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain head: %w", err)
	}

	snap := ix.Snapshot()
	from := snap.LastBlock + 1
	if head < from {
		return nil
	}
	to := head
	if span := snap.LastBlock + ix.opts.MaxBlockRange; to > span {
		to = span
	}

	logs, err := ix.source.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ix.reg.FactoryAddress},
	})
	if err != nil {
		return fmt.Errorf("fetch logs %d-%d: %w", from, to, err)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	work := snap.Clone()
	seen := make([]string, 0, len(logs))
	applied := 0
	for _, lg := range logs {
		ev, decErr := chain.DecodeLog(lg)
		if decErr != nil {
			logsSkippedTotal.WithLabelValues("decode_error").Inc()
			log.WithError(decErr).WithFields(log.Fields{
				"block":     lg.BlockNumber,
				"log_index": lg.Index,
			}).Warn("skipping undecodable log")
			continue
		}
		if unk, ok := ev.(coreindex.Unrecognized); ok {
			logsSkippedTotal.WithLabelValues("unrecognized").Inc()
			log.WithFields(log.Fields{
				"block":     unk.BlockNumber,
				"log_index": unk.LogIndex,
				"topic":     unk.Topic,
			}).Warn("skipping unrecognized event")
			continue
		}
		if work.Apply(ev) {
			applied++
			eventsAppliedTotal.Inc()
		} else {
			logsSkippedTotal.WithLabelValues("orphaned").Inc()
			log.WithFields(log.Fields{
				"block":     ev.Meta().BlockNumber,
				"log_index": ev.Meta().LogIndex,
			}).Warn("event references a record the snapshot has never seen")
		}
		seen = append(seen, ev.Meta().TxHash)
	}
	work.LastBlock = to

	if err := ix.store.Save(ctx, work); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	ix.mu.Lock()
	ix.snap = work
	for _, tx := range seen {
		ix.rememberTxLocked(tx)
	}
	ix.mu.Unlock()
	lastSyncedBlock.Set(float64(to))

	log.WithFields(log.Fields{
		"from":    from,
		"to":      to,
		"logs":    len(logs),
		"applied": applied,
	}).Debug("sync batch complete")
	return nil
}

// Snapshot returns the current snapshot. Callers must treat it as read-only.
func (ix *Indexer) Snapshot() *coreindex.Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snap
}

// LastBlock reports the checkpoint.
func (ix *Indexer) LastBlock() uint64 {
	return ix.Snapshot().LastBlock
}

// TxIndexed reports whether the sync engine has observed an event from the
// given transaction since this process started.
func (ix *Indexer) TxIndexed(txHash string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.seenTx[strings.ToLower(txHash)]
	return ok
}

// AwaitIndexed polls (triggering sync passes) until an event from txHash has
// been applied, or the timeout lapses. It reports whether the transaction was
// observed; it never returns an error, because the transaction itself already
// succeeded on-chain and a stale local view must not fail the caller's
// operation.
func (ix *Indexer) AwaitIndexed(ctx context.Context, txHash string) bool {
	txHash = strings.ToLower(strings.TrimSpace(txHash))
	if txHash == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, ix.opts.AwaitTimeout)
	defer cancel()

	interval := ix.opts.AwaitInterval
	for {
		if ix.TxIndexed(txHash) {
			return true
		}
		if err := ix.Sync(ctx); err != nil {
			log.WithError(err).Debug("sync failed while awaiting transaction")
		}
		if ix.TxIndexed(txHash) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
		if interval *= 2; interval > maxAwaitInterval {
			interval = maxAwaitInterval
		}
	}
}

// Read-side pass-throughs to the pure snapshot queries.

func (ix *Indexer) OpenBounties(f coreindex.BountyFilter) []coreindex.BountyRecord {
	return ix.Snapshot().OpenBounties(f)
}

func (ix *Indexer) BountyByAddress(addr string) *coreindex.BountyRecord {
	return ix.Snapshot().BountyByAddress(addr)
}

func (ix *Indexer) Challenges(f coreindex.ChallengeFilter) []coreindex.ChallengeRecord {
	return ix.Snapshot().ListChallenges(f)
}

func (ix *Indexer) ChallengeByAddress(addr string) *coreindex.ChallengeRecord {
	return ix.Snapshot().ChallengeByAddress(addr)
}

func (ix *Indexer) ChallengeLeaderboard(addr string, limit int) []coreindex.SubmissionRecord {
	return ix.Snapshot().ChallengeLeaderboard(addr, limit)
}

func (ix *Indexer) AgentByID(agentID string) *coreindex.AgentRecord {
	return ix.Snapshot().AgentByID(agentID)
}

func (ix *Indexer) AgentChallengeHistory(agentID string) []coreindex.Participation {
	return ix.Snapshot().AgentChallengeHistory(agentID)
}

func (ix *Indexer) AgentChallengeStats(agentID string) coreindex.AgentStats {
	return ix.Snapshot().AgentChallengeStats(agentID)
}
