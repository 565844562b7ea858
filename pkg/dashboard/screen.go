package dashboard

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/stakeview/pkg/resource"
	"github.com/vango-dev/stakeview/pkg/source/blob"
	"github.com/vango-dev/stakeview/pkg/source/chain"
	"github.com/vango-dev/stakeview/pkg/source/indexer"
)

// ValidatorSource serves validator records and reward history.
type ValidatorSource interface {
	Validator(ctx context.Context, id string) (indexer.Validator, error)
	Rewards(ctx context.Context, id string) ([]indexer.Reward, error)
}

// PoolSource serves on-chain pool registrations and stake shares.
type PoolSource interface {
	PoolState(ctx context.Context, id chain.PoolID) (chain.PoolState, error)
	StakeShare(ctx context.Context, id chain.PoolID) (*big.Rat, error)
}

// poolCounter is implemented by pool sources that can count registered
// pools.
type poolCounter interface {
	PoolCount(ctx context.Context) (int, error)
}

// screen is the long-lived set of resources behind one validator page. It
// owns a scope; disposing the scope tears every resource down.
type screen struct {
	id    string
	scope *resource.Scope

	validator *resource.Scheduler[indexer.Validator]
	rewards   *resource.Scheduler[[]indexer.Reward]
	// pool is nil without a PoolSource or when id is not a pool id.
	pool  *resource.Scheduler[chain.PoolState]
	share *resource.Scheduler[*big.Rat]
	// metadata is nil without a blob store.
	metadata *resource.Scheduler[blob.PoolMetadata]

	syncMu   sync.Mutex
	digestMu sync.Mutex
	digest   blob.Digest

	lastUsed atomic.Int64
}

func newScreen(parent *resource.Scope, id string, deps screenDeps) *screen {
	s := &screen{
		id:    id,
		scope: resource.NewScope(parent),
	}
	s.touch()

	opts := func(name string) []resource.Option {
		return []resource.Option{
			resource.WithName(name),
			resource.WithLogger(deps.logger.With("validator", id)),
			resource.WithMetrics(deps.metrics),
			resource.WithTracer(deps.tracer),
			resource.Lazy(),
		}
	}

	s.validator = resource.New(s.scope, func() resource.Fetch[indexer.Validator] {
		return func(ctx context.Context) (indexer.Validator, error) {
			return deps.validators.Validator(ctx, id)
		}
	}, opts("validator")...)
	s.rewards = resource.New(s.scope, resource.FactoryOf(func(ctx context.Context) ([]indexer.Reward, error) {
		return deps.validators.Rewards(ctx, id)
	}), opts("rewards")...)

	if deps.pools != nil {
		if poolID, err := chain.ParsePoolID(id); err == nil {
			s.pool = resource.New(s.scope, resource.FactoryOf(func(ctx context.Context) (chain.PoolState, error) {
				return deps.pools.PoolState(ctx, poolID)
			}), opts("pool")...)
			s.share = resource.New(s.scope, resource.FactoryOf(func(ctx context.Context) (*big.Rat, error) {
				return deps.pools.StakeShare(ctx, poolID)
			}), opts("stake_share")...)
		}
	}

	if deps.blobs != nil {
		s.metadata = resource.New(s.scope, resource.Keyed(s.currentDigest,
			func(ctx context.Context, d blob.Digest) (blob.PoolMetadata, error) {
				return blob.FetchPoolMetadata(ctx, deps.blobs, d)
			}), opts("metadata")...)
		s.scope.OnCleanup(s.validator.Subscribe(func(resource.State[indexer.Validator]) { s.syncDigest() }))
		if s.pool != nil {
			s.scope.OnCleanup(s.pool.Subscribe(func(resource.State[chain.PoolState]) { s.syncDigest() }))
		}
	}

	s.validator.Start()
	s.rewards.Start()
	if s.pool != nil {
		s.pool.Start()
		s.share.Start()
	}
	return s
}

type screenDeps struct {
	validators ValidatorSource
	pools      PoolSource
	blobs      blob.Store
	metrics    *resource.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// syncDigest points the metadata resource at the digest the pool registration
// names, falling back to the indexer's hash. The metadata fetch only reruns
// when the digest actually changes.
func (s *screen) syncDigest() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var d blob.Digest
	if s.pool != nil {
		if st, ok := s.pool.State().Value(); ok && st.Params.Metadata != nil {
			d, _ = blob.DigestFromBytes(st.Params.Metadata.Hash)
		}
	}
	if d == (blob.Digest{}) {
		if v, ok := s.validator.State().Value(); ok && v.MetadataHash != "" {
			d, _ = blob.ParseDigest(v.MetadataHash)
		}
	}

	s.digestMu.Lock()
	s.digest = d
	s.digestMu.Unlock()
	s.metadata.Deps(hex.EncodeToString(d[:]))
}

func (s *screen) currentDigest() blob.Digest {
	s.digestMu.Lock()
	defer s.digestMu.Unlock()
	return s.digest
}

// refetch reloads every era-dependent resource, keeping the current data on
// display until the new data arrives.
func (s *screen) refetch() {
	s.validator.Refetch(resource.RetainCurrent())
	s.rewards.Refetch(resource.RetainCurrent())
	if s.pool != nil {
		s.pool.Refetch(resource.RetainCurrent())
		s.share.Refetch(resource.RetainCurrent())
	}
}

// subscribe calls fn after any resource of the screen changes and returns a
// func that removes every subscription.
func (s *screen) subscribe(fn func()) func() {
	unsubs := []func(){
		s.validator.Subscribe(func(resource.State[indexer.Validator]) { fn() }),
		s.rewards.Subscribe(func(resource.State[[]indexer.Reward]) { fn() }),
	}
	if s.pool != nil {
		unsubs = append(unsubs,
			s.pool.Subscribe(func(resource.State[chain.PoolState]) { fn() }),
			s.share.Subscribe(func(resource.State[*big.Rat]) { fn() }),
		)
	}
	if s.metadata != nil {
		unsubs = append(unsubs, s.metadata.Subscribe(func(resource.State[blob.PoolMetadata]) { fn() }))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// settled reports whether no resource of the screen is loading. The
// metadata digest is synced once the others have settled, so an outcome
// whose listener has not run yet still counts as pending metadata.
func (s *screen) settled() bool {
	if s.validator.State().Loading || s.rewards.State().Loading {
		return false
	}
	if s.pool != nil && (s.pool.State().Loading || s.share.State().Loading) {
		return false
	}
	if s.metadata != nil {
		s.syncDigest()
		if s.metadata.State().Loading {
			return false
		}
	}
	return true
}

func (s *screen) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *screen) close() {
	s.scope.Dispose()
}
