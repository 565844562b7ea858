package resource

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/stakeview/internal/errors"
)

// Generation identifies one fetch of a Scheduler. Generations are minted in
// strictly increasing order; exactly one is current at any time.
type Generation uint64

// Fetch performs one unit of asynchronous work. The context is cancelled
// once the generation is superseded or torn down; honoring it is optional,
// since the outcome of a stale generation is dropped either way.
type Fetch[T any] func(ctx context.Context) (T, error)

// Factory produces the Fetch for a new generation. It is called
// synchronously by Start and Refetch. Returning nil means there is no work
// to do (for example, a required id is absent): no generation is minted and
// the state is left as it is.
type Factory[T any] func() Fetch[T]

// FactoryOf returns a Factory that always runs fetch.
func FactoryOf[T any](fetch Fetch[T]) Factory[T] {
	return func() Fetch[T] {
		return fetch
	}
}

// Keyed returns a Factory that reads key on every start and runs fetch with
// it, or does nothing while key returns the zero value.
func Keyed[K comparable, T any](key func() K, fetch func(ctx context.Context, k K) (T, error)) Factory[T] {
	return func() Fetch[T] {
		var zero K
		k := key()
		if k == zero {
			return nil
		}
		return func(ctx context.Context) (T, error) {
			return fetch(ctx, k)
		}
	}
}

// Scheduler owns the lifecycle of one resource.
type Scheduler[T any] struct {
	factory Factory[T]
	name    string
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	ctx     context.Context

	mu      sync.Mutex
	state   State[T]
	gen     Generation
	cancel  context.CancelFunc
	deps    []any
	hasDeps bool
	torn    bool

	listeners    map[uint64]func(State[T])
	nextListener uint64
	pending      []State[T]
	draining     bool

	wg sync.WaitGroup
}

// New creates a Scheduler for factory owned by scope and starts it, unless
// the Lazy option is given. The scheduler is torn down when scope is
// disposed. A nil scope means the caller owns teardown.
func New[T any](scope *Scope, factory Factory[T], opts ...Option) *Scheduler[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Scheduler[T]{
		factory:   factory,
		name:      o.name,
		logger:    o.logger.With("resource", o.name),
		metrics:   o.metrics,
		tracer:    o.tracer,
		ctx:       context.Background(),
		deps:      o.deps,
		hasDeps:   o.hasDeps,
		listeners: make(map[uint64]func(State[T])),
	}
	if scope != nil {
		s.ctx = scope.Context()
		scope.OnCleanup(s.Teardown)
	}
	if !o.lazy {
		s.Start()
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Scheduler[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the current generation, 0 before the first start.
func (s *Scheduler[T]) Generation() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Subscribe registers fn to receive every state change, in mutation order.
// fn runs outside the scheduler lock and may call back into the scheduler.
// The returned func unsubscribes.
func (s *Scheduler[T]) Subscribe(fn func(State[T])) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Start begins a new generation, leaving any current data visible.
func (s *Scheduler[T]) Start() {
	s.run(false)
}

// Refetch begins a new generation. By default the data is cleared before
// the generation starts; with RetainCurrent the previous data stays visible
// while loading.
func (s *Scheduler[T]) Refetch(opts ...RefetchOption) {
	var o refetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	s.run(!o.retain)
}

// Deps re-runs Start when keys differ from the keys of the previous call.
// The first call always starts unless WithDeps recorded the same keys.
// It reports whether a start was triggered.
func (s *Scheduler[T]) Deps(keys ...any) bool {
	s.mu.Lock()
	if s.torn || (s.hasDeps && sameKeys(s.deps, keys)) {
		s.mu.Unlock()
		return false
	}
	s.deps = slices.Clone(keys)
	s.hasDeps = true
	s.mu.Unlock()

	s.Start()
	return true
}

// Teardown invalidates the current generation without touching the visible
// state. Outcomes arriving afterwards are dropped, and later Start, Refetch
// and Deps calls do nothing.
func (s *Scheduler[T]) Teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	clear(s.listeners)
	s.pending = nil
	s.mu.Unlock()

	s.logger.Debug("resource torn down")
}

// Wait blocks until every fetch started so far, including superseded ones,
// has returned.
func (s *Scheduler[T]) Wait() {
	s.wg.Wait()
}

func (s *Scheduler[T]) run(clearData bool) {
	s.mu.Lock()
	torn := s.torn
	s.mu.Unlock()
	if torn {
		return
	}

	fetch, err := catch(errors.CodeFetchPanic, func() (Fetch[T], error) {
		return s.factory(), nil
	})
	if err == nil && fetch == nil {
		s.metrics.skip(s.name)
		s.logger.Debug("factory has no work, skipping")
		return
	}

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if clearData {
		s.state.Data = nil
	}

	if err != nil {
		// The factory itself panicked: the generation fails immediately.
		s.state.Loading = false
		s.state.Err = err
		s.enqueueLocked()
		s.mu.Unlock()
		s.metrics.outcome(s.name, err)
		s.logger.Debug("factory failed", "generation", uint64(gen), "error", err)
		s.flush()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.state.Loading = true
	s.state.Err = nil
	s.enqueueLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.generationStarted(s.name)
	s.logger.Debug("generation started", "generation", uint64(gen), "retain", !clearData)
	s.flush()

	go s.execute(ctx, cancel, gen, fetch)
}

func (s *Scheduler[T]) execute(ctx context.Context, cancel context.CancelFunc, gen Generation, fetch Fetch[T]) {
	defer s.wg.Done()
	defer cancel()

	ctx, span := startSpan(ctx, s.tracer, s.name, gen)
	started := time.Now()
	v, err := catch(errors.CodeFetchPanic, func() (T, error) {
		return fetch(ctx)
	})
	s.metrics.fetchFinished(s.name, time.Since(started))

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.metrics.staleDiscarded(s.name)
		s.logger.Debug("discarding stale outcome", "generation", uint64(gen))
		endSpan(span, err, true)
		return
	}
	s.cancel = nil
	if err != nil {
		s.state.Loading = false
		s.state.Err = err
	} else {
		s.state = State[T]{Data: &v}
	}
	s.enqueueLocked()
	s.mu.Unlock()

	s.metrics.outcome(s.name, err)
	if err != nil {
		s.logger.Debug("fetch failed", "generation", uint64(gen), "error", err)
	}
	endSpan(span, err, false)
	s.flush()
}

// enqueueLocked queues the current state for delivery to listeners.
func (s *Scheduler[T]) enqueueLocked() {
	if len(s.listeners) == 0 {
		return
	}
	s.pending = append(s.pending, s.state)
}

// flush delivers queued states in order. Only one goroutine drains at a
// time; a listener that mutates the scheduler re-enters here, finds the
// queue being drained and returns, and its state is delivered after the
// current one.
func (s *Scheduler[T]) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		listeners := make([]func(State[T]), 0, len(s.listeners))
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
		s.mu.Unlock()

		for _, fn := range listeners {
			s.deliver(fn, next)
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Scheduler[T]) deliver(fn func(State[T]), st State[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("resource listener panicked", "panic", r)
		}
	}()
	fn(st)
}
