package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type outcome struct {
	v   int
	err error
}

// gate hands out one controllable fetch per generation. Factories run
// synchronously, so calls[i] always belongs to the i-th generation.
type gate struct {
	mu    sync.Mutex
	calls []chan outcome
	ctxs  []context.Context
}

func (g *gate) factory() Factory[int] {
	return func() Fetch[int] {
		ch := make(chan outcome, 1)
		g.mu.Lock()
		idx := len(g.calls)
		g.calls = append(g.calls, ch)
		g.ctxs = append(g.ctxs, nil)
		g.mu.Unlock()

		return func(ctx context.Context) (int, error) {
			g.mu.Lock()
			g.ctxs[idx] = ctx
			g.mu.Unlock()
			o := <-ch
			return o.v, o.err
		}
	}
}

func (g *gate) release(i, v int, err error) {
	g.mu.Lock()
	ch := g.calls[i]
	g.mu.Unlock()
	ch <- outcome{v: v, err: err}
}

func (g *gate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *gate) ctx(i int) context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctxs[i]
}

func waitFor[T any](t *testing.T, s *Scheduler[T], cond func(State[T]) bool) State[T] {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(s.State())
	}, timeout, tick)
	return s.State()
}

func settled[T any](st State[T]) bool {
	return !st.Loading
}

const (
	timeout = time.Second
	tick    = time.Millisecond
)
