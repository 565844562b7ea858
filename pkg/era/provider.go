package era

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Provider holds the process-wide current era index. The index only moves
// forward: Set ignores values lower than or equal to the current one.
//
// The zero Provider is ready to use and reports an unknown index.
type Provider struct {
	index atomic.Uint64
	known atomic.Bool

	mu         sync.Mutex
	listeners  map[uint64]func(uint64)
	nextID     uint64
	pending    []uint64
	delivering bool
	logger     *slog.Logger
}

// NewProvider returns a Provider that logs index changes to logger.
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// CurrentIndex implements IndexReader.
func (p *Provider) CurrentIndex() (uint64, bool) {
	if !p.known.Load() {
		return 0, false
	}
	return p.index.Load(), true
}

// Set advances the index to n and notifies subscribers. It reports whether
// the index changed.
func (p *Provider) Set(n uint64) bool {
	p.mu.Lock()
	if p.known.Load() && n <= p.index.Load() {
		p.mu.Unlock()
		return false
	}
	p.index.Store(n)
	p.known.Store(true)
	p.pending = append(p.pending, n)
	if p.logger != nil {
		p.logger.Info("era index advanced", "era", n)
	}
	if p.delivering {
		p.mu.Unlock()
		return true
	}

	p.delivering = true
	for len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		listeners := make([]func(uint64), 0, len(p.listeners))
		for _, fn := range p.listeners {
			listeners = append(listeners, fn)
		}
		p.mu.Unlock()
		for _, fn := range listeners {
			fn(next)
		}
		p.mu.Lock()
	}
	p.delivering = false
	p.mu.Unlock()
	return true
}

// Subscribe registers fn to be called with every new index, in increasing
// order and never concurrently. Calls happen on the goroutine of the Set
// that started delivery; a Set that arrives while another is delivering
// queues its index and returns. The returned func unsubscribes.
func (p *Provider) Subscribe(fn func(uint64)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listeners == nil {
		p.listeners = make(map[uint64]func(uint64))
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}
