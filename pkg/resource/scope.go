package resource

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scope owns schedulers and cleanups. When a Scope is disposed, its
// children are disposed first, then its cleanups run in reverse order, and
// every scheduler created in it is torn down.
//
// Scopes form a hierarchy that mirrors the screens consuming them.
type Scope struct {
	parent *Scope

	ctx    context.Context
	cancel context.CancelFunc

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	disposed atomic.Bool
}

// NewScope creates a Scope with the given parent.
// If parent is nil, creates a root Scope.
func NewScope(parent *Scope) *Scope {
	base := context.Background()
	if parent != nil {
		base = parent.ctx
	}
	ctx, cancel := context.WithCancel(base)
	s := &Scope{
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
	}
	if parent != nil && !parent.addChild(s) {
		s.Dispose()
	}
	return s
}

// Context returns a context that is cancelled when the Scope is disposed.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Parent returns the parent Scope, or nil for a root Scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed returns true if this Scope has been disposed.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

// addChild registers child, or reports false when s is already disposed.
func (s *Scope) addChild(child *Scope) bool {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	if s.disposed.Load() {
		return false
	}
	s.children = append(s.children, child)
	return true
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers fn to run when this Scope is disposed.
// On an already disposed Scope, fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	s.cleanupsMu.Lock()
	if s.disposed.Load() {
		s.cleanupsMu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.cleanupsMu.Unlock()
}

// Dispose tears the Scope down. Calling it again is a no-op.
func (s *Scope) Dispose() {
	s.cleanupsMu.Lock()
	if s.disposed.Swap(true) {
		s.cleanupsMu.Unlock()
		return
	}
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := s.children
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	s.cancel()
}
