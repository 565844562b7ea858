package resource

import (
	"github.com/vango-dev/stakeview/internal/errors"
)

// Handlers are the three outcomes of Match. A nil handler yields the zero R.
type Handlers[T, R any] struct {
	Loading func() R
	Error   func(error) R
	Data    func(*T) (R, error)
}

// Match dispatches s to exactly one handler, in this order:
//
//  1. Err is set: Error.
//  2. Loading is true: Loading, even when stale data is present.
//  3. Otherwise: Data, with the data pointer (which may be nil).
//
// If Data returns an error or panics, the failure is passed to Error, so
// failures found while consuming data are reported like fetch failures.
func Match[T, R any](s State[T], h Handlers[T, R]) R {
	switch {
	case s.Err != nil:
		return h.onError(s.Err)
	case s.Loading:
		if h.Loading == nil {
			var zero R
			return zero
		}
		return h.Loading()
	}

	if h.Data == nil {
		var zero R
		return zero
	}
	r, err := catch(errors.CodeTransformPanic, func() (R, error) {
		return h.Data(s.Data)
	})
	if err != nil {
		return h.onError(renderError(err))
	}
	return r
}

func (h Handlers[T, R]) onError(err error) R {
	if h.Error == nil {
		var zero R
		return zero
	}
	return h.Error(err)
}

func renderError(err error) error {
	if errors.HasCode(err, errors.CodeTransformPanic) {
		return err
	}
	return errors.New(errors.CodeRenderFailed).Wrap(err)
}
