package resource

import (
	"fmt"

	"github.com/vango-dev/stakeview/internal/errors"
)

// catch runs fn and converts a panic into an error carrying code.
func catch[U any](code string, fn func() (U, error)) (u U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(code, r)
		}
	}()
	return fn()
}

func panicError(code string, r any) error {
	e := errors.New(code).WithDetail(fmt.Sprint(r))
	if cause, ok := r.(error); ok {
		e.Wrap(cause)
	}
	return e
}
