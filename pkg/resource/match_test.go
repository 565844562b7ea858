package resource

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	serrors "github.com/vango-dev/stakeview/internal/errors"
)

func screen() Handlers[int, string] {
	return Handlers[int, string]{
		Loading: func() string { return "loading" },
		Error:   func(err error) string { return "error: " + err.Error() },
		Data: func(v *int) (string, error) {
			if v == nil {
				return "empty", nil
			}
			return fmt.Sprintf("value %d", *v), nil
		},
	}
}

func TestMatchPrecedence(t *testing.T) {
	v := 7
	boom := errors.New("boom")

	tests := []struct {
		name  string
		state State[int]
		want  string
	}{
		{"data", Of(7), "value 7"},
		{"loading without data", Pending[int](), "loading"},
		{"loading with stale data", State[int]{Loading: true, Data: &v}, "loading"},
		{"error", Failed[int](boom), "error: boom"},
		{"error with stale data", State[int]{Err: boom, Data: &v}, "error: boom"},
		{"error while loading", State[int]{Loading: true, Err: boom}, "error: boom"},
		{"settled without data", State[int]{}, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.state, screen()))
		})
	}
}

func TestMatchDataFailures(t *testing.T) {
	var got error
	h := Handlers[int, string]{
		Error: func(err error) string {
			got = err
			return "failed"
		},
		Data: func(*int) (string, error) { return "", errors.New("cannot render") },
	}
	assert.Equal(t, "failed", Match(Of(1), h))
	assert.True(t, serrors.HasCode(got, serrors.CodeRenderFailed))

	h.Data = func(v *int) (string, error) { return fmt.Sprint(*v + 1), nil }
	assert.NotPanics(t, func() {
		assert.Equal(t, "failed", Match(State[int]{}, h))
	})
	assert.True(t, serrors.HasCode(got, serrors.CodeTransformPanic))
}

func TestMatchNilHandlers(t *testing.T) {
	assert.Equal(t, "", Match(Pending[int](), Handlers[int, string]{}))
	assert.Equal(t, "", Match(Failed[int](errors.New("x")), Handlers[int, string]{}))
	assert.Equal(t, "", Match(Of(1), Handlers[int, string]{}))
}

func TestMatchMerged(t *testing.T) {
	v := 1
	m := Merge(State[int]{Loading: true, Data: &v}, Failed[string](errors.New("pool missing")))
	out := Match(m, Handlers[Tuple, string]{
		Loading: func() string { return "loading" },
		Error:   func(err error) string { return err.Error() },
	})
	assert.Equal(t, "pool missing", out)
}
