package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateAccessors(t *testing.T) {
	var empty State[string]
	assert.False(t, empty.Ready())
	assert.True(t, empty.Idle())
	assert.Equal(t, "none", empty.DataOr("none"))
	_, ok := empty.Value()
	assert.False(t, ok)

	ready := Of("pool1")
	assert.True(t, ready.Ready())
	v, ok := ready.Value()
	assert.True(t, ok)
	assert.Equal(t, "pool1", v)

	failed := Failed[string](errors.New("x"))
	assert.False(t, failed.Idle())
	assert.False(t, failed.Loading)

	pending := Pending[string]()
	assert.True(t, pending.Loading)
	assert.False(t, pending.Idle())
	assert.Nil(t, pending.Data)
}

func TestStateStatus(t *testing.T) {
	loading, err, data := Of(3).status()
	assert.False(t, loading)
	assert.NoError(t, err)
	assert.Equal(t, 3, data)

	loading, _, data = Pending[int]().status()
	assert.True(t, loading)
	assert.Nil(t, data)
}
