package era

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderMonotonic(t *testing.T) {
	var p Provider
	_, ok := p.CurrentIndex()
	assert.False(t, ok)

	assert.True(t, p.Set(0))
	idx, ok := p.CurrentIndex()
	assert.True(t, ok)
	assert.Equal(t, uint64(0), idx)

	assert.True(t, p.Set(10))
	assert.False(t, p.Set(10))
	assert.False(t, p.Set(9))
	idx, _ = p.CurrentIndex()
	assert.Equal(t, uint64(10), idx)
}

func TestProviderSubscribe(t *testing.T) {
	p := NewProvider(nil)
	var got []uint64
	unsubscribe := p.Subscribe(func(n uint64) { got = append(got, n) })

	p.Set(1)
	p.Set(1)
	p.Set(3)
	unsubscribe()
	p.Set(4)

	assert.Equal(t, []uint64{1, 3}, got)
}

func TestProviderConcurrentSet(t *testing.T) {
	var p Provider
	var wg sync.WaitGroup
	for i := uint64(1); i <= 100; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			p.Set(n)
		}(i)
	}
	wg.Wait()

	idx, ok := p.CurrentIndex()
	assert.True(t, ok)
	assert.Equal(t, uint64(100), idx)
}

func TestProviderDeliversInOrder(t *testing.T) {
	p := NewProvider(nil)
	var (
		mu      sync.Mutex
		got     []uint64
		active  int
		overlap bool
	)
	p.Subscribe(func(n uint64) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		got = append(got, n)
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := uint64(1); i <= 200; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			p.Set(n)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap)
	require.NotEmpty(t, got)
	assert.Equal(t, uint64(200), got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestProviderSetFromListener(t *testing.T) {
	p := NewProvider(nil)
	var got []uint64
	p.Subscribe(func(n uint64) {
		got = append(got, n)
		if n == 1 {
			assert.True(t, p.Set(2))
		}
	})

	p.Set(1)
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestProviderDrivesResolution(t *testing.T) {
	p := NewProvider(nil)
	v := staged(5, 10, 20)

	assertPair(t, Resolve(v, p), 10, 20)
	p.Set(5)
	assertPair(t, Resolve(v, p), 10, 20)
	p.Set(6)
	assertPair(t, Resolve(v, p), 20, 20)

	assert.Equal(t, "20", Resolve(v, p).Current.String())
	assert.Equal(t, 0, Resolve(v, p).Current.Cmp(big.NewInt(20)))
}
