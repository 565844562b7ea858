package era

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPair(t *testing.T, got Current[*big.Int], current, after int64) {
	t.Helper()
	require.NotNil(t, got.Current)
	require.NotNil(t, got.After)
	assert.Equal(t, 0, got.Current.Cmp(big.NewInt(current)), "current = %s, want %d", got.Current, current)
	assert.Equal(t, 0, (*got.After).Cmp(big.NewInt(after)), "after = %s, want %d", *got.After, after)
}

func staged(e uint64, v, after int64) Value[*big.Int] {
	return Value[*big.Int]{Era: e, Value: big.NewInt(v), ValueAfter: big.NewInt(after)}
}

func TestResolveRules(t *testing.T) {
	t.Run("settled transition", func(t *testing.T) {
		assertPair(t, Resolve(staged(5, 10, 20), Fixed(6)), 20, 20)
	})
	t.Run("pending transition", func(t *testing.T) {
		assertPair(t, Resolve(staged(5, 10, 20), Fixed(5)), 10, 20)
	})
	t.Run("no pending change", func(t *testing.T) {
		assertPair(t, Resolve(staged(5, 10, 10), Fixed(5)), 10, 10)
	})
	t.Run("malformed input", func(t *testing.T) {
		assertPair(t, Resolve(nil, Fixed(5)), 0, 0)
	})
	t.Run("index behind the record", func(t *testing.T) {
		assertPair(t, Resolve(staged(5, 10, 20), Fixed(4)), 10, 20)
	})
	t.Run("unknown index", func(t *testing.T) {
		assertPair(t, Resolve(staged(5, 10, 20), Unknown), 10, 20)
		assertPair(t, Resolve(staged(5, 10, 20), nil), 10, 20)
	})
}

func TestResolveReadsIndexOnce(t *testing.T) {
	reads := 0
	idx := IndexFunc(func() (uint64, bool) {
		reads++
		return 9, true
	})
	Resolve(staged(5, 1, 2), idx)
	assert.Equal(t, 1, reads)
}

func TestResolveDoesNotAlias(t *testing.T) {
	v := staged(5, 10, 20)
	got := Resolve(v, Fixed(5))
	got.Current.SetInt64(99)
	assert.Equal(t, int64(10), v.Value.Int64())
}

func TestResolveShapes(t *testing.T) {
	huge, _ := new(big.Int).SetString("22318265904693663008365", 10)

	tests := []struct {
		name    string
		raw     any
		current string
		after   string
	}{
		{"pointer", func() any { v := staged(5, 10, 20); return &v }(), "10", "20"},
		{"map", map[string]any{"era": 5, "value": "10", "valueAfter": "20"}, "10", "20"},
		{"map with floats", map[string]any{"era": 5.0, "value": 10.0, "valueAfter": 20.0}, "10", "20"},
		{"json bytes", []byte(`{"era": 5, "value": "10", "valueAfter": 20}`), "10", "20"},
		{"json raw message", json.RawMessage(`{"era":"5","value":{"$bigint":"22318265904693663008365"},"valueAfter":"0x14"}`), huge.String(), "20"},
		{"json big number", []byte(`{"era":5,"value":22318265904693663008365,"valueAfter":22318265904693663008365}`), huge.String(), huge.String()},
		{"decoded cbor map", map[any]any{"era": uint64(5), "value": uint64(10), "valueAfter": uint64(20)}, "10", "20"},
		{"array", []any{uint64(5), int64(10), *huge}, "10", huge.String()},
		{"negative bignum tag", []any{uint64(5), cbor.Tag{Number: 3, Content: []byte{0x09}}, 0}, "-10", "0"},
		{"positive bignum tag", []any{uint64(5), cbor.Tag{Number: 2, Content: []byte{0x01, 0x00}}, 0}, "256", "0"},
		{"int64 value", Value[int64]{Era: 5, Value: 10, ValueAfter: 20}, "10", "20"},
		{"uint64 value", Value[uint64]{Era: 5, Value: 10, ValueAfter: 20}, "10", "20"},
		{"big.Int value", Value[big.Int]{Era: 5, Value: *big.NewInt(10), ValueAfter: *huge}, "10", huge.String()},
		{"string value", Value[string]{Era: 5, Value: "10", ValueAfter: "0x14"}, "10", "20"},
		{"int64 pointer", &Value[int64]{Era: 5, Value: -3, ValueAfter: 20}, "-3", "20"},
		{"largest exact float", map[string]any{"era": 5.0, "value": float64(1 << 53), "valueAfter": 20.0}, "9007199254740992", "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.raw, Fixed(5))
			assert.Equal(t, tt.current, got.Current.String())
			require.NotNil(t, got.After)
			assert.Equal(t, tt.after, (*got.After).String())
		})
	}
}

func TestResolveTypedValueAfterChange(t *testing.T) {
	assertPair(t, Resolve(Value[uint64]{Era: 5, Value: 10, ValueAfter: 20}, Fixed(6)), 20, 20)
	assertPair(t, Resolve(Value[int64]{Era: 5, Value: 10, ValueAfter: 20}, Fixed(5)), 10, 20)
	assertPair(t, Resolve(Value[int]{Era: 5, Value: 7, ValueAfter: 7}, Unknown), 7, 7)
}

func TestResolveCBOR(t *testing.T) {
	huge, _ := new(big.Int).SetString("8535038193994223137511702528", 10)
	data, err := cbor.Marshal([]any{uint64(7), huge, uint64(3)})
	require.NoError(t, err)

	assertPair(t, Resolve(data, Fixed(8)), 3, 3)

	got := Resolve(cbor.RawMessage(data), Fixed(7))
	assert.Equal(t, huge.String(), got.Current.String())
	assert.Equal(t, "3", (*got.After).String())

	m, err := cbor.Marshal(map[string]any{"era": 1, "value": 2, "valueAfter": 2})
	require.NoError(t, err)
	assertPair(t, Resolve(m, Fixed(1)), 2, 2)
}

func TestResolveMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil pointer", (*Value[*big.Int])(nil)},
		{"nil int64 pointer", (*Value[int64])(nil)},
		{"non-numeric string value", Value[string]{Era: 1, Value: "ten", ValueAfter: "3"}},
		{"float beyond 2^53", map[string]any{"era": 1, "value": 2.2318265904693663e22, "valueAfter": 3}},
		{"nil fields", Value[*big.Int]{Era: 1}},
		{"missing valueAfter", map[string]any{"era": 1, "value": 2}},
		{"missing era", map[string]any{"value": 2, "valueAfter": 3}},
		{"negative era", map[string]any{"era": -1, "value": 2, "valueAfter": 3}},
		{"fractional value", map[string]any{"era": 1, "value": 2.5, "valueAfter": 3}},
		{"bad string", map[string]any{"era": 1, "value": "ten", "valueAfter": 3}},
		{"empty string", map[string]any{"era": 1, "value": "", "valueAfter": 3}},
		{"short array", []any{1, 2}},
		{"invalid json", []byte(`{"era":`)},
		{"cbor byte string", []byte{0x41, 0x01}},
		{"empty bytes", []byte{}},
		{"unsupported type", struct{}{}},
		{"bigint object with extra keys", map[string]any{"era": 1, "value": map[string]any{"$bigint": "1", "x": 1}, "valueAfter": 3}},
		{"unknown tag", []any{1, cbor.Tag{Number: 30, Content: []byte{1}}, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertPair(t, Resolve(tt.raw, Fixed(5)), 0, 0)
		})
	}
}

func TestToBigInt(t *testing.T) {
	tests := []struct {
		raw  any
		want string
	}{
		{int8(-3), "-3"},
		{uint32(7), "7"},
		{"0xff", "255"},
		{"-0x10", "-16"},
		{" 42 ", "42"},
		{json.Number("1e3"), "1000"},
		{json.Number("123456789012345678901234567890"), "123456789012345678901234567890"},
		{map[string]any{"$bigint": "-5"}, "-5"},
	}
	for _, tt := range tests {
		got, ok := ToBigInt(tt.raw)
		require.True(t, ok, "%v", tt.raw)
		assert.Equal(t, tt.want, got.String())
	}

	for _, bad := range []any{"0x", "--1", "-+1", nil, (*big.Int)(nil), []int{1}} {
		_, ok := ToBigInt(bad)
		assert.False(t, ok, "%v", bad)
	}
}
