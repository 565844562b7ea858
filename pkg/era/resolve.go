package era

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// CBOR bignum tags (RFC 8949 §3.4.3).
const (
	tagPositiveBignum = 2
	tagNegativeBignum = 3
)

// Resolve resolves a raw staged payload of any supported shape against idx.
//
// Accepted shapes are Value[T] for any numeric T (or a pointer to it), a decoded JSON
// or CBOR map with the keys "era", "value" and "valueAfter", a CBOR array
// [era, value, valueAfter], and the JSON or CBOR encoding of any of these
// as bytes. Numbers may be Go integers, big.Int, decimal or 0x-prefixed hex
// strings, json.Number, integral floats, {"$bigint": "<decimal>"} objects
// or CBOR bignums. Floats beyond 2^53 are rejected since they no longer
// hold an exact integer; decode JSON with UseNumber to keep large values.
//
// A payload that is absent or malformed resolves to the zero pair. This is
// how "no delegation yet" reads, so it is not an error.
func Resolve(raw any, idx IndexReader) Current[*big.Int] {
	v, ok := Parse(raw)
	if !ok {
		return zeroPair()
	}
	return ResolveFunc(v, idx, func(a, b *big.Int) bool {
		return a.Cmp(b) == 0
	})
}

// Parse canonicalizes a raw staged payload. ok is false when raw does not
// have the Value shape.
func Parse(raw any) (v Value[*big.Int], ok bool) {
	switch r := raw.(type) {
	case nil:
		return v, false
	case stagedFields:
		if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return v, false
		}
		e, value, after := r.fields()
		return parseFields(e, value, after, true)
	case json.RawMessage:
		return parseJSON(r)
	case cbor.RawMessage:
		return parseCBOR(r)
	case []byte:
		trimmed := bytes.TrimSpace(r)
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
			return parseJSON(trimmed)
		}
		return parseCBOR(r)
	case map[string]any:
		return parseFields(r["era"], r["value"], r["valueAfter"], hasKeys(r))
	case map[any]any:
		fields := make(map[string]any, len(r))
		for k, val := range r {
			if s, isString := k.(string); isString {
				fields[s] = val
			}
		}
		return Parse(fields)
	case []any:
		if len(r) != 3 {
			return v, false
		}
		return parseFields(r[0], r[1], r[2], true)
	}
	return v, false
}

// stagedFields is implemented by every Value[T] and *Value[T].
type stagedFields interface {
	fields() (era uint64, value, valueAfter any)
}

func hasKeys(m map[string]any) bool {
	for _, k := range []string{"era", "value", "valueAfter"} {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func parseFields(rawEra, rawValue, rawAfter any, present bool) (v Value[*big.Int], ok bool) {
	if !present {
		return v, false
	}
	e, ok := toUint64(rawEra)
	if !ok {
		return v, false
	}
	value, ok := ToBigInt(rawValue)
	if !ok {
		return v, false
	}
	after, ok := ToBigInt(rawAfter)
	if !ok {
		return v, false
	}
	return Value[*big.Int]{Era: e, Value: value, ValueAfter: after}, true
}

func parseJSON(data []byte) (Value[*big.Int], bool) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return Value[*big.Int]{}, false
	}
	return Parse(decoded)
}

func parseCBOR(data []byte) (Value[*big.Int], bool) {
	if len(data) == 0 {
		return Value[*big.Int]{}, false
	}
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return Value[*big.Int]{}, false
	}
	if _, isBytes := decoded.([]byte); isBytes {
		// A byte string is not a staged value; stop here rather than
		// decoding it again.
		return Value[*big.Int]{}, false
	}
	return Parse(decoded)
}

// ToBigInt canonicalizes a raw number to a new *big.Int.
func ToBigInt(raw any) (*big.Int, bool) {
	switch n := raw.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case big.Int:
		return new(big.Int).Set(&n), true
	case float64:
		return floatToBigInt(n)
	case float32:
		return floatToBigInt(float64(n))
	case json.Number:
		if i, ok := parseIntString(string(n)); ok {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return floatToBigInt(f)
	case string:
		return parseIntString(n)
	case map[string]any:
		if len(n) != 1 {
			return nil, false
		}
		s, ok := n["$bigint"].(string)
		if !ok {
			return nil, false
		}
		return parseIntString(s)
	case cbor.Tag:
		content, ok := n.Content.([]byte)
		if !ok {
			return nil, false
		}
		return bignum(n.Number, content)
	case cbor.RawTag:
		var content []byte
		if err := cbor.Unmarshal(n.Content, &content); err != nil {
			return nil, false
		}
		return bignum(n.Number, content)
	}
	return nil, false
}

func bignum(tag uint64, content []byte) (*big.Int, bool) {
	n := new(big.Int).SetBytes(content)
	switch tag {
	case tagPositiveBignum:
		return n, true
	case tagNegativeBignum:
		// -1 - n
		return n.Neg(n).Sub(n, big.NewInt(1)), true
	}
	return nil, false
}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

func floatToBigInt(f float64) (*big.Int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return nil, false
	}
	n, _ := big.NewFloat(f).Int(nil)
	return n, true
}

func parseIntString(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	neg := false
	digits := s
	if digits[0] == '-' {
		neg = true
		digits = digits[1:]
	}
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return nil, false
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, false
	}
	if neg {
		n.Neg(n)
	}
	return n, true
}

func toUint64(raw any) (uint64, bool) {
	n, ok := ToBigInt(raw)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

func zeroPair() Current[*big.Int] {
	after := big.NewInt(0)
	return Current[*big.Int]{Current: big.NewInt(0), After: &after}
}
