package chain

import (
	"bytes"
	"math/big"
	"reflect"

	gcbor "github.com/blinklabs-io/gouroboros/cbor"
	"github.com/fxamacker/cbor/v2"

	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
)

// CBOR tags seen in ledger state.
const (
	tagRational = 30
	tagSet      = 258
)

// Positions in the ledger's pool parameter array.
const (
	paramPledge   = 2
	paramCost     = 3
	paramMargin   = 4
	paramMetadata = 8
	paramCount    = 9
)

// PoolParams are the registered parameters of a pool.
type PoolParams struct {
	Pledge   *big.Int
	Cost     *big.Int
	Margin   *big.Rat
	Metadata *MetadataRef
}

// MetadataRef points at off-chain pool metadata.
type MetadataRef struct {
	URL  string
	Hash []byte
}

// MarginPPM returns the margin in parts per million.
func (p PoolParams) MarginPPM() *big.Int {
	if p.Margin == nil {
		return new(big.Int)
	}
	n := new(big.Int).Mul(p.Margin.Num(), big.NewInt(era.PPM))
	return n.Quo(n, p.Margin.Denom())
}

func shapeError(what string) *errors.Error {
	return errors.New(errors.CodeSourceShape).WithDetail(what)
}

// decodePoolParams decodes the ledger's pool parameter array.
func decodePoolParams(raw any) (PoolParams, error) {
	var p PoolParams
	fields, ok := raw.([]any)
	if !ok || len(fields) < paramCount {
		return p, shapeError("pool parameters are not a 9-element array")
	}
	if p.Pledge, ok = era.ToBigInt(fields[paramPledge]); !ok {
		return p, shapeError("pool pledge is not an integer")
	}
	if p.Cost, ok = era.ToBigInt(fields[paramCost]); !ok {
		return p, shapeError("pool cost is not an integer")
	}
	if p.Margin, ok = toRat(fields[paramMargin]); !ok {
		return p, shapeError("pool margin is not a rational")
	}
	if meta, ok := fields[paramMetadata].([]any); ok && len(meta) == 2 {
		url, _ := meta[0].(string)
		hash, _ := toBytes(meta[1])
		if url != "" {
			p.Metadata = &MetadataRef{URL: url, Hash: hash}
		}
	}
	return p, nil
}

// toRat decodes a CBOR rational, either as registered by gouroboros or as a
// plain tag or [num, den] pair.
func toRat(raw any) (*big.Rat, bool) {
	switch r := raw.(type) {
	case gcbor.Rat:
		if r.Rat == nil {
			return nil, false
		}
		return new(big.Rat).Set(r.Rat), true
	case *gcbor.Rat:
		if r == nil || r.Rat == nil {
			return nil, false
		}
		return new(big.Rat).Set(r.Rat), true
	case *big.Rat:
		if r == nil {
			return nil, false
		}
		return new(big.Rat).Set(r), true
	case cbor.Tag:
		if r.Number != tagRational {
			return nil, false
		}
		return toRat(r.Content)
	case []any:
		if len(r) != 2 {
			return nil, false
		}
		num, ok := era.ToBigInt(r[0])
		if !ok {
			return nil, false
		}
		den, ok := era.ToBigInt(r[1])
		if !ok || den.Sign() == 0 {
			return nil, false
		}
		return new(big.Rat).SetFrac(num, den), true
	}
	return nil, false
}

func toBytes(raw any) ([]byte, bool) {
	switch b := raw.(type) {
	case []byte:
		return b, true
	case cbor.ByteString:
		return []byte(b), true
	case string:
		return []byte(b), true
	case PoolID:
		return b[:], true
	case [28]byte:
		return b[:], true
	}
	return nil, false
}

// lookupPool finds the entry for id in a map keyed by pool hash.
func lookupPool(raw any, id PoolID) (any, bool) {
	m, ok := raw.(map[any]any)
	if !ok {
		return nil, false
	}
	for k, v := range m {
		if key, ok := toBytes(k); ok && bytes.Equal(key, id[:]) {
			return v, true
		}
	}
	return nil, false
}

// collectionLen counts the members of a decoded set, array or map.
func collectionLen(raw any) (int, bool) {
	switch r := raw.(type) {
	case cbor.Tag:
		if r.Number != tagSet {
			return 0, false
		}
		return collectionLen(r.Content)
	case nil:
		return 0, false
	}
	v := reflect.ValueOf(raw)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	}
	return 0, false
}

// stakeShare reads the active stake ratio of id from a stake distribution,
// a map of pool hash to [ratio, vrf key hash].
func stakeShare(raw any, id PoolID) (*big.Rat, error) {
	entry, ok := lookupPool(raw, id)
	if !ok {
		return nil, errors.New(errors.CodeSourceNotReady).WithDetailf("pool %s is not in the stake distribution", id)
	}
	fields, ok := entry.([]any)
	if !ok || len(fields) == 0 {
		return nil, shapeError("stake distribution entry is not an array")
	}
	ratio, ok := toRat(fields[0])
	if !ok {
		return nil, shapeError("stake distribution ratio is not a rational")
	}
	return ratio, nil
}
