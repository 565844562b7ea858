package chain

import (
	"encoding/hex"
	"strings"

	"github.com/blinklabs-io/gouroboros/ledger"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/vango-dev/stakeview/internal/errors"
)

// PoolIDPrefix is the bech32 human-readable part of pool ids.
const PoolIDPrefix = "pool"

// PoolID is the 28-byte hash identifying a stake pool.
type PoolID [28]byte

// ParsePoolID parses a bech32 pool id ("pool1...") or its 56-character hex
// form.
func ParsePoolID(s string) (PoolID, error) {
	var id PoolID
	s = strings.TrimSpace(s)

	if len(s) == hex.EncodedLen(len(id)) {
		if raw, err := hex.DecodeString(s); err == nil {
			copy(id[:], raw)
			return id, nil
		}
	}

	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return id, invalidPoolID(s, err.Error())
	}
	if hrp != PoolIDPrefix {
		return id, invalidPoolID(s, "prefix is "+hrp+", want "+PoolIDPrefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return id, invalidPoolID(s, err.Error())
	}
	if len(raw) != len(id) {
		return id, invalidPoolID(s, "wrong length")
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the bech32 form of the id.
func (id PoolID) String() string {
	conv, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		return id.Hex()
	}
	encoded, err := bech32.Encode(PoolIDPrefix, conv)
	if err != nil {
		return id.Hex()
	}
	return encoded
}

// Hex returns the hex form of the id.
func (id PoolID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is unset.
func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

func (id PoolID) ledger() ledger.PoolId {
	return ledger.PoolId(id)
}

func invalidPoolID(s, detail string) *errors.Error {
	return errors.New(errors.CodeInvalidPoolID).WithDetailf("%q: %s", s, detail)
}
