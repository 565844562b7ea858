package blob

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/vango-dev/stakeview/internal/errors"
)

// Digest is the blake2b-256 hash of a blob.
type Digest [blake2b.Size256]byte

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return blake2b.Sum256(data)
}

// ParseDigest parses a hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(raw) != len(d) {
		return d, errors.New(errors.CodeSourceShape).WithDetailf("invalid blob digest %q", s)
	}
	copy(d[:], raw)
	return d, nil
}

// DigestFromBytes converts a raw hash, such as the metadata hash of a pool
// registration.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != len(d) {
		return d, errors.New(errors.CodeSourceShape).WithDetailf("blob digest has %d bytes", len(b))
	}
	copy(d[:], b)
	return d, nil
}

// String returns the hex form of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Verify checks that data hashes to d.
func (d Digest) Verify(data []byte) error {
	if got := Sum(data); got != d {
		return errors.New(errors.CodeBlobDigest).WithDetailf("want %s, got %s", d, got)
	}
	return nil
}
