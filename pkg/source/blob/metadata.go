package blob

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/vango-dev/stakeview/internal/errors"
)

// PoolMetadata is the off-chain metadata a pool registration points at.
type PoolMetadata struct {
	Name        string `json:"name"`
	Ticker      string `json:"ticker"`
	Description string `json:"description,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
}

// Validate checks the field limits of the metadata standard.
func (m PoolMetadata) Validate() error {
	ticker := utf8.RuneCountInString(m.Ticker)
	switch {
	case m.Name == "" || utf8.RuneCountInString(m.Name) > 50:
		return errors.New(errors.CodeSourceShape).WithDetailf("pool name %q", m.Name)
	case ticker < 3 || ticker > 5:
		return errors.New(errors.CodeSourceShape).WithDetailf("pool ticker %q must be 3-5 characters", m.Ticker)
	case utf8.RuneCountInString(m.Description) > 255:
		return errors.New(errors.CodeSourceShape).WithDetail("pool description longer than 255 characters")
	case len(m.Homepage) > 64:
		return errors.New(errors.CodeSourceShape).WithDetail("pool homepage longer than 64 bytes")
	}
	return nil
}

// FetchPoolMetadata gets the metadata blob with digest d and decodes it.
func FetchPoolMetadata(ctx context.Context, store Store, d Digest) (PoolMetadata, error) {
	var m PoolMetadata
	data, err := store.Get(ctx, d)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.New(errors.CodeSourceShape).WithDetail("pool metadata").Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}
