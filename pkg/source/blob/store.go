package blob

import (
	"context"
	"log/slog"

	"github.com/vango-dev/stakeview/internal/config"
)

// DefaultMaxSize caps the size of a blob. Pool metadata is at most 512
// bytes on chain; the cap leaves room for extended metadata.
const DefaultMaxSize = 64 << 10

// Store is a content-addressed blob store.
type Store interface {
	// Get returns the blob with digest d after verifying it.
	Get(ctx context.Context, d Digest) ([]byte, error)

	// Put stores data and returns its digest.
	Put(ctx context.Context, data []byte) (Digest, error)
}

// Open returns the Store described by cfg: a DiskStore when Dir is set, an
// S3Store when Bucket is set, or nil when neither is.
func Open(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) (Store, error) {
	switch {
	case cfg.Dir != "":
		store, err := NewDiskStore(cfg.Dir, DefaultMaxSize)
		if err != nil {
			return nil, err
		}
		return store, nil
	case cfg.Bucket != "":
		store, err := OpenS3(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, nil
}
