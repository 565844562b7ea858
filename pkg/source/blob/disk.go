package blob

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vango-dev/stakeview/internal/errors"
)

// DiskStore keeps blobs as files named by hex digest in one directory.
type DiskStore struct {
	dir     string
	maxSize int64
}

// NewDiskStore creates a DiskStore, creating dir if needed.
//
// Parameters:
//   - dir: directory holding the blobs
//   - maxSize: largest blob accepted in bytes (0 = no limit)
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).WithDetailf("blob dir %s", dir).Wrap(err)
	}
	return &DiskStore{dir: dir, maxSize: maxSize}, nil
}

func (s *DiskStore) path(d Digest) string {
	return filepath.Join(s.dir, d.String())
}

// Get implements Store.
func (s *DiskStore) Get(ctx context.Context, d Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeBlobNotFound).WithDetail(d.String())
		}
		return nil, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	defer f.Close()

	data, err := readLimited(f, s.maxSize)
	if err != nil {
		return nil, err
	}
	if err := d.Verify(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Put implements Store. The blob is written to a temp file and renamed into
// place, so readers never see a partial blob.
func (s *DiskStore) Put(ctx context.Context, data []byte) (Digest, error) {
	d := Sum(data)
	if err := ctx.Err(); err != nil {
		return d, err
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return d, tooLarge(int64(len(data)), s.maxSize)
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return d, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return d, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return d, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path(d)); err != nil {
		return d, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	return d, nil
}
