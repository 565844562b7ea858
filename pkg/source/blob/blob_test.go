package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/stakeview/internal/config"
	serrors "github.com/vango-dev/stakeview/internal/errors"
)

const metadataJSON = `{"name":"Example Pool","ticker":"EXMPL","description":"An example","homepage":"https://example.com"}`

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestDigest(t *testing.T) {
	d := Sum([]byte(metadataJSON))
	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	fromBytes, err := DigestFromBytes(d[:])
	require.NoError(t, err)
	assert.Equal(t, d, fromBytes)

	assert.NoError(t, d.Verify([]byte(metadataJSON)))
	assert.True(t, serrors.HasCode(d.Verify([]byte("tampered")), serrors.CodeBlobDigest))

	for _, bad := range []string{"", "zz", strings.Repeat("ab", 31)} {
		_, err := ParseDigest(bad)
		assert.True(t, serrors.HasCode(err, serrors.CodeSourceShape), bad)
	}
	_, err = DigestFromBytes([]byte{1, 2})
	assert.Error(t, err)
}

func TestS3Store(t *testing.T) {
	api := newFakeS3()
	store := NewS3Store(api, "meta", "v1/", DefaultMaxSize)
	ctx := context.Background()

	d, err := store.Put(ctx, []byte(metadataJSON))
	require.NoError(t, err)
	assert.Contains(t, api.objects, "meta/v1/"+d.String())

	data, err := store.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, metadataJSON, string(data))
}

func TestS3StoreErrors(t *testing.T) {
	api := newFakeS3()
	store := NewS3Store(api, "meta", "", 16)
	ctx := context.Background()

	_, err := store.Get(ctx, Sum([]byte("missing")))
	assert.True(t, serrors.HasCode(err, serrors.CodeBlobNotFound))

	d := Sum([]byte("original"))
	api.objects["meta/"+d.String()] = []byte("substituted")
	_, err = store.Get(ctx, d)
	assert.True(t, serrors.HasCode(err, serrors.CodeBlobDigest))

	big := bytes.Repeat([]byte("x"), 17)
	api.objects["meta/"+Sum(big).String()] = big
	_, err = store.Get(ctx, Sum(big))
	assert.True(t, serrors.HasCode(err, serrors.CodeFetchFailed))

	_, err = store.Put(ctx, big)
	assert.True(t, serrors.HasCode(err, serrors.CodeFetchFailed))

	outage := errors.New("connection reset")
	api.getErr = outage
	_, err = store.Get(ctx, d)
	assert.ErrorIs(t, err, outage)
}

func TestDiskStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	store, err := NewDiskStore(dir, DefaultMaxSize)
	require.NoError(t, err)
	ctx := context.Background()

	d, err := store.Put(ctx, []byte(metadataJSON))
	require.NoError(t, err)
	data, err := store.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, metadataJSON, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = store.Get(ctx, Sum([]byte("missing")))
	assert.True(t, serrors.HasCode(err, serrors.CodeBlobNotFound))

	require.NoError(t, os.WriteFile(filepath.Join(dir, d.String()), []byte("corrupt"), 0o644))
	_, err = store.Get(ctx, d)
	assert.True(t, serrors.HasCode(err, serrors.CodeBlobDigest))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Get(cancelled, d)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.BlobConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, config.BlobConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, store)
}

func TestFetchPoolMetadata(t *testing.T) {
	store := NewS3Store(newFakeS3(), "meta", "", DefaultMaxSize)
	ctx := context.Background()

	d, err := store.Put(ctx, []byte(metadataJSON))
	require.NoError(t, err)
	m, err := FetchPoolMetadata(ctx, store, d)
	require.NoError(t, err)
	assert.Equal(t, "EXMPL", m.Ticker)
	assert.Equal(t, "Example Pool", m.Name)

	bad, err := store.Put(ctx, []byte(`{"name":"x","ticker":"TOOLONG"}`))
	require.NoError(t, err)
	_, err = FetchPoolMetadata(ctx, store, bad)
	assert.True(t, serrors.HasCode(err, serrors.CodeSourceShape))

	notJSON, err := store.Put(ctx, []byte(`<html>`))
	require.NoError(t, err)
	_, err = FetchPoolMetadata(ctx, store, notJSON)
	assert.True(t, serrors.HasCode(err, serrors.CodeSourceShape))
}

func TestPoolMetadataValidate(t *testing.T) {
	ok := PoolMetadata{Name: "Pool", Ticker: "ABC"}
	assert.NoError(t, ok.Validate())

	for _, m := range []PoolMetadata{
		{Ticker: "ABC"},
		{Name: strings.Repeat("n", 51), Ticker: "ABC"},
		{Name: "Pool", Ticker: "AB"},
		{Name: "Pool", Ticker: "ABC", Description: strings.Repeat("d", 256)},
		{Name: "Pool", Ticker: "ABC", Homepage: "https://" + strings.Repeat("h", 60)},
	} {
		assert.Error(t, m.Validate())
	}
}
