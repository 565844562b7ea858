package blob

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/stakeview/internal/config"
	"github.com/vango-dev/stakeview/internal/errors"
)

// ObjectAPI is the part of the S3 client used by S3Store. *s3.Client
// implements it.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps blobs in an S3 bucket under prefix + hex digest.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := blob.NewS3Store(s3.NewFromConfig(cfg), "pool-metadata", "v1/", blob.DefaultMaxSize)
//	meta, err := blob.FetchPoolMetadata(ctx, store, digest)
type S3Store struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	maxSize int64
	logger  *slog.Logger
}

// NewS3Store creates an S3Store.
//
// Parameters:
//   - client: S3 client from aws-sdk-go-v2
//   - bucket: bucket name
//   - prefix: key prefix (e.g., "metadata/")
//   - maxSize: largest blob accepted in bytes (0 = no limit)
func NewS3Store(client ObjectAPI, bucket, prefix string, maxSize int64) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: maxSize,
		logger:  slog.Default(),
	}
}

// OpenS3 builds an S3Store from cfg using the default AWS credential chain.
// A custom Endpoint switches to path-style addressing for S3-compatible
// services.
func OpenS3(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).WithDetail("load AWS configuration").Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := NewS3Store(client, cfg.Bucket, cfg.Prefix, DefaultMaxSize)
	if logger != nil {
		store.logger = logger
	}
	store.logger = store.logger.With("component", "blob", "bucket", cfg.Bucket)
	return store, nil
}

func (s *S3Store) key(d Digest) string {
	return s.prefix + d.String()
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, d Digest) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(d)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if stderrors.As(err, &missing) {
			return nil, errors.New(errors.CodeBlobNotFound).WithDetail(s.key(d))
		}
		return nil, errors.New(errors.CodeFetchFailed).WithDetailf("s3 get %s", s.key(d)).Wrap(err)
	}
	defer out.Body.Close()

	data, err := readLimited(out.Body, s.maxSize)
	if err != nil {
		return nil, err
	}
	if err := d.Verify(data); err != nil {
		s.logger.Warn("blob digest mismatch", "key", s.key(d))
		return nil, err
	}
	return data, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, data []byte) (Digest, error) {
	d := Sum(data)
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return d, tooLarge(int64(len(data)), s.maxSize)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(d)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return d, errors.New(errors.CodeFetchFailed).WithDetailf("s3 put %s", s.key(d)).Wrap(err)
	}
	return d, nil
}

// readLimited reads r, failing if it holds more than maxSize bytes.
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.New(errors.CodeFetchFailed).Wrap(err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, errors.New(errors.CodeFetchFailed).Wrap(err)
	}
	if int64(len(data)) > maxSize {
		return nil, tooLarge(int64(len(data)), maxSize)
	}
	return data, nil
}

func tooLarge(size, maxSize int64) *errors.Error {
	return errors.New(errors.CodeFetchFailed).WithDetailf("blob of %d bytes exceeds %d", size, maxSize)
}
