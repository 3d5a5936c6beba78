// Package s3 is the storage driver for S3 and S3-compatible object stores.
//
// Keys are the storage paths without the leading slash. Directories are
// implied by key prefixes, so the driver has no path features and List
// reports common prefixes as paths.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// Type is the storage type of the driver.
const Type = "s3"

// metaTimeModified is the user metadata key holding an explicit
// modification time, in unix seconds.
const metaTimeModified = "mtime"

// deleteBatch is the maximum number of keys per DeleteObjects call.
const deleteBatch = 1000

// Client is the subset of the S3 API the driver uses. *s3.Client
// implements it.
type Client interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	s3.ListObjectsV2APIClient
}

var _ Client = (*s3.Client)(nil)

// Config holds configuration for the S3 driver.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket" validate:"required"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// MaxRetries is the maximum number of attempts for transient errors.
	// Zero keeps the SDK default.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries,omitempty" validate:"gte=0"`
}

// Driver implements storage.Driver on an S3 bucket.
type Driver struct {
	client Client
	bucket string
}

// New returns a driver using an existing client.
func New(client Client, bucket string) *Driver {
	return &Driver{client: client, bucket: bucket}
}

// NewFromConfig builds an S3 client from cfg and returns a driver using it.
func NewFromConfig(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", storage.ErrInvalidStorage)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	logger.Debug("s3 driver configured",
		logger.KeyBucket, cfg.Bucket,
		logger.KeyRegion, awsCfg.Region,
		logger.KeyEndpoint, cfg.Endpoint)

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket), nil
}

// NewStorage wraps d in a storage rooted at base. base is the key prefix
// of the repository inside the bucket.
func NewStorage(d *Driver, base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	opts = append([]storage.Option{storage.WithWrite(write)}, opts...)
	return storage.New(Type, base, d, opts...)
}

var _ storage.Driver = (*Driver)(nil)

func (d *Driver) Features() storage.Feature { return 0 }

// Bucket returns the bucket name.
func (d *Driver) Bucket() string { return d.bucket }

func objectKey(p path.Path) string {
	return strings.TrimPrefix(p.String(), "/")
}

// prefixOf returns the listing prefix of the directory p.
func prefixOf(p path.Path) string {
	if p.IsRoot() {
		return ""
	}
	return objectKey(p) + "/"
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

func (d *Driver) Info(ctx context.Context, p path.Path, level storage.InfoLevel, _ bool) (storage.Info, error) {
	key := objectKey(p)
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if !isNotFound(err) {
			return storage.Info{}, fmt.Errorf("s3 head object '%s': %w", key, err)
		}
		isDir, err := d.hasPrefix(ctx, prefixOf(p))
		if err != nil {
			return storage.Info{}, err
		}
		if isDir {
			return storage.Info{Name: p.Name(), Exists: true, Level: level, Type: storage.TypePath}, nil
		}
		return storage.Info{Level: level}, nil
	}

	info := storage.Info{Name: p.Name(), Exists: true, Level: level, Type: storage.TypeFile}
	info.Size = uint64(aws.ToInt64(out.ContentLength))
	info.TimeModified = modTime(out.Metadata, aws.ToTime(out.LastModified))
	return info, nil
}

func modTime(meta map[string]string, fallback time.Time) time.Time {
	if v, ok := meta[metaTimeModified]; ok {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(sec, 0)
		}
	}
	return fallback
}

func (d *Driver) hasPrefix(ctx context.Context, prefix string) (bool, error) {
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("s3 list objects '%s': %w", prefix, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (d *Driver) List(ctx context.Context, p path.Path, level storage.InfoLevel) ([]storage.Info, bool, error) {
	prefix := prefixOf(p)
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []storage.Info
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("s3 list objects '%s': %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			out = append(out, storage.Info{Name: name, Exists: true, Level: level, Type: storage.TypePath})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			info := storage.Info{Name: name, Exists: true, Level: level}
			if level >= storage.InfoLevelBasic {
				info.Type = storage.TypeFile
				info.Size = uint64(aws.ToInt64(obj.Size))
				info.TimeModified = aws.ToTime(obj.LastModified)
			}
			out = append(out, info)
		}
	}

	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *Driver) NewRead(_ context.Context, p path.Path, opts storage.ReadOptions) (storage.Reader, error) {
	key := objectKey(p)
	open := func(ctx context.Context) (io.ReadCloser, bool, error) {
		if opts.Limit != nil && *opts.Limit == 0 {
			info, err := d.Info(ctx, p, storage.InfoLevelExists, false)
			if err != nil || !info.Exists || info.Type != storage.TypeFile {
				return nil, false, err
			}
			return io.NopCloser(bytes.NewReader(nil)), true, nil
		}

		in := &s3.GetObjectInput{Bucket: aws.String(d.bucket), Key: aws.String(key)}
		if r := byteRange(opts); r != "" {
			in.Range = aws.String(r)
		}
		out, err := d.client.GetObject(ctx, in)
		if err != nil {
			switch {
			case isNotFound(err):
				return nil, false, nil
			case isInvalidRange(err):
				// Offset at or past the end.
				return io.NopCloser(bytes.NewReader(nil)), true, nil
			}
			return nil, false, fmt.Errorf("s3 get object '%s': %w", key, err)
		}
		return out.Body, true, nil
	}
	return storage.NewStreamReader(Type, p, opts.IgnoreMissing, open), nil
}

func byteRange(opts storage.ReadOptions) string {
	switch {
	case opts.Limit != nil:
		return fmt.Sprintf("bytes=%d-%d", opts.Offset, opts.Offset+*opts.Limit-1)
	case opts.Offset > 0:
		return fmt.Sprintf("bytes=%d-", opts.Offset)
	default:
		return ""
	}
}

// NewWrite buffers the object and uploads it on close. Objects are replaced
// whole, so writes are atomic regardless of params.Atomic; appending reads
// the current object first.
func (d *Driver) NewWrite(_ context.Context, p path.Path, params storage.WriteParams) (storage.Writer, error) {
	key := objectKey(p)

	var prepare func(context.Context) ([]byte, error)
	if !params.Truncate {
		prepare = func(ctx context.Context) ([]byte, error) {
			out, err := d.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(d.bucket), Key: aws.String(key)})
			if err != nil {
				if isNotFound(err) {
					return nil, nil
				}
				return nil, fmt.Errorf("s3 get object '%s': %w", key, err)
			}
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		}
	}

	commit := func(ctx context.Context, data []byte) error {
		in := &s3.PutObjectInput{
			Bucket:        aws.String(d.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		}
		if !params.TimeModified.IsZero() {
			in.Metadata = map[string]string{metaTimeModified: strconv.FormatInt(params.TimeModified.Unix(), 10)}
		}
		if _, err := d.client.PutObject(ctx, in); err != nil {
			return fmt.Errorf("s3 put object '%s': %w", key, err)
		}
		return nil
	}

	return storage.NewBufferedWriter(Type, p, false, prepare, commit), nil
}

// PathRemove deletes every object under p. Object stores cannot tell an
// empty path from a missing one, so it always reports removal.
func (d *Driver) PathRemove(ctx context.Context, p path.Path, _ bool) (bool, error) {
	prefix := prefixOf(p)
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	})

	var batch []types.ObjectIdentifier
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3 delete objects under '%s': %w", prefix, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("s3 delete object '%s': %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
		}
		batch = batch[:0]
		return nil
	}

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("s3 list objects '%s': %w", prefix, err)
		}
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == deleteBatch {
				if err := flush(); err != nil {
					return false, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Driver) Remove(ctx context.Context, p path.Path, errorOnMissing bool) error {
	key := objectKey(p)
	if errorOnMissing {
		info, err := d.Info(ctx, p, storage.InfoLevelExists, false)
		if err != nil {
			return err
		}
		if !info.Exists || info.Type != storage.TypeFile {
			return fmt.Errorf("%w: unable to remove missing file '%s'", storage.ErrFileMissing, p)
		}
	}
	if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete object '%s': %w", key, err)
	}
	return nil
}
