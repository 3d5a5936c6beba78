// Package s3test provides an in-memory implementation of the S3 client used
// by the s3 driver.
package s3test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type object struct {
	data     []byte
	modified time.Time
	metadata map[string]string
}

// Client is a single-bucket fake. Objects in any other bucket are missing.
type Client struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]object
	now     func() time.Time

	// PageSize caps ListObjectsV2 pages. Defaults to 1000.
	PageSize int
	// Calls counts requests per operation name.
	Calls map[string]int
}

// New returns an empty fake holding bucket.
func New(bucket string) *Client {
	return &Client{
		bucket:  bucket,
		objects: make(map[string]object),
		now:     time.Now,
		Calls:   make(map[string]int),
	}
}

// Keys returns every stored key, sorted.
func (c *Client) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.objects))
	for k := range c.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) count(op string) {
	c.Calls[op]++
}

func (c *Client) lookup(bucket, key *string) (object, bool) {
	if aws.ToString(bucket) != c.bucket {
		return object{}, false
	}
	obj, ok := c.objects[aws.ToString(key)]
	return obj, ok
}

func (c *Client) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("HeadObject")

	obj, ok := c.lookup(in.Bucket, in.Key)
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.metadata,
	}, nil
}

func (c *Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("GetObject")

	obj, ok := c.lookup(in.Bucket, in.Key)
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}

	data := obj.data
	if in.Range != nil {
		start, end, err := parseRange(aws.ToString(in.Range), len(data))
		if err != nil {
			return nil, err
		}
		data = data[start:end]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), data...))),
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.metadata,
	}, nil
}

// parseRange handles "bytes=a-b" and "bytes=a-" the way S3 does: the end
// is clamped to the object, and a start past the end is InvalidRange.
func parseRange(header string, size int) (int, int, error) {
	invalid := &smithy.GenericAPIError{Code: "InvalidRange", Message: "The requested range is not satisfiable"}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, invalid
	}
	from, to, _ := strings.Cut(spec, "-")
	start, err := strconv.Atoi(from)
	if err != nil || start >= size {
		return 0, 0, invalid
	}
	end := size
	if to != "" {
		last, err := strconv.Atoi(to)
		if err != nil || last < start {
			return 0, 0, invalid
		}
		end = min(last+1, size)
	}
	return start, end, nil
}

func (c *Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var data []byte
	if in.Body != nil {
		var err error
		if data, err = io.ReadAll(in.Body); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("PutObject")

	if aws.ToString(in.Bucket) != c.bucket {
		return nil, &types.NoSuchBucket{Message: aws.String(fmt.Sprintf("bucket %s does not exist", aws.ToString(in.Bucket)))}
	}
	c.objects[aws.ToString(in.Key)] = object{data: data, modified: c.now().UTC(), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (c *Client) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("DeleteObject")

	if aws.ToString(in.Bucket) == c.bucket {
		delete(c.objects, aws.ToString(in.Key))
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (c *Client) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("DeleteObjects")

	out := &s3.DeleteObjectsOutput{}
	if in.Delete == nil {
		return out, nil
	}
	for _, id := range in.Delete.Objects {
		if aws.ToString(in.Bucket) == c.bucket {
			delete(c.objects, aws.ToString(id.Key))
		}
		if !aws.ToBool(in.Delete.Quiet) {
			out.Deleted = append(out.Deleted, types.DeletedObject{Key: id.Key})
		}
	}
	return out, nil
}

// ListObjectsV2 supports Prefix, Delimiter, MaxKeys and continuation. The
// continuation token is the last key or prefix returned.
func (c *Client) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("ListObjectsV2")

	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)
	after := aws.ToString(in.ContinuationToken)
	if after == "" {
		after = aws.ToString(in.StartAfter)
	}

	limit := c.PageSize
	if limit <= 0 {
		limit = 1000
	}
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}

	keys := make([]string, 0, len(c.objects))
	if aws.ToString(in.Bucket) == c.bucket {
		for k := range c.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{Prefix: in.Prefix, Delimiter: in.Delimiter}
	seen := make(map[string]bool)
	returned := 0
	var last string

	for _, k := range keys {
		entry := k
		isPrefix := false
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				entry = k[:len(prefix)+i+len(delimiter)]
				isPrefix = true
			}
		}
		if entry <= after || seen[entry] {
			continue
		}
		if returned == limit {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(last)
			break
		}
		seen[entry] = true
		returned++
		last = entry

		if isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(entry)})
			continue
		}
		obj := c.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	out.KeyCount = aws.Int32(int32(returned))
	if out.IsTruncated == nil {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}
