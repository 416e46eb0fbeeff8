package cachestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// markerName is the object that records a bucket's existence and creation
// time. Entry object names are hex digests and never collide with it.
const markerName = ".bucket"

// deleteBatch is the DeleteObjects limit.
const deleteBatch = 1000

// s3API is the part of *s3.Client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Config describes an S3 (or S3-compatible, e.g. MinIO) bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Storage keeps every cache bucket under its own prefix of one S3 bucket:
// <name>/.bucket marks the cache bucket, <name>/<sha256(url)> holds a
// JSON-encoded Entry.
type S3Storage struct {
	api    s3API
	bucket string
	now    func() time.Time
}

// NewS3Storage builds the S3 client from c. Static credentials are used when
// an access key is given; a custom endpoint switches to path-style URLs.
func NewS3Storage(ctx context.Context, c S3Config) (*S3Storage, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, c.Bucket), nil
}

func newS3Storage(api s3API, bucket string) *S3Storage {
	return &S3Storage{api: api, bucket: bucket, now: time.Now}
}

func entryObjectKey(name, url string) string {
	sum := sha256.Sum256([]byte(url))
	return name + "/" + hex.EncodeToString(sum[:])
}

func markerKey(name string) string {
	return name + "/" + markerName
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

type bucketMarker struct {
	CreatedAt time.Time `json:"created_at"`
}

type s3Cache struct {
	s    *S3Storage
	name string
}

func (c *s3Cache) Put(ctx context.Context, key string, e *Entry) error {
	_, err := c.s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.s.bucket),
		Key:    aws.String(markerKey(c.name)),
	})
	if isNotFound(err) {
		// bucket deleted after Open: the write is dropped
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", c.name, err)
	}

	cp := e.Clone()
	cp.URL = key
	if cp.StoredAt.IsZero() {
		cp.StoredAt = c.s.now()
	}
	body, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	_, err = c.s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.s.bucket),
		Key:         aws.String(entryObjectKey(c.name, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s[%s]: %w", c.name, key, err)
	}
	return nil
}

func (c *s3Cache) Match(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	found, err := c.s.getJSON(ctx, entryObjectKey(c.name, key), &e)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s[%s]: %w", c.name, key, err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

// getJSON reads and decodes one object; found is false when it is missing.
func (s *S3Storage) getJSON(ctx context.Context, key string, v any) (found bool, err error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (Cache, error) {
	var m bucketMarker
	found, err := s.getJSON(ctx, markerKey(name), &m)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", name, err)
	}
	if !found {
		body, _ := json.Marshal(bucketMarker{CreatedAt: s.now().UTC()})
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(markerKey(name)),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", name, err)
		}
	}
	return &s3Cache{s: s, name: name}, nil
}

func (s *S3Storage) Keys(ctx context.Context) ([]string, error) {
	type bucket struct {
		name    string
		created time.Time
	}
	var buckets []bucket

	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}
		for _, p := range out.CommonPrefixes {
			name := strings.TrimSuffix(aws.ToString(p.Prefix), "/")
			var m bucketMarker
			found, err := s.getJSON(ctx, markerKey(name), &m)
			if err != nil {
				return nil, fmt.Errorf("failed to read bucket %q: %w", name, err)
			}
			// a prefix without a marker is a half-deleted bucket
			if found {
				buckets = append(buckets, bucket{name: name, created: m.CreatedAt})
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	slices.SortStableFunc(buckets, func(a, b bucket) int { return a.created.Compare(b.created) })

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.name)
	}
	return names, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(markerKey(name)),
	})
	existed := err == nil
	if err != nil && !isNotFound(err) {
		return false, fmt.Errorf("failed to check bucket %q: %w", name, err)
	}

	var keys []types.ObjectIdentifier
	if existed {
		keys = append(keys, types.ObjectIdentifier{Key: aws.String(markerKey(name))})
	}

	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(name + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return false, fmt.Errorf("failed to list bucket %q: %w", name, err)
		}
		for _, o := range out.Contents {
			if aws.ToString(o.Key) == markerKey(name) {
				continue
			}
			keys = append(keys, types.ObjectIdentifier{Key: o.Key})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	for chunk := range slices.Chunk(keys, deleteBatch) {
		out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: chunk, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete bucket %q: %w", name, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return false, fmt.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return existed, nil
}

func (s *S3Storage) Match(ctx context.Context, key string) (*Entry, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		e, err := (&s3Cache{s: s, name: name}).Match(ctx, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}
