// Package s3store keeps blobs in an S3-compatible bucket (AWS S3, MinIO).
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/and161185/docshare/internal/blob"
)

// API is the subset of *s3.Client used by Store.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config selects the bucket and how to reach it. Empty AccessKey falls back to
// the default AWS credential chain; a non-empty Endpoint enables path-style
// addressing for MinIO-like servers.
type Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Hooks for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig
	newS3Client          = func(cfg aws.Config, optFns ...func(*s3.Options)) API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Store implements blob.Store over an S3 bucket.
type Store struct {
	api    API
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 blob store: empty bucket")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 blob store: load aws config: %w", err)
	}
	client := newS3Client(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

// Put uploads r as object <prefix><key> and returns the object key as locator.
// Size may be negative when unknown.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := blob.CheckKey(key); err != nil {
		return "", err
	}
	objKey := s.prefix + key
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        r,
		ContentType: aws.String("application/octet-stream"),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", objKey, err)
	}
	return objKey, nil
}

// Open streams the object at locator.
func (s *Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ErrNotExist
		}
		return nil, fmt.Errorf("s3 get %s: %w", locator, err)
	}
	return out.Body, nil
}

// Delete removes the object at locator. S3 treats missing keys as success.
func (s *Store) Delete(ctx context.Context, locator string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", locator, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && (ae.ErrorCode() == "NotFound" || ae.ErrorCode() == "NoSuchKey")
}
