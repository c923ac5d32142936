package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the construction parameters of an S3 (or MinIO) store.
// Credentials come from the default AWS chain.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
	Prefix    string // object key prefix, default "artifacts/"
}

// S3BlobStore keeps each artifact as one object. Metadata travels as object
// user metadata so a HEAD is enough to describe a blob.
type S3BlobStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3BlobStore(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3BlobStore(client *s3.Client, bucket, prefix string) *S3BlobStore {
	if prefix == "" {
		prefix = "artifacts/"
	}
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3BlobStore) key(id string) *string {
	return aws.String(s.prefix + id)
}

func (s *S3BlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.key(meta.ID),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(meta.Size),
		ContentType:   aws.String(meta.ContentType),
		Metadata: map[string]string{
			"file-name":  meta.FileName,
			"workspace":  meta.Workspace,
			"sha256":     meta.Hash,
			"created-at": meta.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", meta.ID, err)
	}
	out := meta
	return &out, nil
}

func (s *S3BlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)})
	if err != nil {
		return nil, nil, mapS3Error(id, err)
	}
	meta := fromObject(id, out.ContentType, out.ContentLength, out.Metadata)
	return out.Body, meta, nil
}

func (s *S3BlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)})
	if err != nil {
		return nil, mapS3Error(id, err)
	}
	return fromObject(id, out.ContentType, out.ContentLength, out.Metadata), nil
}

func (s *S3BlobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.GetMetadata(ctx, id); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)}); err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

func fromObject(id string, contentType *string, length *int64, md map[string]string) *BlobMetadata {
	meta := &BlobMetadata{
		ID:          id,
		ContentType: aws.ToString(contentType),
		FileName:    md["file-name"],
		Workspace:   md["workspace"],
		Hash:        md["sha256"],
	}
	if length != nil {
		meta.Size = *length
	}
	if t, err := time.Parse(time.RFC3339Nano, md["created-at"]); err == nil {
		meta.CreatedAt = t
	}
	return meta
}

func mapS3Error(id string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}
	return fmt.Errorf("s3 object %s: %w", id, err)
}
