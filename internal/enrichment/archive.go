package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/agenda/internal/tracing"
)

// Archiver stores the extraction context of a URL for later inspection.
type Archiver interface {
	Put(ctx context.Context, key, body string) error
}

// ArchiveKey returns the object key for the context of url.
func ArchiveKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "enrichment/" + hex.EncodeToString(sum[:]) + ".md"
}

// ArchiveConfig holds the S3-compatible bucket settings.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archiver writes contexts to an S3-compatible bucket such as R2.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver creates an archiver. All fields of cfg are required.
func NewS3Archiver(cfg ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})
	return &S3Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads body under key.
func (a *S3Archiver) Put(ctx context.Context, key, body string) (err error) {
	ctx, endSpan := tracing.StartProviderSpan(ctx, "s3", "put_object")
	defer func() { endSpan(err) }()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return nil
}
