package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"thriftly_backend/config"
)

// S3PutAPI is the part of *s3.Client that S3Storage uses.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Storage struct {
	client  S3PutAPI
	bucket  string
	baseURL string
}

// NewS3Storage builds a client from static credentials when they are set and
// from the default AWS chain otherwise.
func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	baseURL := cfg.MediaBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
	return NewS3StorageWithClient(s3.NewFromConfig(awsCfg), cfg.AwsS3Bucket, baseURL), nil
}

func NewS3StorageWithClient(client S3PutAPI, bucket, baseURL string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *S3Storage) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key = "uploads/" + strings.TrimLeft(key, "/")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
