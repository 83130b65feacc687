package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kendall-kelly/production-planner-api/config"
)

// S3Interface defines the S3 operations the event archive needs
type S3Interface interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Service writes objects into the configured bucket
type S3Service struct {
	client *s3.Client
	bucket string
}

// InitS3Service initializes the S3 client with the configured credentials
func InitS3Service(ctx context.Context, cfg *config.Config) (*S3Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Service{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
	}, nil
}

func (s *S3Service) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// S3EventSink archives every domain event as one JSON object.
// Keys: <prefix>/<company>/<yyyy-mm-dd>/<type>/<event id>.json
type S3EventSink struct {
	s3     S3Interface
	prefix string
}

func NewS3EventSink(s3Service S3Interface, prefix string) *S3EventSink {
	return &S3EventSink{s3: s3Service, prefix: prefix}
}

func (s *S3EventSink) Publish(ctx context.Context, event DomainEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return s.s3.PutObject(ctx, s.Key(event), body, "application/json")
}

// Key returns the object key an event is archived under
func (s *S3EventSink) Key(event DomainEvent) string {
	return fmt.Sprintf("%s/%d/%s/%s/%s.json",
		s.prefix,
		event.CompanyID,
		event.OccurredAt.UTC().Format("2006-01-02"),
		event.Type,
		event.ID,
	)
}
