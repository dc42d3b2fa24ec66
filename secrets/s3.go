package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/tee-reporteer/interfaces"
)

// S3Source reads the secret from a single object in Amazon S3 or a compatible service.
type S3Source struct {
	client      *s3.S3
	bucketName  string
	key         string
	log         *slog.Logger
	locationURI string
}

// NewS3Source creates a new S3 object source.
// If accessKey and secretKey are provided they are used as static credentials,
// otherwise requests are sent unsigned.
func NewS3Source(bucketName, key, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Source, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, key, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.AnonymousCredentials,
	}

	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Source{
		client:      s3.New(sess),
		bucketName:  bucketName,
		key:         key,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch downloads the object body.
// Returns ErrSecretNotFound if the object doesn't exist.
func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, s.locationURI)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := readSecret(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.log.Debug("Fetched derived key from S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", s.key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Name returns the location URI without credentials.
func (s *S3Source) Name() string {
	return s.locationURI
}
