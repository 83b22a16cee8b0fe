package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"scribo/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Archive retains original audio files after successful transcription.
// Works against any S3-compatible endpoint.
type S3Archive struct {
	client *s3.Client
	bucket string
}

func NewS3Archive(endpoint, region, accessKey, secretKey, bucket string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	logger.Info("S3 archive initialized", zap.String("bucket", bucket))

	return &S3Archive{
		client: client,
		bucket: bucket,
	}, nil
}

// ArchiveFile uploads the file at path under key and returns its location.
func (s *S3Archive) ArchiveFile(ctx context.Context, key, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio for archival: %w", err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// GenerateKey builds a date-partitioned object key for a job's audio.
func (s *S3Archive) GenerateKey(jobID, extension string) string {
	return fmt.Sprintf("audio/%s/%s%s", time.Now().Format("2006/01/02"), jobID, extension)
}
