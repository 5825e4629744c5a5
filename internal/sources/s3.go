package sources

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"catalog-import-service/internal/models"
)

// S3API is the part of the S3 client the source needs
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source downloads a CSV or XLSX object and parses it like an upload
type S3Source struct {
	client  S3API
	bucket  string
	key     string
	maxRows int
}

func NewS3Source(client S3API, bucket, key string, maxRows int) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key, maxRows: maxRows}
}

func (s *S3Source) Type() models.SourceType {
	return models.SourceS3
}

func (s *S3Source) Fetch(ctx context.Context, limit int) (models.RowBatch, error) {
	if _, err := FormatFromName(s.key); err != nil {
		return models.RowBatch{}, fetchError(s.Type(), err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return models.RowBatch{}, fetchError(s.Type(), fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return models.RowBatch{}, fetchError(s.Type(), fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err))
	}

	file, err := NewFileSource(s.key, data, s.maxRows)
	if err != nil {
		return models.RowBatch{}, fetchError(s.Type(), err)
	}
	file.sourceType = models.SourceS3
	return file.Fetch(ctx, limit)
}
