package capture

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DirSink writes frames as files under a local directory.
type DirSink struct {
	dir string
	now func() time.Time
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &DirSink{dir: dir, now: time.Now}, nil
}

// Save writes item_<timestamp>_<id>.jpg and returns its path.
func (s *DirSink) Save(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("item_%s_%s.jpg", s.now().Format("20060102_150405"), uuid.New().String()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// ObjectPutter is the subset of the S3 client used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// S3Sink uploads frames to an S3 bucket.
type S3Sink struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Sink creates a sink that stores objects under prefix in bucket.
func NewS3Sink(client ObjectPutter, bucket, prefix string) *S3Sink {
	if prefix == "" {
		prefix = "items"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads the frame as <prefix>/<uuid>.jpg and returns its s3:// URI.
func (s *S3Sink) Save(ctx context.Context, image []byte) (string, error) {
	key := fmt.Sprintf("%s/%s.jpg", s.prefix, uuid.New().String())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentType:   aws.String(http.DetectContentType(image)),
		ContentLength: aws.Int64(int64(len(image))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
