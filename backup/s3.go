package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Uploader pushes finished archives to an S3 bucket or compatible
// service for off-site retention.
type S3Uploader struct {
	client *s3.S3
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Uploader creates an uploader. endpoint is optional and enables
// S3-compatible services; accessKey/secretKey fall back to the default
// credential chain when empty.
func NewS3Uploader(bucket, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Uploader, error) {
	cfg := aws.Config{
		Region: aws.String(region),
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

	return &S3Uploader{
		client: s3.New(sess),
		bucket: bucket,
		prefix: prefix,
		log:    log,
	}, nil
}

// Upload stores the archive under <prefix>/<filename> in the bucket.
func (u *S3Uploader) Upload(ctx context.Context, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive for upload: %w", err)
	}
	defer f.Close()

	key := path.Join(u.prefix, filepath.Base(archivePath))
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive to s3://%s/%s: %w", u.bucket, key, err)
	}

	u.log.Info("Uploaded backup archive",
		slog.String("bucket", u.bucket),
		slog.String("key", key))
	return nil
}
