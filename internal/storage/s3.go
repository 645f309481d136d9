package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObjectAPI is the part of the S3 client the uploader uses
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Uploader handles media uploads to AWS S3
type S3Uploader struct {
	client  ObjectAPI
	bucket  string
	region  string
	baseURL string
	now     func() time.Time
}

// UploadResult contains the result of an S3 upload
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"content_type"`
}

// NewS3Uploader creates an uploader from the default AWS credential chain.
// baseURL is the CDN origin; empty falls back to the bucket's S3 URL.
func NewS3Uploader(ctx context.Context, region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), region, bucket, baseURL), nil
}

// NewS3UploaderWithClient wraps an existing client
func NewS3UploaderWithClient(client ObjectAPI, region, bucket, baseURL string) *S3Uploader {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

// ObjectKey builds {kind}/{yyyy}/{mm}/{ownerID}/{uuid}{ext}
func ObjectKey(kind Kind, ownerID, filename string, now time.Time, id string) string {
	return fmt.Sprintf("%s/%d/%02d/%s/%s%s",
		kind, now.Year(), now.Month(), ownerID, id, strings.ToLower(filepath.Ext(filename)))
}

// Upload streams body to a fresh key under kind and returns its public URL
func (u *S3Uploader) Upload(ctx context.Context, kind Kind, ownerID, filename string, body io.Reader) (*UploadResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown upload kind %q", kind)
	}

	now := u.now().UTC()
	key := ObjectKey(kind, ownerID, filename, now, uuid.New().String())
	contentType := ContentType(filepath.Ext(filename))

	ctx, span := telemetry.TraceExternalCall(ctx, "s3", "put_object",
		attribute.String("s3.bucket", u.bucket),
		attribute.String("s3.key", key),
	)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=31536000, immutable"),
		Metadata: map[string]string{
			"owner-id":          ownerID,
			"original-filename": filepath.Base(filename),
			"upload-timestamp":  now.Format(time.RFC3339),
			"kind":              string(kind),
		},
	})
	telemetry.End(span, err)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.Get().UploadsTotal.WithLabelValues(string(kind), status).Inc()

	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         u.PublicURL(key),
		Bucket:      u.bucket,
		ContentType: contentType,
	}, nil
}

// PublicURL returns the CDN URL for key
func (u *S3Uploader) PublicURL(key string) string {
	return u.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// KeyFromURL inverts PublicURL; false when url is not under our base
func (u *S3Uploader) KeyFromURL(url string) (string, bool) {
	prefix := u.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	ctx, span := telemetry.TraceExternalCall(ctx, "s3", "delete_object", attribute.String("s3.key", key))
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckBucketAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}
	return nil
}

// ContentType returns the MIME type for a file extension
func ContentType(extension string) string {
	switch strings.ToLower(extension) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
