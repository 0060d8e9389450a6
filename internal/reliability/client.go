// Package reliability archives each run's proposal report to an
// S3-compatible bucket after execute() succeeds, so a report can be
// recovered even if the sqlite data directory is lost. Backup is always
// optional: every method degrades to a no-op (or a logged warning) when
// no bucket is configured, and no caller's run ever fails because this
// package failed.
//
// Grounded on the teacher's internal/reliability/r2_backup_service.go,
// which drives an R2Client through Upload/List/Delete without that
// client's own definition appearing anywhere in the retrieved example
// pack. The orchestration below (object naming, listing, rotation) keeps
// that shape; the client itself is a direct aws-sdk-go-v2 S3 wiring,
// since R2 and MinIO both speak the S3 API and the SDK's BaseEndpoint
// override is the standard way to point it at a non-AWS endpoint.
package reliability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aristath/territory-assign/internal/config"
)

// ObjectInfo describes one stored object, independent of the backing SDK type.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Client is the minimal object-store surface Service needs. Backed by
// S3Client in production and fakeable in tests.
type Client interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// S3Client wraps aws-sdk-go-v2's S3 client and transfer manager.
type S3Client struct {
	bucket   string
	api      *s3.Client
	uploader *manager.Uploader
}

// NewS3Client builds a Client from BackupConfig. Returns (nil, nil) when
// no bucket is configured so callers can treat backup as disabled rather
// than erroring.
func NewS3Client(ctx context.Context, cfg config.BackupConfig) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		bucket:   cfg.Bucket,
		api:      api,
		uploader: manager.NewUploader(api),
	}, nil
}

func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}

func (c *S3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := ObjectInfo{Key: *obj.Key}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return err
}

// objectTimestamp recovers the timestamp embedded in a key produced by
// Service.Archive, keyed as "<buildID>/<YYYYMMDD-HHMMSS>.json.gz".
func objectTimestamp(key string) (time.Time, bool) {
	base := key[strings.LastIndex(key, "/")+1:]
	base = strings.TrimSuffix(base, ".json.gz")
	t, err := time.Parse("20060102-150405", base)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
