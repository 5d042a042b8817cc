package definition

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxObjectSize caps definitions fetched from S3.
const MaxObjectSize = 4 << 20

// S3Fetcher downloads definitions from S3 with the transfer manager.
type S3Fetcher struct {
	downloader *manager.Downloader
	client     *s3.Client
}

// NewS3Fetcher creates a fetcher for the given client.
func NewS3Fetcher(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
		}),
		client: client,
	}
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}
	if size := aws.ToInt64(head.ContentLength); size > MaxObjectSize {
		return nil, fmt.Errorf("s3://%s/%s is %d bytes, limit is %d", bucket, key, size, MaxObjectSize)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(head.ContentLength)))
	if _, err := f.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}
