package retrieval

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher downloads objects from S3 or an S3-compatible store with a
// custom endpoint. The client is built once and reused across jobs.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher creates the fetcher with static credentials. For
// S3-compatible services set endpoint; path-style addressing is used
// there.
func NewS3Fetcher(ctx context.Context, accessKeyID, secretAccessKey, region, endpoint string) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, s3Path, dest string) error {
	bucket, key, err := ParseS3Path(s3Path)
	if err != nil {
		return err
	}

	obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, obj.Body); err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	return nil
}
