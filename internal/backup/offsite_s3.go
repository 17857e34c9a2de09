package backup

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3BlobClient implements BlobClient over Amazon S3
type S3BlobClient struct {
	client *s3.S3
	bucket string
}

// NewS3BlobClient creates a blob client for the configured bucket
func NewS3BlobClient(config *S3Config) (*S3BlobClient, error) {
	if config == nil {
		return nil, NewValidationError("S3 storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid S3 storage configuration", err)
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		),
	})
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return &S3BlobClient{
		client: s3.New(sess),
		bucket: config.Bucket,
	}, nil
}

// Put uploads a blob under key
func (c *S3BlobClient) Put(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return NewStorageError("failed to upload blob to S3", err)
	}
	return nil
}

// Get downloads the blob stored under key
func (c *S3BlobClient) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := c.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, NewNotFoundError("blob "+key+" not found", err)
		}
		return nil, NewStorageError("failed to download blob from S3", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, NewStorageError("failed to read blob body from S3", err)
	}
	return data, nil
}

// Delete removes the blob stored under key
func (c *S3BlobClient) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return NewStorageError("failed to delete blob from S3", err)
	}
	return nil
}

// List returns all blob keys under prefix
func (c *S3BlobClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := c.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			if object.Key != nil {
				keys = append(keys, strings.TrimSpace(*object.Key))
			}
		}
		return true
	})
	if err != nil {
		return nil, NewStorageError("failed to list blobs in S3", err)
	}

	return keys, nil
}

// Provider returns the provider name for logging
func (c *S3BlobClient) Provider() string {
	return "s3"
}
