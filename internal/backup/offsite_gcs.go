package backup

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBlobClient implements BlobClient over Google Cloud Storage
type GCSBlobClient struct {
	client *storage.Client
	bucket string
}

// NewGCSBlobClient creates a blob client for the configured bucket. With an
// empty credentials path the client falls back to application default
// credentials.
func NewGCSBlobClient(ctx context.Context, config *GCSConfig) (*GCSBlobClient, error) {
	if config == nil {
		return nil, NewValidationError("GCS storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid GCS storage configuration", err)
	}

	var client *storage.Client
	var err error
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSBlobClient{
		client: client,
		bucket: config.Bucket,
	}, nil
}

// Put uploads a blob under key
func (c *GCSBlobClient) Put(ctx context.Context, key string, data []byte) error {
	writer := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return NewStorageError("failed to write blob to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return NewStorageError("failed to upload blob to GCS", err)
	}
	return nil
}

// Get downloads the blob stored under key
func (c *GCSBlobClient) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, NewNotFoundError("blob "+key+" not found", err)
		}
		return nil, NewStorageError("failed to open blob in GCS", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewStorageError("failed to read blob from GCS", err)
	}
	return data, nil
}

// Delete removes the blob stored under key
func (c *GCSBlobClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Bucket(c.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return NewNotFoundError("blob "+key+" not found", err)
		}
		return NewStorageError("failed to delete blob from GCS", err)
	}
	return nil
}

// List returns all blob keys under prefix
func (c *GCSBlobClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list blobs in GCS", err)
		}
		keys = append(keys, attrs.Name)
	}

	return keys, nil
}

// Provider returns the provider name for logging
func (c *GCSBlobClient) Provider() string {
	return "gcs"
}

// Close releases the underlying GCS client
func (c *GCSBlobClient) Close() error {
	return c.client.Close()
}
