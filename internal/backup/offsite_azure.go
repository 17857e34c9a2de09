package backup

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureBlobClient implements BlobClient over Azure Blob Storage
type AzureBlobClient struct {
	containerURL azblob.ContainerURL
}

// NewAzureBlobClient creates a blob client for the configured container
func NewAzureBlobClient(config *AzureConfig) (*AzureBlobClient, error) {
	if config == nil {
		return nil, NewValidationError("Azure storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureBlobClient{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
	}, nil
}

// Put uploads a blob under key
func (c *AzureBlobClient) Put(ctx context.Context, key string, data []byte) error {
	blobURL := c.containerURL.NewBlockBlobURL(key)

	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload blob to Azure", err)
	}
	return nil
}

// Get downloads the blob stored under key
func (c *AzureBlobClient) Get(ctx context.Context, key string) ([]byte, error) {
	blobURL := c.containerURL.NewBlockBlobURL(key)

	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok && storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil, NewNotFoundError("blob "+key+" not found", err)
		}
		return nil, NewStorageError("failed to download blob from Azure", err)
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewStorageError("failed to read blob body from Azure", err)
	}
	return data, nil
}

// Delete removes the blob stored under key
func (c *AzureBlobClient) Delete(ctx context.Context, key string) error {
	blobURL := c.containerURL.NewBlockBlobURL(key)

	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok && storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return NewNotFoundError("blob "+key+" not found", err)
		}
		return NewStorageError("failed to delete blob from Azure", err)
	}
	return nil
}

// List returns all blob keys under prefix
func (c *AzureBlobClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := c.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list blobs in Azure", err)
		}

		for _, blob := range response.Segment.BlobItems {
			keys = append(keys, blob.Name)
		}
		marker = response.NextMarker
	}

	return keys, nil
}

// Provider returns the provider name for logging
func (c *AzureBlobClient) Provider() string {
	return "azure"
}
