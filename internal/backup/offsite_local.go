package backup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBlobClient implements BlobClient over a local directory. It exists
// for mirroring backups to a second mount and for exercising the offsite
// path in tests.
type LocalBlobClient struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalBlobClient creates a blob client rooted at config.BasePath
func NewLocalBlobClient(config *LocalConfig) (*LocalBlobClient, error) {
	if config == nil {
		return nil, NewValidationError("local storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid local storage configuration", err)
	}

	client := &LocalBlobClient{
		basePath:    config.BasePath,
		permissions: config.Permissions,
	}

	if err := os.MkdirAll(client.basePath, client.permissions); err != nil {
		return nil, NewStorageError("failed to create offsite base directory", err)
	}

	return client, nil
}

// Put writes a blob under key
func (c *LocalBlobClient) Put(ctx context.Context, key string, data []byte) error {
	path := c.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), c.permissions); err != nil {
		return NewStorageError("failed to create blob directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return NewStorageError("failed to write blob", err)
	}
	return nil
}

// Get reads the blob stored under key
func (c *LocalBlobClient) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.keyPath(key))
	if os.IsNotExist(err) {
		return nil, NewNotFoundError("blob "+key+" not found", err)
	}
	if err != nil {
		return nil, NewStorageError("failed to read blob", err)
	}
	return data, nil
}

// Delete removes the blob stored under key
func (c *LocalBlobClient) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.keyPath(key))
	if os.IsNotExist(err) {
		return NewNotFoundError("blob "+key+" not found", err)
	}
	if err != nil {
		return NewStorageError("failed to delete blob", err)
	}
	return nil
}

// List returns all blob keys under prefix, sorted
func (c *LocalBlobClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(c.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(c.basePath, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, NewStorageError("failed to list blobs", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Provider returns the provider name for logging
func (c *LocalBlobClient) Provider() string {
	return "local"
}

func (c *LocalBlobClient) keyPath(key string) string {
	return filepath.Join(c.basePath, filepath.FromSlash(key))
}
