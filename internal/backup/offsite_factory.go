package backup

import (
	"context"
	"fmt"

	"memstore-backup/internal/logging"
)

// NewOffsiteProvider builds the offsite replicator selected by the storage
// configuration. The local provider means backups stay on the primary disk
// only, so it returns a nil provider.
func NewOffsiteProvider(ctx context.Context, system *BackupSystemConfig, logger *logging.Logger) (OffsiteProvider, error) {
	if system == nil {
		return nil, NewConfigurationError("backup system configuration is required", nil)
	}

	var client BlobClient
	var err error

	switch system.Storage.Provider {
	case StorageProviderLocal, "":
		return nil, nil
	case StorageProviderS3:
		client, err = NewS3BlobClient(system.Storage.S3)
	case StorageProviderAzure:
		client, err = NewAzureBlobClient(system.Storage.Azure)
	case StorageProviderGCS:
		client, err = NewGCSBlobClient(ctx, system.Storage.GCS)
	default:
		return nil, NewConfigurationError(
			fmt.Sprintf("unsupported storage provider: %s", system.Storage.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	algorithm := system.Compression.Algorithm
	if !system.Compression.Enabled {
		algorithm = CompressionTypeNone
	}

	encryption := system.Encryption
	return NewOffsiteReplicator(client, algorithm, system.Compression.Level, &encryption, logger), nil
}
