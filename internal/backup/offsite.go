package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"memstore-backup/internal/logging"
)

// BlobClient is the minimal surface an offsite backend must provide. Each
// provider (local, S3, GCS, Azure) implements it; the replicator layers
// archiving, compression, and encryption on top.
type BlobClient interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Provider() string
}

// OffsiteReplicator implements OffsiteProvider by packing a backup tree into
// a single tar archive, compressing and optionally encrypting it, and
// handing the blob to the configured backend.
type OffsiteReplicator struct {
	client      BlobClient
	compression *CompressionManager
	encryption  *EncryptionManager
	algorithm   CompressionType
	level       int
	logger      *logging.Logger
}

// NewOffsiteReplicator creates a replicator over the given blob backend.
// Pass CompressionTypeNone to skip compression; a nil encryption config
// disables encryption.
func NewOffsiteReplicator(client BlobClient, algorithm CompressionType, level int, encryptionConfig *EncryptionConfig, logger *logging.Logger) *OffsiteReplicator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if encryptionConfig == nil {
		encryptionConfig = &EncryptionConfig{}
	}
	if algorithm == "" {
		algorithm = CompressionTypeGzip
	}

	return &OffsiteReplicator{
		client:      client,
		compression: NewCompressionManager(),
		encryption:  NewEncryptionManager(encryptionConfig),
		algorithm:   algorithm,
		level:       level,
		logger:      logger,
	}
}

// ReplicaInfo describes a backup replica stored offsite
type ReplicaInfo struct {
	Provider    string          `json:"provider"`
	Bytes       int64           `json:"bytes"`
	Compression CompressionType `json:"compression"`
	Encrypted   bool            `json:"encrypted"`
}

// Upload packs the backup tree and stores it offsite under the backup ID
func (r *OffsiteReplicator) Upload(ctx context.Context, backupID string, dir string) (*ReplicaInfo, error) {
	start := time.Now()

	archive, err := packDirectory(dir)
	if err != nil {
		return nil, NewStorageError("failed to archive backup tree", err)
	}

	compressed, _, err := r.compression.Compress(archive, r.algorithm, r.level)
	if err != nil {
		return nil, err
	}

	payload, _, err := r.encryption.Encrypt(compressed)
	if err != nil {
		return nil, err
	}

	key := r.blobKey(backupID)
	if err := r.client.Put(ctx, key, payload); err != nil {
		r.logger.LogOffsiteTransfer(r.client.Provider(), backupID, "upload", 0, time.Since(start), err)
		return nil, err
	}

	bytes := int64(len(payload))
	r.logger.LogOffsiteTransfer(r.client.Provider(), backupID, "upload", bytes, time.Since(start), nil)

	return &ReplicaInfo{
		Provider:    r.client.Provider(),
		Bytes:       bytes,
		Compression: r.algorithm,
		Encrypted:   r.encryption.Enabled(),
	}, nil
}

// Download fetches a replicated backup and unpacks it into dir
func (r *OffsiteReplicator) Download(ctx context.Context, backupID string, dir string) (int64, error) {
	start := time.Now()

	payload, err := r.client.Get(ctx, r.blobKey(backupID))
	if err != nil {
		r.logger.LogOffsiteTransfer(r.client.Provider(), backupID, "download", 0, time.Since(start), err)
		return 0, err
	}

	compressed, err := r.encryption.Decrypt(payload)
	if err != nil {
		return 0, err
	}

	archive, err := r.compression.Decompress(compressed, r.algorithm)
	if err != nil {
		return 0, err
	}

	if err := unpackDirectory(archive, dir); err != nil {
		return 0, NewStorageError("failed to unpack backup archive", err)
	}

	bytes := int64(len(payload))
	r.logger.LogOffsiteTransfer(r.client.Provider(), backupID, "download", bytes, time.Since(start), nil)

	return bytes, nil
}

// Delete removes a replicated backup
func (r *OffsiteReplicator) Delete(ctx context.Context, backupID string) error {
	return r.client.Delete(ctx, r.blobKey(backupID))
}

// List returns the backup IDs present offsite
func (r *OffsiteReplicator) List(ctx context.Context) ([]string, error) {
	keys, err := r.client.List(ctx, "backups/")
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, key := range keys {
		id := strings.TrimPrefix(key, "backups/")
		id = strings.TrimSuffix(id, ".tar."+r.extension())
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

func (r *OffsiteReplicator) blobKey(backupID string) string {
	return "backups/" + sanitizeBackupID(backupID) + ".tar." + r.extension()
}

func (r *OffsiteReplicator) extension() string {
	switch r.algorithm {
	case CompressionTypeLZ4:
		return "lz4"
	case CompressionTypeZstd:
		return "zst"
	case CompressionTypeNone:
		return "raw"
	default:
		return "gz"
	}
}

// packDirectory writes every regular file under dir into a tar archive with
// slash-separated relative paths, sorted for deterministic output.
func packDirectory(dir string) ([]byte, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var buf bytes.Buffer
	writer := tar.NewWriter(&buf)

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		header := &tar.Header{
			Name:    filepath.ToSlash(rel),
			Mode:    0644,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := writer.WriteHeader(header); err != nil {
			return nil, err
		}

		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(writer, file); err != nil {
			file.Close()
			return nil, err
		}
		file.Close()
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// unpackDirectory extracts a tar archive into dir, rejecting entries that
// would escape it.
func unpackDirectory(archive []byte, dir string) error {
	reader := tar.NewReader(bytes.NewReader(archive))

	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if strings.Contains(header.Name, "..") {
			return fmt.Errorf("archive entry %s escapes the target directory", header.Name)
		}

		target := filepath.Join(dir, filepath.FromSlash(header.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		file, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(file, reader); err != nil {
			file.Close()
			return err
		}
		file.Close()
	}
}
