package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
	"memstore-backup/internal/store"
)

const (
	// VectorComponentName identifies the vector store component in manifests
	VectorComponentName = "vector_store"

	vectorManifestFile   = "component_manifest.json"
	vectorConfigFile     = "config.json"
	vectorPointsFile     = "points.jsonl"
	defaultScrollBatch   = 500
	defaultVectorSamples = 10
)

// VectorHandler backs up and restores the vector store component. Each
// collection is exported as a directory holding its configuration and a
// JSON-lines file of points.
type VectorHandler struct {
	client      store.VectorClient
	engine      *checksum.Engine
	logger      *logging.Logger
	scrollBatch int
	sampleSize  int
}

// vectorComponentManifest indexes the collections exported into a component directory
type vectorComponentManifest struct {
	Collections []vectorCollectionEntry `json:"collections"`
	TotalPoints int64                   `json:"total_points"`
	ExportedAt  time.Time               `json:"exported_at"`
}

type vectorCollectionEntry struct {
	Name       string `json:"name"`
	Dimension  int    `json:"dimension"`
	Distance   string `json:"distance"`
	PointCount int64  `json:"point_count"`
	Directory  string `json:"directory"`
}

// NewVectorHandler creates a handler for the vector store component
func NewVectorHandler(client store.VectorClient, engine *checksum.Engine, logger *logging.Logger) *VectorHandler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &VectorHandler{
		client:      client,
		engine:      engine,
		logger:      logger,
		scrollBatch: defaultScrollBatch,
		sampleSize:  defaultVectorSamples,
	}
}

// Name returns the component identifier
func (h *VectorHandler) Name() string {
	return VectorComponentName
}

// CreateBackup exports every collection into dir
func (h *VectorHandler) CreateBackup(ctx context.Context, dir string) (*ComponentMeta, error) {
	start := time.Now()

	collections, err := h.client.ListCollections(ctx)
	if err != nil {
		return nil, NewConnectivityError("failed to list vector collections", err).WithComponent(h.Name())
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewStorageError("failed to create vector backup directory", err)
	}

	manifest := &vectorComponentManifest{ExportedAt: time.Now().UTC()}
	var files []string

	for _, name := range collections {
		entry, collectionFiles, err := h.exportCollection(ctx, dir, name)
		if err != nil {
			return nil, err
		}
		manifest.Collections = append(manifest.Collections, *entry)
		manifest.TotalPoints += entry.PointCount
		files = append(files, collectionFiles...)
	}

	manifestPath := filepath.Join(dir, vectorManifestFile)
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		return nil, NewStorageError("failed to write vector component manifest", err)
	}
	files = append(files, vectorManifestFile)

	fingerprint, _, err := h.CurrentStateChecksum(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.WithFields(map[string]interface{}{
		"component":   h.Name(),
		"collections": len(manifest.Collections),
		"points":      manifest.TotalPoints,
	}).Debug("Vector component exported")

	return &ComponentMeta{
		Name:        h.Name(),
		Status:      ComponentStatusCompleted,
		RecordCount: manifest.TotalPoints,
		Files:       files,
		Checksum:    fingerprint,
		Duration:    time.Since(start),
	}, nil
}

func (h *VectorHandler) exportCollection(ctx context.Context, dir, name string) (*vectorCollectionEntry, []string, error) {
	info, err := h.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, nil, NewConnectivityError(fmt.Sprintf("failed to read collection %s", name), err).WithComponent(h.Name())
	}

	collectionDir := sanitizeFileName(name)
	if err := os.MkdirAll(filepath.Join(dir, collectionDir), 0755); err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to create directory for collection %s", name), err)
	}

	configPath := filepath.Join(dir, collectionDir, vectorConfigFile)
	if err := writeJSONFile(configPath, info); err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to write config for collection %s", name), err)
	}

	pointsPath := filepath.Join(dir, collectionDir, vectorPointsFile)
	written, err := h.exportPoints(ctx, name, pointsPath)
	if err != nil {
		return nil, nil, err
	}

	entry := &vectorCollectionEntry{
		Name:       name,
		Dimension:  info.Dimension,
		Distance:   info.Distance,
		PointCount: written,
		Directory:  collectionDir,
	}

	files := []string{
		filepath.Join(collectionDir, vectorConfigFile),
		filepath.Join(collectionDir, vectorPointsFile),
	}

	return entry, files, nil
}

func (h *VectorHandler) exportPoints(ctx context.Context, collection, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, NewStorageError(fmt.Sprintf("failed to create points file for %s", collection), err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	var written int64
	cursor := ""
	for {
		points, next, err := h.client.ScrollPoints(ctx, collection, cursor, h.scrollBatch)
		if err != nil {
			return written, NewConnectivityError(fmt.Sprintf("failed to scroll points in %s", collection), err).WithComponent(h.Name())
		}

		for _, point := range points {
			if err := encoder.Encode(point); err != nil {
				return written, NewStorageError(fmt.Sprintf("failed to write point in %s", collection), err)
			}
			written++
		}

		if next == "" {
			break
		}
		cursor = next
	}

	if err := writer.Flush(); err != nil {
		return written, NewStorageError(fmt.Sprintf("failed to flush points file for %s", collection), err)
	}

	return written, nil
}

// RestoreBackup recreates every exported collection and loads its points in
// batches. Existing collections with the same names are replaced.
func (h *VectorHandler) RestoreBackup(ctx context.Context, dir string) (int64, error) {
	manifest, err := h.readComponentManifest(dir)
	if err != nil {
		return 0, err
	}

	var restored int64
	for _, entry := range manifest.Collections {
		count, err := h.restoreCollection(ctx, dir, entry)
		if err != nil {
			return restored, err
		}
		restored += count
	}

	return restored, nil
}

func (h *VectorHandler) restoreCollection(ctx context.Context, dir string, entry vectorCollectionEntry) (int64, error) {
	// Replace any existing collection of the same name. A missing
	// collection is fine; only a creation failure matters.
	_ = h.client.DeleteCollection(ctx, entry.Name)

	info := store.CollectionInfo{
		Name:      entry.Name,
		Dimension: entry.Dimension,
		Distance:  entry.Distance,
	}
	if err := h.client.CreateCollection(ctx, info); err != nil {
		return 0, NewConnectivityError(fmt.Sprintf("failed to create collection %s", entry.Name), err).WithComponent(h.Name())
	}

	pointsPath := filepath.Join(dir, entry.Directory, vectorPointsFile)
	file, err := os.Open(pointsPath)
	if err != nil {
		return 0, NewStorageError(fmt.Sprintf("failed to open points file for %s", entry.Name), err)
	}
	defer file.Close()

	var restored int64
	batch := make([]store.Point, 0, h.scrollBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := h.client.UpsertPoints(ctx, entry.Name, batch); err != nil {
			return NewConnectivityError(fmt.Sprintf("failed to upsert points into %s", entry.Name), err).WithComponent(h.Name())
		}
		restored += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var point store.Point
		if err := json.Unmarshal(line, &point); err != nil {
			return restored, NewCorruptionError(fmt.Sprintf("malformed point record in %s", entry.Name), err)
		}

		batch = append(batch, point)
		if len(batch) >= h.scrollBatch {
			if err := flush(); err != nil {
				return restored, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return restored, NewStorageError(fmt.Sprintf("failed to read points file for %s", entry.Name), err)
	}

	if err := flush(); err != nil {
		return restored, err
	}

	if restored != entry.PointCount {
		return restored, NewCorruptionError(
			fmt.Sprintf("collection %s restored %d points, manifest declares %d", entry.Name, restored, entry.PointCount), nil)
	}

	return restored, nil
}

// VerifyBackup checks the exported files against the component manifest
// without touching the backend
func (h *VectorHandler) VerifyBackup(ctx context.Context, dir string) error {
	manifest, err := h.readComponentManifest(dir)
	if err != nil {
		return err
	}

	for _, entry := range manifest.Collections {
		configPath := filepath.Join(dir, entry.Directory, vectorConfigFile)
		if _, err := os.Stat(configPath); err != nil {
			return NewCorruptionError(fmt.Sprintf("missing config file for collection %s", entry.Name), err)
		}

		pointsPath := filepath.Join(dir, entry.Directory, vectorPointsFile)
		count, err := countJSONLines(pointsPath)
		if err != nil {
			return NewCorruptionError(fmt.Sprintf("unreadable points file for collection %s", entry.Name), err)
		}
		if count != entry.PointCount {
			return NewCorruptionError(
				fmt.Sprintf("collection %s has %d points on disk, manifest declares %d", entry.Name, count, entry.PointCount), nil)
		}
	}

	return nil
}

// CurrentStateChecksum fingerprints the live vector store state
func (h *VectorHandler) CurrentStateChecksum(ctx context.Context) (string, int64, error) {
	collections, err := h.client.ListCollections(ctx)
	if err != nil {
		return "", 0, NewConnectivityError("failed to list vector collections", err).WithComponent(h.Name())
	}

	var states []checksum.VectorCollectionState
	var totalPoints int64

	for _, name := range collections {
		info, err := h.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return "", 0, NewConnectivityError(fmt.Sprintf("failed to read collection %s", name), err).WithComponent(h.Name())
		}

		sample, _, err := h.client.ScrollPoints(ctx, name, "", h.sampleSize)
		if err != nil {
			return "", 0, NewConnectivityError(fmt.Sprintf("failed to sample collection %s", name), err).WithComponent(h.Name())
		}

		lengths := make([]int, 0, len(sample))
		for _, point := range sample {
			lengths = append(lengths, len(point.Vector))
		}

		states = append(states, checksum.VectorCollectionState{
			Name:          name,
			PointCount:    info.PointCount,
			Dimension:     info.Dimension,
			SampleLengths: lengths,
		})
		totalPoints += info.PointCount
	}

	fingerprint, err := h.engine.VectorFingerprint(states)
	if err != nil {
		return "", 0, err
	}

	return fingerprint, totalPoints, nil
}

func (h *VectorHandler) readComponentManifest(dir string) (*vectorComponentManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, vectorManifestFile))
	if err != nil {
		return nil, NewCorruptionError("missing vector component manifest", err)
	}

	var manifest vectorComponentManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, NewCorruptionError("malformed vector component manifest", err)
	}

	return &manifest, nil
}
