package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/store"
)

func newSeededVectorStore(t *testing.T) *store.EmbeddedVectorStore {
	t.Helper()
	ctx := context.Background()

	client := store.NewEmbeddedVectorStore()
	require.NoError(t, client.CreateCollection(ctx, store.CollectionInfo{
		Name:      "documents",
		Dimension: 4,
		Distance:  "cosine",
	}))
	require.NoError(t, client.UpsertPoints(ctx, "documents", []store.Point{
		{ID: "a", Vector: []float32{1, 0, 0, 0}, Payload: map[string]interface{}{"title": "first"}},
		{ID: "b", Vector: []float32{0, 1, 0, 0}},
		{ID: "c", Vector: []float32{0, 0, 1, 0}},
	}))

	return client
}

func TestVectorHandlerBackupAndVerify(t *testing.T) {
	ctx := context.Background()
	client := newSeededVectorStore(t)
	handler := NewVectorHandler(client, checksum.NewEngine(), nil)

	dir := t.TempDir()
	meta, err := handler.CreateBackup(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, VectorComponentName, meta.Name)
	assert.Equal(t, ComponentStatusCompleted, meta.Status)
	assert.Equal(t, int64(3), meta.RecordCount)
	assert.NotEmpty(t, meta.Checksum)

	assert.FileExists(t, filepath.Join(dir, "documents", "config.json"))
	assert.FileExists(t, filepath.Join(dir, "documents", "points.jsonl"))

	assert.NoError(t, handler.VerifyBackup(ctx, dir))
}

func TestVectorHandlerVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	handler := NewVectorHandler(newSeededVectorStore(t), checksum.NewEngine(), nil)

	dir := t.TempDir()
	_, err := handler.CreateBackup(ctx, dir)
	require.NoError(t, err)

	// Drop a point from the export; the count no longer matches the manifest.
	pointsPath := filepath.Join(dir, "documents", "points.jsonl")
	data, err := os.ReadFile(pointsPath)
	require.NoError(t, err)
	lines := splitLines(data)
	require.NoError(t, os.WriteFile(pointsPath, lines[0], 0644))

	err = handler.VerifyBackup(ctx, dir)
	assert.True(t, IsErrorType(err, BackupErrorTypeCorruption))
}

func TestVectorHandlerRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := checksum.NewEngine()

	source := newSeededVectorStore(t)
	sourceHandler := NewVectorHandler(source, engine, nil)

	dir := t.TempDir()
	meta, err := sourceHandler.CreateBackup(ctx, dir)
	require.NoError(t, err)

	target := store.NewEmbeddedVectorStore()
	targetHandler := NewVectorHandler(target, engine, nil)

	restored, err := targetHandler.RestoreBackup(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), restored)

	fingerprint, count, err := targetHandler.CurrentStateChecksum(ctx)
	require.NoError(t, err)
	assert.Equal(t, meta.Checksum, fingerprint)
	assert.Equal(t, int64(3), count)

	info, err := target.GetCollectionInfo(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Dimension)
	assert.Equal(t, "cosine", info.Distance)
}

func TestVectorHandlerRestoreReplacesExistingCollection(t *testing.T) {
	ctx := context.Background()
	engine := checksum.NewEngine()

	source := newSeededVectorStore(t)
	dir := t.TempDir()
	_, err := NewVectorHandler(source, engine, nil).CreateBackup(ctx, dir)
	require.NoError(t, err)

	// Target already has a conflicting collection with a different shape.
	target := store.NewEmbeddedVectorStore()
	require.NoError(t, target.CreateCollection(ctx, store.CollectionInfo{Name: "documents", Dimension: 8}))
	require.NoError(t, target.UpsertPoints(ctx, "documents", []store.Point{
		{ID: "stale", Vector: make([]float32, 8)},
	}))

	_, err = NewVectorHandler(target, engine, nil).RestoreBackup(ctx, dir)
	require.NoError(t, err)

	info, err := target.GetCollectionInfo(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Dimension)
	assert.Equal(t, int64(3), info.PointCount)
}

func TestVectorHandlerChecksumReflectsMutation(t *testing.T) {
	ctx := context.Background()
	client := newSeededVectorStore(t)
	handler := NewVectorHandler(client, checksum.NewEngine(), nil)

	before, _, err := handler.CurrentStateChecksum(ctx)
	require.NoError(t, err)

	require.NoError(t, client.UpsertPoints(ctx, "documents", []store.Point{
		{ID: "d", Vector: []float32{0, 0, 0, 1}},
	}))

	after, _, err := handler.CurrentStateChecksum(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

// splitLines splits JSONL content into its non-empty lines
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i+1])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
