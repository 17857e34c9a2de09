package backup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/store"
)

// testRig wires real handlers over embedded stores onto an orchestrator
// rooted in a temp directory.
type testRig struct {
	vectorStore  *store.EmbeddedVectorStore
	graphStore   *store.EmbeddedGraphStore
	engine       *checksum.Engine
	registry     *HandlerRegistry
	store        *LocalManifestStore
	orchestrator *Orchestrator
	restore      *RestoreOrchestrator
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		vectorStore: newSeededVectorStore(t),
		graphStore:  newSeededGraphStore(t),
		engine:      checksum.NewEngine(),
	}

	rig.registry = NewHandlerRegistry()
	require.NoError(t, rig.registry.Register(NewVectorHandler(rig.vectorStore, rig.engine, nil)))
	require.NoError(t, rig.registry.Register(NewGraphHandler(rig.graphStore, rig.engine, nil)))

	manifestStore, err := NewLocalManifestStore(&LocalConfig{BasePath: t.TempDir(), Permissions: 0755})
	require.NoError(t, err)
	rig.store = manifestStore

	rig.orchestrator = NewOrchestrator(rig.registry, manifestStore, rig.engine, nil)
	rig.restore = NewRestoreOrchestrator(rig.registry, manifestStore, rig.engine, nil)

	return rig
}

func TestCreateBackupFullCycle(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Description: "nightly",
		Tags:        map[string]string{"env": "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, BackupStatusCompleted, manifest.Status)
	assert.Equal(t, BackupKindFull, manifest.Kind)
	assert.Len(t, manifest.Components, 2)
	assert.NotEmpty(t, manifest.TreeChecksum)
	assert.Greater(t, manifest.Size, int64(0))
	assert.False(t, manifest.CompletedAt.IsZero())
	assert.False(t, manifest.CompletedAt.Before(manifest.CreatedAt))

	// FileCount covers every file sealed under the tree checksum, which is
	// everything in the backup directory except the manifest itself.
	var onDisk int64
	err = filepath.WalkDir(rig.store.BackupDir(manifest.BackupID), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != "manifest.json" {
			onDisk++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, onDisk, manifest.FileCount)
	assert.Greater(t, manifest.FileCount, int64(0))

	for _, name := range []string{VectorComponentName, GraphComponentName} {
		meta := manifest.Components[name]
		require.NotNil(t, meta)
		assert.Equal(t, ComponentStatusCompleted, meta.Status)
		assert.NotEmpty(t, meta.Checksum)
	}

	loaded, err := rig.store.LoadManifest(manifest.BackupID)
	require.NoError(t, err)
	assert.Equal(t, manifest.TreeChecksum, loaded.TreeChecksum)

	// The pre-backup state checksum lives in the system snapshot, inside
	// the checksummed tree.
	snapshot, err := rig.orchestrator.LoadSystemSnapshot(manifest.BackupID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{VectorComponentName, GraphComponentName}, snapshot.Components)
	require.NotNil(t, snapshot.PreBackupChecksum)
	assert.Equal(t, int64(3), snapshot.PreBackupChecksum.RecordCounts[VectorComponentName])
}

func TestCreateBackupSelectedComponent(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Components: []string{VectorComponentName},
	})
	require.NoError(t, err)

	assert.Len(t, manifest.Components, 1)
	assert.Contains(t, manifest.Components, VectorComponentName)
}

func TestCreateBackupPartialFailure(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	require.NoError(t, rig.registry.Register(&stubHandler{
		name: "broken_store",
		createFunc: func(ctx context.Context, dir string) (*ComponentMeta, error) {
			return nil, NewConnectivityError("backend down", nil)
		},
	}))

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NotNil(t, manifest)
	assert.True(t, IsErrorType(err, BackupErrorTypePartial))
	assert.Equal(t, BackupStatusCompletedWithError, manifest.Status)

	meta := manifest.Components["broken_store"]
	require.NotNil(t, meta)
	assert.Equal(t, ComponentStatusFailed, meta.Status)
	assert.Contains(t, meta.Error, "backend down")

	// The healthy components were still exported.
	assert.Equal(t, ComponentStatusCompleted, manifest.Components[VectorComponentName].Status)
	assert.Equal(t, ComponentStatusCompleted, manifest.Components[GraphComponentName].Status)
}

func TestCreateBackupFailFast(t *testing.T) {
	ctx := context.Background()

	rig := &testRig{engine: checksum.NewEngine()}
	rig.registry = NewHandlerRegistry()
	require.NoError(t, rig.registry.Register(&stubHandler{
		name: "broken_store",
		createFunc: func(ctx context.Context, dir string) (*ComponentMeta, error) {
			return nil, NewConnectivityError("backend down", nil)
		},
	}))
	vectorCalled := false
	require.NoError(t, rig.registry.Register(&stubHandler{
		name: "healthy_store",
		createFunc: func(ctx context.Context, dir string) (*ComponentMeta, error) {
			vectorCalled = true
			return &ComponentMeta{Name: "healthy_store", Status: ComponentStatusCompleted}, nil
		},
	}))

	manifestStore, err := NewLocalManifestStore(&LocalConfig{BasePath: t.TempDir(), Permissions: 0755})
	require.NoError(t, err)
	orchestrator := NewOrchestrator(rig.registry, manifestStore, rig.engine, nil)

	manifest, err := orchestrator.CreateBackup(ctx, BackupConfig{FailFast: true})
	require.Error(t, err)
	assert.Equal(t, BackupStatusFailed, manifest.Status)
	assert.False(t, vectorCalled, "fail-fast must stop before later components run")
}

func TestCreateBackupEveryComponentFailed(t *testing.T) {
	ctx := context.Background()

	registry := NewHandlerRegistry()
	require.NoError(t, registry.Register(&stubHandler{
		name: "broken_store",
		createFunc: func(ctx context.Context, dir string) (*ComponentMeta, error) {
			return nil, NewConnectivityError("backend down", nil)
		},
	}))

	manifestStore, err := NewLocalManifestStore(&LocalConfig{BasePath: t.TempDir(), Permissions: 0755})
	require.NoError(t, err)
	orchestrator := NewOrchestrator(registry, manifestStore, checksum.NewEngine(), nil)

	manifest, err := orchestrator.CreateBackup(ctx, BackupConfig{})
	assert.True(t, IsErrorType(err, BackupErrorTypePartial))
	assert.Equal(t, BackupStatusFailed, manifest.Status)
}

func TestCreateBackupConfigurationFailsBeforeIO(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	_, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{Kind: "WEEKLY"})
	assert.True(t, IsErrorType(err, BackupErrorTypeConfiguration))
	assert.True(t, IsFatal(err))

	_, err = rig.orchestrator.CreateBackup(ctx, BackupConfig{Components: []string{"unknown"}})
	assert.True(t, IsErrorType(err, BackupErrorTypeConfiguration))

	_, err = rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Kind:           BackupKindIncremental,
		ParentBackupID: "backup-missing",
	})
	assert.True(t, IsErrorType(err, BackupErrorTypeConfiguration))

	// Nothing was written for any of the rejected configurations.
	entries, err := os.ReadDir(rig.store.BasePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateBackupIncrementalSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	full, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NoError(t, err)

	// Nothing changed since the parent, so both components are skipped.
	unchanged, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Kind:           BackupKindIncremental,
		ParentBackupID: full.BackupID,
	})
	require.NoError(t, err)
	assert.Equal(t, BackupStatusCompleted, unchanged.Status)
	for _, name := range []string{VectorComponentName, GraphComponentName} {
		meta := unchanged.Components[name]
		require.NotNil(t, meta)
		assert.Equal(t, ComponentStatusSkipped, meta.Status)
		assert.Equal(t, full.Components[name].Checksum, meta.Checksum)
	}

	// Mutate one backend; only that component gets re-exported.
	require.NoError(t, rig.vectorStore.UpsertPoints(ctx, "documents", []store.Point{
		{ID: "d", Vector: []float32{0, 0, 0, 1}},
	}))

	partial, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Kind:           BackupKindIncremental,
		ParentBackupID: full.BackupID,
	})
	require.NoError(t, err)
	assert.Equal(t, ComponentStatusCompleted, partial.Components[VectorComponentName].Status)
	assert.Equal(t, ComponentStatusSkipped, partial.Components[GraphComponentName].Status)
	assert.NotEqual(t, full.Components[VectorComponentName].Checksum,
		partial.Components[VectorComponentName].Checksum)
}

func TestVerifyBackup(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NoError(t, err)

	result, err := rig.orchestrator.VerifyBackup(ctx, manifest.BackupID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.ChecksumValid)
	assert.Empty(t, result.Errors)
}

func TestVerifyBackupDetectsTampering(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NoError(t, err)

	pointsPath := filepath.Join(rig.store.BackupDir(manifest.BackupID),
		VectorComponentName, "documents", "points.jsonl")
	require.NoError(t, os.WriteFile(pointsPath, []byte("tampered\n"), 0644))

	result, err := rig.orchestrator.VerifyBackup(ctx, manifest.BackupID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.ChecksumValid)
	assert.NotEmpty(t, result.Errors)
}

func TestListBackupsFilters(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	full, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{
		Tags: map[string]string{"env": "prod"},
	})
	require.NoError(t, err)

	snapshot, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{Kind: BackupKindSnapshot})
	require.NoError(t, err)

	all, err := rig.orchestrator.ListBackups(BackupFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	snapshots, err := rig.orchestrator.ListBackups(BackupFilter{Kind: BackupKindSnapshot})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, snapshot.BackupID, snapshots[0].BackupID)

	tagged, err := rig.orchestrator.ListBackups(BackupFilter{Tags: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, full.BackupID, tagged[0].BackupID)

	completed := BackupStatusCompleted
	byStatus, err := rig.orchestrator.ListBackups(BackupFilter{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NoError(t, err)

	require.NoError(t, rig.orchestrator.DeleteBackup(ctx, manifest.BackupID))

	_, err = rig.store.LoadManifest(manifest.BackupID)
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))
}

func TestCreateBackupReplicatesOffsite(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	blobClient, err := NewLocalBlobClient(&LocalConfig{BasePath: t.TempDir(), Permissions: 0755})
	require.NoError(t, err)
	replicator := NewOffsiteReplicator(blobClient, CompressionTypeGzip, 0, nil, nil)
	rig.orchestrator.SetOffsiteProvider(replicator)

	manifest, err := rig.orchestrator.CreateBackup(ctx, BackupConfig{})
	require.NoError(t, err)

	ids, err := replicator.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, manifest.BackupID)

	// The re-saved manifest records what the replica looks like offsite.
	reloaded, err := rig.store.LoadManifest(manifest.BackupID)
	require.NoError(t, err)
	assert.Greater(t, reloaded.CompressedSize, int64(0))
	assert.Equal(t, CompressionTypeGzip, reloaded.CompressionType)
	assert.False(t, reloaded.EncryptionEnabled)

	require.NoError(t, rig.orchestrator.DeleteBackup(ctx, manifest.BackupID))
	ids, err = replicator.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, manifest.BackupID)
}
