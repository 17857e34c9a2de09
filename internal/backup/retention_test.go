package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memstore-backup/internal/checksum"
)

// retentionRig is an orchestrator over a bare manifest store; retention only
// needs manifests, not real component data.
func newRetentionRig(t *testing.T) (*Orchestrator, *LocalManifestStore) {
	t.Helper()
	manifestStore, err := NewLocalManifestStore(&LocalConfig{BasePath: t.TempDir(), Permissions: 0755})
	require.NoError(t, err)
	return NewOrchestrator(NewHandlerRegistry(), manifestStore, checksum.NewEngine(), nil), manifestStore
}

func saveManifestAged(t *testing.T, store *LocalManifestStore, id string, age time.Duration, mutate func(*BackupManifest)) {
	t.Helper()
	manifest := validManifest()
	manifest.BackupID = id
	manifest.CreatedAt = time.Now().UTC().Add(-age)
	manifest.Size = 1024
	if mutate != nil {
		mutate(manifest)
	}
	require.NoError(t, store.SaveManifest(manifest))
}

func TestRetentionMaxBackups(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	saveManifestAged(t, store, "backup-old", 72*time.Hour, nil)
	saveManifestAged(t, store, "backup-mid", 48*time.Hour, nil)
	saveManifestAged(t, store, "backup-new", time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxBackups: 1}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"backup-old", "backup-mid"}, result.Deleted)
	assert.Equal(t, []string{"backup-new"}, result.Kept)
	assert.Equal(t, int64(2048), result.SpaceFreed)

	_, err = store.LoadManifest("backup-old")
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))
	_, err = store.LoadManifest("backup-new")
	assert.NoError(t, err)
}

func TestRetentionMaxAge(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	saveManifestAged(t, store, "backup-stale", 96*time.Hour, nil)
	saveManifestAged(t, store, "backup-fresh", time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxAge: 48 * time.Hour}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"backup-stale"}, result.Deleted)
	assert.Equal(t, []string{"backup-fresh"}, result.Kept)
}

func TestRetentionAlwaysKeepsNewest(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	// Both far past every configured limit.
	saveManifestAged(t, store, "backup-ancient", 400*24*time.Hour, nil)
	saveManifestAged(t, store, "backup-older", 500*24*time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxAge: time.Hour}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"backup-older"}, result.Deleted)
	assert.Equal(t, []string{"backup-ancient"}, result.Kept)
}

func TestRetentionDryRunDeletesNothing(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	saveManifestAged(t, store, "backup-old", 72*time.Hour, nil)
	saveManifestAged(t, store, "backup-new", time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxBackups: 1}, nil)
	result, err := manager.Apply(ctx, true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, []string{"backup-old"}, result.Deleted)

	// The reported deletion never happened.
	_, err = store.LoadManifest("backup-old")
	assert.NoError(t, err)
}

func TestRetentionProtectedBackups(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	saveManifestAged(t, store, "backup-protected", 90*24*time.Hour, func(m *BackupManifest) {
		m.Tags = map[string]string{"protected": "true"}
	})
	saveManifestAged(t, store, "backup-pre-migration", 2*24*time.Hour, func(m *BackupManifest) {
		m.Tags = map[string]string{"type": "pre-migration"}
	})
	saveManifestAged(t, store, "backup-expendable", 60*24*time.Hour, nil)
	saveManifestAged(t, store, "backup-new", time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxAge: 24 * time.Hour}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"backup-expendable"}, result.Deleted)
	assert.ElementsMatch(t,
		[]string{"backup-new", "backup-protected", "backup-pre-migration"}, result.Kept)
}

func TestRetentionKeepsRecentFailedBackups(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	failWith := func(m *BackupManifest) {
		m.Status = BackupStatusFailed
		m.Components[VectorComponentName].Status = ComponentStatusFailed
		m.Components[VectorComponentName].Error = "backend down"
	}

	saveManifestAged(t, store, "backup-failed-recent", 2*time.Hour, failWith)
	saveManifestAged(t, store, "backup-failed-old", 48*time.Hour, failWith)
	saveManifestAged(t, store, "backup-new", time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxBackups: 1}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	// A fresh failure stays around for diagnosis, a day-old one does not.
	assert.Equal(t, []string{"backup-failed-old"}, result.Deleted)
	assert.ElementsMatch(t, []string{"backup-new", "backup-failed-recent"}, result.Kept)
}

func TestRetentionKeepDaily(t *testing.T) {
	ctx := context.Background()
	orchestrator, store := newRetentionRig(t)

	// Two backups in today's bucket, one in yesterday's.
	saveManifestAged(t, store, "backup-today-late", 1*time.Hour, nil)
	saveManifestAged(t, store, "backup-today-early", 5*time.Hour, nil)
	saveManifestAged(t, store, "backup-yesterday", 30*time.Hour, nil)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{KeepDaily: 2}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	// The newest backup of each of the two most recent days survives.
	assert.Equal(t, []string{"backup-today-early"}, result.Deleted)
	assert.ElementsMatch(t, []string{"backup-today-late", "backup-yesterday"}, result.Kept)
}

func TestRetentionEmptyStore(t *testing.T) {
	ctx := context.Background()
	orchestrator, _ := newRetentionRig(t)

	manager := NewRetentionManager(orchestrator, &RetentionConfig{MaxBackups: 5}, nil)
	result, err := manager.Apply(ctx, false)
	require.NoError(t, err)

	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Kept)
}
