package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManifestStore(t *testing.T) *LocalManifestStore {
	t.Helper()
	store, err := NewLocalManifestStore(&LocalConfig{
		BasePath:    t.TempDir(),
		Permissions: 0755,
	})
	require.NoError(t, err)
	return store
}

func TestManifestStoreSaveAndLoad(t *testing.T) {
	store := newTestManifestStore(t)

	manifest := validManifest()
	require.NoError(t, store.SaveManifest(manifest))

	loaded, err := store.LoadManifest(manifest.BackupID)
	require.NoError(t, err)
	assert.Equal(t, manifest.BackupID, loaded.BackupID)
	assert.Equal(t, manifest.Status, loaded.Status)
}

func TestManifestStoreRejectsInvalidManifest(t *testing.T) {
	store := newTestManifestStore(t)

	assert.Error(t, store.SaveManifest(nil))

	broken := validManifest()
	broken.BackupID = ""
	assert.Error(t, store.SaveManifest(broken))
}

func TestManifestStoreLoadMissing(t *testing.T) {
	store := newTestManifestStore(t)

	_, err := store.LoadManifest("backup-nope")
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))

	_, err = store.LoadManifest("")
	assert.Error(t, err)
}

func TestManifestStoreLoadCorrupted(t *testing.T) {
	store := newTestManifestStore(t)

	manifest := validManifest()
	require.NoError(t, store.SaveManifest(manifest))

	path := filepath.Join(store.BackupDir(manifest.BackupID), manifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := store.LoadManifest(manifest.BackupID)
	assert.True(t, IsErrorType(err, BackupErrorTypeCorruption))
}

func TestManifestStoreListNewestFirst(t *testing.T) {
	store := newTestManifestStore(t)

	older := validManifest()
	older.BackupID = "backup-older"
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveManifest(older))

	newer := validManifest()
	newer.BackupID = "backup-newer"
	require.NoError(t, store.SaveManifest(newer))

	// A stray directory without a manifest must not break listing.
	require.NoError(t, os.MkdirAll(filepath.Join(store.BasePath(), "not-a-backup"), 0755))

	manifests, err := store.ListManifests()
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, "backup-newer", manifests[0].BackupID)
	assert.Equal(t, "backup-older", manifests[1].BackupID)
}

func TestManifestStoreDelete(t *testing.T) {
	store := newTestManifestStore(t)

	manifest := validManifest()
	require.NoError(t, store.SaveManifest(manifest))
	require.NoError(t, store.DeleteBackup(manifest.BackupID))

	_, err := store.LoadManifest(manifest.BackupID)
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))

	err = store.DeleteBackup(manifest.BackupID)
	assert.True(t, IsErrorType(err, BackupErrorTypeNotFound))
}

func TestBackupDirStaysUnderBasePath(t *testing.T) {
	store := newTestManifestStore(t)

	dir := store.BackupDir("../../etc/passwd")
	assert.True(t, strings.HasPrefix(dir, store.BasePath()))
}

func TestManifestStoreHealthCheck(t *testing.T) {
	store := newTestManifestStore(t)
	assert.NoError(t, store.HealthCheck())
}
