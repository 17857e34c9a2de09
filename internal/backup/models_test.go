package backup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() *BackupManifest {
	return &BackupManifest{
		BackupID:  "backup-20260825-deadbeef",
		Kind:      BackupKindFull,
		CreatedAt: time.Now().UTC(),
		Status:    BackupStatusCompleted,
		Components: map[string]*ComponentMeta{
			VectorComponentName: {
				Name:        VectorComponentName,
				Status:      ComponentStatusCompleted,
				RecordCount: 3,
			},
		},
		StorageLocation: "/tmp/backups/backup-20260825-deadbeef",
	}
}

func TestBackupManifestValidate(t *testing.T) {
	assert.NoError(t, validManifest().Validate())

	tests := []struct {
		name   string
		mutate func(*BackupManifest)
	}{
		{"missing backup id", func(m *BackupManifest) { m.BackupID = "" }},
		{"invalid kind", func(m *BackupManifest) { m.Kind = "WEEKLY" }},
		{"incremental without parent", func(m *BackupManifest) { m.Kind = BackupKindIncremental }},
		{"invalid status", func(m *BackupManifest) { m.Status = "DONE" }},
		{"no components", func(m *BackupManifest) { m.Components = nil }},
		{"component name mismatch", func(m *BackupManifest) {
			m.Components["wrong"] = &ComponentMeta{Name: VectorComponentName, Status: ComponentStatusCompleted}
		}},
		{"failed component without error", func(m *BackupManifest) {
			m.Components[GraphComponentName] = &ComponentMeta{Name: GraphComponentName, Status: ComponentStatusFailed}
		}},
		{"negative size", func(m *BackupManifest) { m.Size = -1 }},
		{"missing storage location", func(m *BackupManifest) { m.StorageLocation = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := validManifest()
			tt.mutate(manifest)
			assert.Error(t, manifest.Validate())
		})
	}
}

func TestBackupManifestJSONRoundTrip(t *testing.T) {
	manifest := validManifest()
	manifest.Tags = map[string]string{"env": "staging"}
	manifest.TreeChecksum = "abcdef0123456789"

	data, err := manifest.ToJSON()
	require.NoError(t, err)

	var decoded BackupManifest
	require.NoError(t, decoded.FromJSON(data))
	assert.Equal(t, manifest.BackupID, decoded.BackupID)
	assert.Equal(t, manifest.TreeChecksum, decoded.TreeChecksum)
	assert.Equal(t, "staging", decoded.Tags["env"])
}

func TestBackupManifestFromJSONRejectsGarbage(t *testing.T) {
	var manifest BackupManifest
	assert.Error(t, manifest.FromJSON([]byte("{not json")))
	assert.Error(t, manifest.FromJSON([]byte(`{"backup_id": ""}`)))
}

func TestComponentPartitioning(t *testing.T) {
	manifest := validManifest()
	manifest.Components[GraphComponentName] = &ComponentMeta{
		Name:   GraphComponentName,
		Status: ComponentStatusFailed,
		Error:  "graph store unreachable",
	}

	assert.Equal(t, []string{GraphComponentName}, manifest.FailedComponents())
	assert.Equal(t, []string{VectorComponentName}, manifest.CompletedComponents())
}

func TestGenerateBackupID(t *testing.T) {
	id := GenerateBackupID()
	assert.True(t, strings.HasPrefix(id, "backup-"))
	assert.True(t, IsValidBackupID(id), "generated id %s should be valid", id)

	other := GenerateBackupID()
	assert.NotEqual(t, id, other)
}

func TestBackupConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  BackupConfig
		wantErr bool
	}{
		{"empty config", BackupConfig{}, false},
		{"full kind", BackupConfig{Kind: BackupKindFull}, false},
		{"invalid kind", BackupConfig{Kind: "WEEKLY"}, true},
		{"incremental without parent", BackupConfig{Kind: BackupKindIncremental}, true},
		{"incremental with parent", BackupConfig{Kind: BackupKindIncremental, ParentBackupID: "backup-1"}, false},
		{"overlong description", BackupConfig{Description: strings.Repeat("x", 501)}, true},
		{"invalid tag key", BackupConfig{Tags: map[string]string{"bad key!": "v"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
