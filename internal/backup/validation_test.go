package backup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags(nil))
	assert.NoError(t, ValidateTags(map[string]string{"env": "prod", "team-name": "infra_1"}))

	assert.Error(t, ValidateTags(map[string]string{"": "v"}))
	assert.Error(t, ValidateTags(map[string]string{"has space": "v"}))
	assert.Error(t, ValidateTags(map[string]string{strings.Repeat("k", 129): "v"}))
	assert.Error(t, ValidateTags(map[string]string{"k": strings.Repeat("v", 257)}))

	many := make(map[string]string, 51)
	for i := 0; i < 51; i++ {
		many["key"+strings.Repeat("a", i+1)] = "v"
	}
	assert.Error(t, ValidateTags(many))
}

func TestIsValidBackupID(t *testing.T) {
	assert.True(t, IsValidBackupID("backup-20260825-deadbeef"))
	assert.True(t, IsValidBackupID("drill_1"))

	assert.False(t, IsValidBackupID(""))
	assert.False(t, IsValidBackupID("../escape"))
	assert.False(t, IsValidBackupID("has space"))
	assert.False(t, IsValidBackupID(strings.Repeat("a", 65)))
}

func TestSanitizeDescription(t *testing.T) {
	assert.Equal(t, "nightly backup", SanitizeDescription("  nightly   backup\n"))
	assert.Equal(t, "", SanitizeDescription("   "))

	long := SanitizeDescription(strings.Repeat("x", 600))
	assert.Len(t, long, 500)
	assert.True(t, strings.HasSuffix(long, "..."))
}
