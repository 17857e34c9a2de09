package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *bytes.Buffer) {
	service := NewService()
	buf := &bytes.Buffer{}
	service.SetOutput(buf)
	return service, buf
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			format, err := ParseOutputFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, format)
			}
		})
	}
}

func TestStatusLines(t *testing.T) {
	service, buf := newTestService()

	service.Success("backup completed")
	service.Warning("component skipped")
	service.Error("restore aborted")
	service.Info("3 backups found")

	output := buf.String()
	assert.Contains(t, output, "backup completed")
	assert.Contains(t, output, "component skipped")
	assert.Contains(t, output, "restore aborted")
	assert.Contains(t, output, "3 backups found")
}

func TestPrintHeader(t *testing.T) {
	service, buf := newTestService()

	service.PrintHeader("Backups")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Backups")
	assert.Contains(t, lines[1], "=======")
}

func TestPrintStructuredJSON(t *testing.T) {
	service, buf := newTestService()

	err := service.PrintStructured(FormatJSON, map[string]string{"backup_id": "backup-1"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "backup-1", decoded["backup_id"])
}

func TestPrintStructuredRejectsTable(t *testing.T) {
	service, _ := newTestService()
	assert.Error(t, service.PrintStructured(FormatTable, nil))
}

func TestPrintTable(t *testing.T) {
	service, buf := newTestService()

	service.PrintTable(
		[]string{"BACKUP ID", "STATUS"},
		[][]string{
			{"backup-20260825-deadbeef", "COMPLETED"},
			{"backup-20260824-cafebabe", "FAILED"},
		},
	)

	output := buf.String()
	assert.Contains(t, output, "BACKUP ID")
	assert.Contains(t, output, "backup-20260825-deadbeef")
	assert.Contains(t, output, "FAILED")
	assert.Contains(t, output, "┌")
	assert.Contains(t, output, "└")
}

func TestConfirmationDialog(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"yes", "y\n", true},
		{"yes word", "yes\n", true},
		{"no", "n\n", false},
		{"default is no", "\n", false},
		{"empty input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestService()
			dialog := service.NewConfirmationDialog("this clears live data").
				AddDetail("backup: backup-1").
				SetInput(strings.NewReader(tt.answer))

			confirmed, err := dialog.Show()
			require.NoError(t, err)
			assert.Equal(t, tt.want, confirmed)
		})
	}
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short", 10))
	assert.Equal(t, "lon...", truncateCell("longer-than-width", 6))
	assert.Equal(t, "lo", truncateCell("long", 2))
}
