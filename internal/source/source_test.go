package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatemerge/config"
	"estatemerge/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource_Load(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
		wantErr  bool
	}{
		{"bare array", `[{"id": 1, "title": "a"}, {"id": 2, "title": "b"}]`, 2, false},
		{"wrapped properties", `{"collected_at": "2024-01-15", "properties": [{"id": 1}]}`, 1, false},
		{"wrapped items", `{"items": []}`, 0, false},
		{"no array", `{"count": 3}`, 0, true},
		{"malformed", `[{"id": 1,]`, 0, true},
		{"empty", ``, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "naver.json", tt.content)
			src := NewFileSource(models.PlatformNaver, path, false)

			records, err := src.Load(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSourceUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.expected)
		})
	}
}

func TestFileSource_KeepsLongIDs(t *testing.T) {
	path := writeFile(t, "naver.json", `[{"article_id": 2412345678901234567}]`)

	records, err := NewFileSource(models.PlatformNaver, path, false).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, json.Number("2412345678901234567"), records[0]["article_id"])
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(models.PlatformKB, filepath.Join(t.TempDir(), "missing.json"), false)
	_, err := src.Load(context.Background())

	var unavailableErr *UnavailableError
	require.ErrorAs(t, err, &unavailableErr)
	assert.Equal(t, models.PlatformKB, unavailableErr.Platform)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStaticSource(t *testing.T) {
	records := []models.RawRecord{{"id": "1"}}
	src := NewStaticSource(models.PlatformDabang, records, true)

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, got)
	assert.True(t, src.Synthetic())
	assert.Equal(t, "memory", src.Origin())
}

func TestCommandSource_Load(t *testing.T) {
	script := `echo '{"type":"items","data":[{"id":"1","title":"a"},{"id":"2","title":"b"}]}'
echo 'not json'
echo '{"type":"items","data":[{"id":"3","title":"c"}]}'
echo '{"type":"complete","data":{"status":"ok","total_items":3}}'
echo 'progress' >&2`

	src := NewCommandSource(models.PlatformZigbang, []string{"sh", "-c", script}, false, quietLogger())
	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2]["id"])
}

func TestCommandSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		command []string
	}{
		{"collector error message", []string{"sh", "-c", `echo '{"type":"error","data":{"message":"blocked"}}'`}},
		{"non-zero exit", []string{"sh", "-c", "exit 3"}},
		{"missing binary", []string{"definitely-not-a-collector"}},
		{"empty command", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewCommandSource(models.PlatformDabang, tt.command, false, quietLogger())
			_, err := src.Load(context.Background())
			assert.ErrorIs(t, err, ErrSourceUnavailable)
		})
	}
}

func TestFromManifest(t *testing.T) {
	m := &config.Manifest{
		Sources: []config.ManifestSource{
			{Platform: models.PlatformNaver, Path: "naver.json"},
			{Platform: models.PlatformDabang, Command: []string{"python3", "dabang.py"}, Synthetic: true},
		},
	}

	sources := FromManifest(m, quietLogger())
	require.Len(t, sources, 2)

	assert.IsType(t, &FileSource{}, sources[0])
	assert.Equal(t, "naver.json", sources[0].Origin())
	assert.IsType(t, &CommandSource{}, sources[1])
	assert.Equal(t, "python3 dabang.py", sources[1].Origin())
	assert.True(t, sources[1].Synthetic())
}
