package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "cv.json")
	require.NoError(t, os.WriteFile(small, []byte(`{"skills":[]}`), 0600))

	assert.NoError(t, ValidateInputFile(small, 0))
	assert.NoError(t, ValidateInputFile(small, 1024))
	assert.ErrorContains(t, ValidateInputFile(small, 4), "larger than the 4 B limit")
	assert.ErrorContains(t, ValidateInputFile("", 0), "cannot be empty")
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "missing.json"), 0), "does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir, 0), "is a directory")
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, ValidateOutputFile(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, ValidateOutputFile(""))
}

func TestIsRecordFile(t *testing.T) {
	assert.True(t, IsRecordFile("cv.json"))
	assert.True(t, IsRecordFile("job.YAML"))
	assert.True(t, IsRecordFile("job.yml"))
	assert.False(t, IsRecordFile("cv.txt"))
	assert.False(t, IsRecordFile("cv"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "1.5 MB", FormatFileSize(1536*1024))
}
