package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/findmy-agent/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_IsFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	fs := file.NewFileService()

	exists, err := fs.IsFileExists(path)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = fs.IsFileExists(filepath.Join(dir, "missing.txt"))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestFileService_ModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.data")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	mtime, err := file.NewFileService().ModTime(path)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(mtime))

	_, err = file.NewFileService().ModTime(path + ".missing")
	assert.True(t, os.IsNotExist(err))
}

func TestFileService_ReadYamlAndRaw(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: dog\n"), 0600))

	var v struct {
		Name string `yaml:"name"`
	}
	fs := file.NewFileService()

	require.NoError(t, fs.ReadYamlFile(yamlPath, &v))
	assert.Equal(t, "dog", v.Name)

	raw, err := fs.ReadFileRaw(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "name: dog\n", string(raw))
}
