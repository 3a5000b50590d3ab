package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/findmy-agent/internal/cache"
	"github.com/benmeehan/findmy-agent/internal/mocks"
	"github.com/benmeehan/findmy-agent/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCache = `[
  {"id": "cat-tag", "location": {"positionType": "crowdSourced", "isOld": false, "timeStamp": 1700000000000, "latitude": 37.77, "longitude": -122.41}},
  {"identifier": "dog-tag", "location": {"positionType": "safeLocation", "timeStamp": 1700000001000, "latitude": 1, "longitude": 2}},
  {"location": {"isOld": true, "timeStamp": "2024-01-02T03:04:05Z", "latitude": 3, "longitude": 4}},
  {"id": "bad", "location": {"latitude": "north"}},
  {"id": "no-location"}
]`

func TestReader_Read_Array(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").Return([]byte(sampleCache), nil)

	reader := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop())
	records, err := reader.Read()

	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "cat-tag", records[0].DeviceID)
	require.NotNil(t, records[0].Timestamp)
	assert.Equal(t, int64(1700000000000), *records[0].Timestamp)
	assert.Equal(t, 37.77, *records[0].Latitude)

	assert.Equal(t, "dog-tag", records[1].DeviceID)
	assert.Equal(t, "safeLocation", records[1].PositionType)

	assert.Equal(t, cache.UnknownDeviceID, records[2].DeviceID)
	assert.True(t, records[2].IsOld)
	require.NotNil(t, records[2].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(), *records[2].Timestamp)

	assert.Equal(t, "no-location", records[3].DeviceID)
	assert.Nil(t, records[3].Timestamp)
	assert.Nil(t, records[3].Latitude)

	mockFile.AssertExpectations(t)
}

func TestReader_Read_ItemsEnvelope(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").
		Return([]byte(`{"items": [{"id": "a", "location": {"timeStamp": 5, "latitude": 1, "longitude": 1}}]}`), nil)

	records, err := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop()).Read()

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].DeviceID)
}

func TestReader_Read_MissingFile(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").Return(nil, os.ErrNotExist)

	records, err := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop()).Read()

	assert.Nil(t, records)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReader_Read_Unparseable(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").Return([]byte(`{not json`), nil)

	records, err := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop()).Read()

	assert.Nil(t, records)
	assert.Error(t, err)
}

func TestReader_Read_Empty(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").Return([]byte("  \n"), nil)

	_, err := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop()).Read()

	assert.Error(t, err)
}

func TestReader_ModTime_RealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Items.data")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))

	reader := cache.NewReader(path, file.NewFileService(), zerolog.Nop())

	mtime, err := reader.ModTime()
	require.NoError(t, err)
	assert.False(t, mtime.IsZero())

	records, err := reader.Read()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseISOTimestamp(t *testing.T) {
	ms, ok := cache.ParseISOTimestamp("2024-01-02T03:04:05.250")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 250_000_000, time.UTC).UnixMilli(), ms)

	ms, ok = cache.ParseISOTimestamp("2024-01-02T03:04:05+02:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC).UnixMilli(), ms)

	_, ok = cache.ParseISOTimestamp("yesterday")
	assert.False(t, ok)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Library/Caches"), cache.ExpandHome("~/Library/Caches"))
	assert.Equal(t, "/abs/path", cache.ExpandHome("/abs/path"))
}

func TestReader_Read_OutOfRangeTimestamp(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/cache/Items.data").Return([]byte(`[
  {"id": "huge", "location": {"timeStamp": 1e300, "latitude": 1, "longitude": 1}},
  {"id": "negative", "location": {"timeStamp": -5, "latitude": 1, "longitude": 1}},
  {"id": "ok", "location": {"timeStamp": 42, "latitude": 1, "longitude": 1}}
]`), nil)

	records, err := cache.NewReader("/cache/Items.data", mockFile, zerolog.Nop()).Read()

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Nil(t, records[0].Timestamp)
	assert.Nil(t, records[1].Timestamp)
	require.NotNil(t, records[2].Timestamp)
	assert.Equal(t, int64(42), *records[2].Timestamp)
}
