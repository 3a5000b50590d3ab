package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/benmeehan/findmy-agent/pkg/file"
	"github.com/rs/zerolog"
)

// DefaultPath is where the Find My app keeps its item cache on macOS.
const DefaultPath = "~/Library/Caches/com.apple.findmy.fmipcore/Items.data"

// UnknownDeviceID is used for cache items that carry no identifier.
const UnknownDeviceID = "unknown"

// Source supplies the raw records of one poll cycle.
type Source interface {
	ModTime() (time.Time, error)
	Read() ([]models.LocationRecord, error)
	Path() string
}

// Reader decodes the location cache file.
type Reader struct {
	path       string
	fileClient file.FileOperations
	logger     zerolog.Logger
}

type cacheItem struct {
	ID         *string        `json:"id"`
	Identifier *string        `json:"identifier"`
	Location   *cacheLocation `json:"location"`
}

type cacheLocation struct {
	PositionType string          `json:"positionType"`
	IsOld        bool            `json:"isOld"`
	TimeStamp    json.RawMessage `json:"timeStamp"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
}

type cacheEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// NewReader creates a Reader for the cache at path. A leading "~" is
// expanded to the current user's home directory.
func NewReader(path string, fileClient file.FileOperations, logger zerolog.Logger) *Reader {
	return &Reader{
		path:       ExpandHome(path),
		fileClient: fileClient,
		logger:     logger,
	}
}

// Path returns the resolved cache path.
func (r *Reader) Path() string {
	return r.path
}

// ModTime returns the cache file's modification time.
func (r *Reader) ModTime() (time.Time, error) {
	return r.fileClient.ModTime(r.path)
}

// Read loads and decodes every item in the cache. Items that cannot be
// decoded are logged and skipped; an unreadable or unparseable file is an error.
func (r *Reader) Read() ([]models.LocationRecord, error) {
	data, err := r.fileClient.ReadFileRaw(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read location cache: %w", err)
	}

	items, err := splitItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse location cache: %w", err)
	}

	records := make([]models.LocationRecord, 0, len(items))
	for i, raw := range items {
		var item cacheItem
		if err := json.Unmarshal(raw, &item); err != nil {
			r.logger.Warn().Err(err).Int("index", i).Msg("Skipping undecodable cache item")
			continue
		}
		records = append(records, r.toRecord(item))
	}

	return records, nil
}

// splitItems accepts either a bare JSON array or an object with an "items" array.
func splitItems(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty cache file")
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

func (r *Reader) toRecord(item cacheItem) models.LocationRecord {
	record := models.LocationRecord{DeviceID: deviceID(item)}

	loc := item.Location
	if loc == nil {
		return record
	}

	record.PositionType = loc.PositionType
	record.IsOld = loc.IsOld
	record.Latitude = loc.Latitude
	record.Longitude = loc.Longitude

	if ts, ok := parseTimestamp(loc.TimeStamp); ok {
		record.Timestamp = &ts
	} else if len(loc.TimeStamp) > 0 && string(loc.TimeStamp) != "null" {
		r.logger.Warn().
			Str("device_id", record.DeviceID).
			RawJSON("time_stamp", loc.TimeStamp).
			Msg("Unrecognised cache timestamp")
	}

	return record
}

func deviceID(item cacheItem) string {
	if item.ID != nil && *item.ID != "" {
		return *item.ID
	}
	if item.Identifier != nil && *item.Identifier != "" {
		return *item.Identifier
	}
	return UnknownDeviceID
}

// parseTimestamp accepts epoch milliseconds or an ISO-8601 string.
func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms < 0 || ms >= math.MaxInt64 {
			return 0, false
		}
		return int64(ms), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	return ParseISOTimestamp(s)
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseISOTimestamp parses an ISO-8601 string into epoch milliseconds.
// Strings without a zone offset are read as UTC.
func ParseISOTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
