package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/benmeehan/findmy-agent/pkg/file"
	"github.com/rs/zerolog"
)

// Required CSV history columns.
const (
	ColumnDeviceID  = models.ColumnDeviceID
	ColumnLatitude  = models.ColumnLatitude
	ColumnLongitude = models.ColumnLongitude
	ColumnTimestamp = models.ColumnTimestamp
)

// BatchSender posts a batch of readings to the backend.
type BatchSender interface {
	SendBatch(ctx context.Context, updates []models.LocationUpdate) (models.BatchResult, error)
}

// ImportSummary totals a finished import.
type ImportSummary struct {
	Rows          int // rows read from the file, including skipped ones
	Unique        int // rows left after parsing and de-duplication
	Batches       int
	FailedBatches int
	Processed     int
	NewLocations  int
}

// ImportService uploads a CSV location history to the backend.
type ImportService struct {
	batchSize  int
	sender     BatchSender
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewImportService creates an ImportService. A non-positive batchSize defaults to 100.
func NewImportService(batchSize int, sender BatchSender, fileClient file.FileOperations, logger zerolog.Logger) *ImportService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ImportService{
		batchSize:  batchSize,
		sender:     sender,
		fileClient: fileClient,
		logger:     logger,
	}
}

// Import reads the CSV at path, drops bad and duplicate rows and posts the
// rest in batches. A failed batch is logged and the import carries on.
func (s *ImportService) Import(ctx context.Context, path string) (ImportSummary, error) {
	var summary ImportSummary

	exists, err := s.fileClient.IsFileExists(path)
	if err != nil {
		return summary, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		return summary, fmt.Errorf("CSV not found: %s", path)
	}

	data, err := s.fileClient.ReadFileRaw(path)
	if err != nil {
		return summary, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s.logger.Info().Str("file", path).Msg("Reading CSV")
	rows, total, err := s.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return summary, err
	}
	summary.Rows = total
	s.logger.Info().Int("rows", len(rows)).Msg("Read rows")

	rows = DedupePreserveOrder(rows)
	summary.Unique = len(rows)
	s.logger.Info().Int("unique", len(rows)).Msg("After dedupe")

	for start := 0; start < len(rows); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		end := min(start+s.batchSize, len(rows))
		batchNo := start/s.batchSize + 1
		summary.Batches++

		result, err := s.sender.SendBatch(ctx, rows[start:end])
		if err != nil {
			summary.FailedBatches++
			s.logger.Error().Err(err).Int("batch", batchNo).Msg("Batch failed")
			continue
		}

		summary.Processed += result.Processed
		summary.NewLocations += result.NewLocations
		s.logger.Info().
			Int("batch", batchNo).
			Int("processed", result.Processed).
			Int("new", result.NewLocations).
			Msg("Batch imported")
	}

	s.logger.Info().
		Int("processed", summary.Processed).
		Int("new", summary.NewLocations).
		Msg("Import done")
	return summary, nil
}

// ReadCSV parses a history CSV. The header must contain the DeviceID,
// Latitude, Longitude and Timestamp columns; extra columns are ignored.
// Rows that do not parse are skipped. It returns the parsed rows and the
// number of data rows seen.
func (s *ImportService) ReadCSV(r io.Reader) ([]models.LocationUpdate, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("CSV is empty")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range []string{ColumnDeviceID, ColumnLatitude, ColumnLongitude, ColumnTimestamp} {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("missing required CSV columns: %s", strings.Join(missing, ", "))
	}

	var rows []models.LocationUpdate
	total := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		total++
		if err != nil {
			s.logger.Warn().Err(err).Int("row", total).Msg("Skipping bad row")
			continue
		}

		row, err := parseRow(record, index)
		if err != nil {
			s.logger.Warn().Err(err).Strs("row", record).Msg("Skipping bad row")
			continue
		}
		if row.DeviceID == "" || row.Timestamp == "" {
			s.logger.Warn().Strs("row", record).Msg("Skipping row without device id or timestamp")
			continue
		}
		rows = append(rows, row)
	}

	return rows, total, nil
}

func parseRow(record []string, index map[string]int) (models.LocationUpdate, error) {
	field := func(name string) (string, error) {
		i := index[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	var row models.LocationUpdate
	var err error
	if row.DeviceID, err = field(ColumnDeviceID); err != nil {
		return row, err
	}
	if row.Timestamp, err = field(ColumnTimestamp); err != nil {
		return row, err
	}

	lat, err := field(ColumnLatitude)
	if err != nil {
		return row, err
	}
	if row.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return row, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}

	lon, err := field(ColumnLongitude)
	if err != nil {
		return row, err
	}
	if row.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return row, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}

	return row, nil
}

// DedupePreserveOrder drops exact duplicate rows, keeping the first occurrence.
func DedupePreserveOrder(rows []models.LocationUpdate) []models.LocationUpdate {
	seen := make(map[models.LocationUpdate]struct{}, len(rows))
	out := make([]models.LocationUpdate, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
