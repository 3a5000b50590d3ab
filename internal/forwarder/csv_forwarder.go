package forwarder

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
)

var historyHeader = []string{models.ColumnDeviceID, models.ColumnLatitude, models.ColumnLongitude, models.ColumnTimestamp}

// CSVForwarder appends every reading to a local CSV history that the import
// command can replay later.
type CSVForwarder struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewCSVForwarder creates a CSVForwarder writing to path.
func NewCSVForwarder(path string, logger zerolog.Logger) *CSVForwarder {
	return &CSVForwarder{path: path, logger: logger}
}

// Name implements Forwarder.
func (c *CSVForwarder) Name() string {
	return "csv"
}

// Forward implements Forwarder. The header is written when the file is new.
func (c *CSVForwarder) Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome {
	if len(updates) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return fill(len(updates), models.OutcomeFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.append(updates); err != nil {
		c.logger.Error().Err(err).Str("path", c.path).Int("count", len(updates)).Msg("Failed to append location history")
		return fill(len(updates), models.OutcomeFailed)
	}
	c.logger.Debug().Str("path", c.path).Int("count", len(updates)).Msg("Appended location history")
	return fill(len(updates), models.OutcomeStoredNew)
}

func (c *CSVForwarder) append(updates []models.LocationUpdate) (err error) {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(historyHeader); err != nil {
			return err
		}
	}
	for _, u := range updates {
		row := []string{
			u.DeviceID,
			strconv.FormatFloat(u.Latitude, 'f', -1, 64),
			strconv.FormatFloat(u.Longitude, 'f', -1, 64),
			u.Timestamp,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
