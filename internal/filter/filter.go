package filter

import (
	"time"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
)

// TimestampLayout is the ISO-8601 layout used for forwarded readings.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Reason explains why a record was not emitted.
type Reason string

const (
	ReasonSafeLocation Reason = "safe_location"
	ReasonStale        Reason = "stale"
	ReasonMalformed    Reason = "malformed"
	ReasonNotNew       Reason = "not_new"
)

// Result holds the outcome of one filter pass.
type Result struct {
	// Accepted readings, in input order.
	Accepted []models.LocationUpdate
	// State is the device state after accepting every reading in Accepted.
	State DeviceState
	// Rejected counts dropped records per reason.
	Rejected map[Reason]int
}

// LocationFilter decides which cache entries carry new information.
type LocationFilter struct {
	logger zerolog.Logger
}

// NewLocationFilter creates a LocationFilter that logs decisions to logger.
func NewLocationFilter(logger zerolog.Logger) *LocationFilter {
	return &LocationFilter{logger: logger}
}

// Apply filters one poll cycle worth of records against state. The given
// state is left untouched; the advanced state is returned in Result.State.
func (f *LocationFilter) Apply(records []models.LocationRecord, state DeviceState) Result {
	result := Result{
		State:    state.Clone(),
		Rejected: make(map[Reason]int),
	}

	for _, record := range records {
		if reason, ok := classify(record); !ok {
			result.Rejected[reason]++
			f.logger.Debug().
				Str("device_id", record.DeviceID).
				Str("reason", string(reason)).
				Msg("Skipping cache entry")
			continue
		}

		ts := *record.Timestamp
		update := toUpdate(record)

		if !result.State.Advance(record.DeviceID, ts) {
			result.Rejected[ReasonNotNew]++
			f.logger.Debug().
				Str("device_id", update.DeviceID).
				Float64("latitude", update.Latitude).
				Float64("longitude", update.Longitude).
				Str("timestamp", update.Timestamp).
				Msg("[OLD] location unchanged")
			continue
		}

		result.Accepted = append(result.Accepted, update)
		f.logger.Info().
			Str("device_id", update.DeviceID).
			Float64("latitude", update.Latitude).
			Float64("longitude", update.Longitude).
			Str("timestamp", update.Timestamp).
			Msg("[NEW] location")
	}

	return result
}

// classify applies the rejection rules in order and stops at the first match.
func classify(record models.LocationRecord) (Reason, bool) {
	if record.PositionType == models.PositionTypeSafeLocation {
		return ReasonSafeLocation, false
	}
	if record.IsOld {
		return ReasonStale, false
	}
	if record.Timestamp == nil || record.Latitude == nil || record.Longitude == nil {
		return ReasonMalformed, false
	}
	if record.DeviceID == "" {
		return ReasonMalformed, false
	}
	if lat := *record.Latitude; lat < -90 || lat > 90 {
		return ReasonMalformed, false
	}
	if lon := *record.Longitude; lon < -180 || lon > 180 {
		return ReasonMalformed, false
	}
	return "", true
}

func toUpdate(record models.LocationRecord) models.LocationUpdate {
	ts := *record.Timestamp
	return models.LocationUpdate{
		DeviceID:    record.DeviceID,
		Latitude:    *record.Latitude,
		Longitude:   *record.Longitude,
		Timestamp:   FormatTimestamp(ts),
		TimestampMs: ts,
	}
}

// FormatTimestamp renders epoch milliseconds as an ISO-8601 UTC string.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimestampLayout)
}
