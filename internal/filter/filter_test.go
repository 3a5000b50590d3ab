package filter_test

import (
	"testing"

	"github.com/benmeehan/findmy-agent/internal/filter"
	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(deviceID string, lat, lon float64, ts int64) models.LocationRecord {
	return models.LocationRecord{
		DeviceID:  deviceID,
		Latitude:  &lat,
		Longitude: &lon,
		Timestamp: &ts,
	}
}

func TestLocationFilter_Apply_OlderRecordRejected(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	result := f.Apply([]models.LocationRecord{
		record("A", 10, 20, 1000),
		record("A", 10, 20, 500),
	}, filter.NewDeviceState())

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "A", result.Accepted[0].DeviceID)
	assert.Equal(t, int64(1000), result.Accepted[0].TimestampMs)
	assert.Equal(t, int64(1000), result.State.Last("A"))
	assert.Equal(t, 1, result.Rejected[filter.ReasonNotNew])
}

func TestLocationFilter_Apply_EqualTimestampRejected(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())
	state := filter.DeviceState{"A": 1000}

	result := f.Apply([]models.LocationRecord{record("A", 1, 2, 1000)}, state)

	assert.Empty(t, result.Accepted)
	assert.Equal(t, int64(1000), result.State.Last("A"))
}

func TestLocationFilter_Apply_NewerRecordAccepted(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())
	state := filter.DeviceState{"A": 1000}

	result := f.Apply([]models.LocationRecord{record("A", 1, 2, 1001)}, state)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, int64(1001), result.State.Last("A"))
}

func TestLocationFilter_Apply_SafeLocationAlwaysExcluded(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	safe := record("A", 10, 20, 9_999_999_999_999)
	safe.PositionType = models.PositionTypeSafeLocation

	result := f.Apply([]models.LocationRecord{safe}, filter.NewDeviceState())

	assert.Empty(t, result.Accepted)
	assert.Equal(t, 1, result.Rejected[filter.ReasonSafeLocation])
	assert.Zero(t, result.State.Last("A"))
}

func TestLocationFilter_Apply_StaleExcluded(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	stale := record("A", 10, 20, 2000)
	stale.IsOld = true

	result := f.Apply([]models.LocationRecord{stale}, filter.NewDeviceState())

	assert.Empty(t, result.Accepted)
	assert.Equal(t, 1, result.Rejected[filter.ReasonStale])
}

func TestLocationFilter_Apply_SafeLocationCheckedBeforeStale(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	r := record("A", 10, 20, 2000)
	r.PositionType = models.PositionTypeSafeLocation
	r.IsOld = true

	result := f.Apply([]models.LocationRecord{r}, filter.NewDeviceState())

	assert.Equal(t, 1, result.Rejected[filter.ReasonSafeLocation])
	assert.Zero(t, result.Rejected[filter.ReasonStale])
}

func TestLocationFilter_Apply_MalformedSkipped(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	missingTimestamp := record("A", 10, 20, 1)
	missingTimestamp.Timestamp = nil
	missingLatitude := record("B", 10, 20, 1)
	missingLatitude.Latitude = nil
	missingLongitude := record("C", 10, 20, 1)
	missingLongitude.Longitude = nil

	result := f.Apply([]models.LocationRecord{
		missingTimestamp,
		missingLatitude,
		missingLongitude,
		record("D", 91, 20, 1),
		record("E", 10, -181, 1),
		record("", 10, 20, 1),
		record("F", 10, 20, 1),
	}, filter.NewDeviceState())

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "F", result.Accepted[0].DeviceID)
	assert.Equal(t, 6, result.Rejected[filter.ReasonMalformed])
}

func TestLocationFilter_Apply_PreservesOrderAcrossDevices(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	result := f.Apply([]models.LocationRecord{
		record("B", 1, 1, 300),
		record("A", 2, 2, 100),
		record("B", 3, 3, 400),
	}, filter.NewDeviceState())

	require.Len(t, result.Accepted, 3)
	assert.Equal(t, "B", result.Accepted[0].DeviceID)
	assert.Equal(t, "A", result.Accepted[1].DeviceID)
	assert.Equal(t, "B", result.Accepted[2].DeviceID)
	assert.Equal(t, int64(400), result.State.Last("B"))
}

func TestLocationFilter_Apply_Idempotent(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())
	records := []models.LocationRecord{
		record("A", 10, 20, 1000),
		record("B", 30, 40, 2000),
	}

	first := f.Apply(records, filter.NewDeviceState())
	require.Len(t, first.Accepted, 2)

	second := f.Apply(records, first.State)
	assert.Empty(t, second.Accepted)
	assert.Equal(t, first.State, second.State)
}

func TestLocationFilter_Apply_DoesNotMutateInputState(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())
	state := filter.DeviceState{"A": 100}

	result := f.Apply([]models.LocationRecord{record("A", 1, 1, 200), record("B", 1, 1, 50)}, state)

	assert.Equal(t, filter.DeviceState{"A": 100}, state)
	assert.Equal(t, filter.DeviceState{"A": 200, "B": 50}, result.State)
}

func TestLocationFilter_Apply_NilState(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	result := f.Apply([]models.LocationRecord{record("A", 1, 1, 10)}, nil)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, int64(10), result.State.Last("A"))
}

func TestLocationFilter_Apply_FormatsISOTimestamp(t *testing.T) {
	f := filter.NewLocationFilter(zerolog.Nop())

	result := f.Apply([]models.LocationRecord{record("A", 1, 1, 1700000000123)}, nil)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "2023-11-14T22:13:20.123Z", result.Accepted[0].Timestamp)
}

func TestDeviceState_Advance(t *testing.T) {
	state := filter.NewDeviceState()

	assert.True(t, state.Advance("A", 5))
	assert.False(t, state.Advance("A", 5))
	assert.False(t, state.Advance("A", 4))
	assert.True(t, state.Advance("A", 6))
	assert.Equal(t, int64(6), state.Last("A"))
	assert.Zero(t, state.Last("unknown"))
}
