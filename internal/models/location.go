package models

// PositionTypeSafeLocation marks a reading taken inside a designated safe zone.
const PositionTypeSafeLocation = "safeLocation"

// LocationRecord is a single device reading decoded from the location cache.
// Latitude, Longitude and Timestamp are nil when the cache entry omits them.
type LocationRecord struct {
	DeviceID     string
	Latitude     *float64
	Longitude    *float64
	Timestamp    *int64 // milliseconds since the epoch
	PositionType string
	IsOld        bool
}

// LocationUpdate is the payload the backend accepts for a new reading.
type LocationUpdate struct {
	DeviceID  string  `json:"deviceId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`

	// TimestampMs is kept so callers can commit device state after forwarding.
	TimestampMs int64 `json:"-"`
}

// UpdateResult is the backend response to a single location update.
type UpdateResult struct {
	Success bool   `json:"success"`
	IsNew   bool   `json:"isNew"`
	Message string `json:"message,omitempty"`
}

// BatchResult is the backend response to a batch location update.
type BatchResult struct {
	Success      bool `json:"success"`
	Processed    int  `json:"processed"`
	NewLocations int  `json:"newLocations"`
}

// HealthStatus is the backend response to a health probe.
type HealthStatus map[string]any

// Columns of the CSV location history written by the history forwarder and
// read back by the importer.
const (
	ColumnDeviceID  = "DeviceID"
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
	ColumnTimestamp = "Timestamp"
)
