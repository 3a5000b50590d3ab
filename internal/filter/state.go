package filter

// DeviceState maps a device identifier to the timestamp, in epoch
// milliseconds, of its last accepted reading. Unseen devices read as 0.
type DeviceState map[string]int64

// NewDeviceState returns an empty DeviceState.
func NewDeviceState() DeviceState {
	return make(DeviceState)
}

// Last returns the last accepted timestamp for deviceID.
func (s DeviceState) Last(deviceID string) int64 {
	return s[deviceID]
}

// Advance records ts for deviceID if it is strictly newer than the stored
// value and reports whether it did.
func (s DeviceState) Advance(deviceID string, ts int64) bool {
	if ts <= s[deviceID] {
		return false
	}
	s[deviceID] = ts
	return true
}

// Clone returns an independent copy of s. A nil state clones to an empty one.
func (s DeviceState) Clone() DeviceState {
	out := make(DeviceState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
