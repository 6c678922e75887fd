package entity

// Document field names of an aircraft state document
const (
	FieldICAO      = "icao"
	FieldCallsign  = "flight"
	FieldAltitude  = "altitude"
	FieldSpeed     = "speed"
	FieldHeading   = "heading"
	FieldLatitude  = "lat"
	FieldLongitude = "lon"
	FieldLocation  = "location"
	FieldTimestamp = "timestamp"
)

// Fields maps document field names to values. Values are int, int64,
// float64, string, GeoPoint, *int or *string (nil pointers for unknown
// seed values).
type Fields map[string]interface{}

// WriteOperation is the upsert derived from one TelemetryRecord
type WriteOperation struct {
	ICAO string

	// UpdateFields holds only the fields the report actually carried
	UpdateFields Fields

	// Seed is the full starting document, used only when none exists yet
	Seed Fields
}

// ItemFailure describes one operation the store rejected
type ItemFailure struct {
	Index  int // position in the submitted batch
	ICAO   string
	Code   int
	Reason string
}

// BulkResult summarizes a bulk upsert that reached the store
type BulkResult struct {
	Submitted int
	Succeeded int
	Failures  []ItemFailure
}

// HasFailures reports whether any operation was rejected
func (r *BulkResult) HasFailures() bool {
	return r != nil && len(r.Failures) > 0
}
