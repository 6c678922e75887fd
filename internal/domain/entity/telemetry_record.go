// internal/domain/entity/telemetry_record.go
package entity

// TelemetryRecord is one parsed SBS position report
type TelemetryRecord struct {
	ICAO      string // 24-bit ICAO address, document key
	Callsign  Optional[string]
	Altitude  Optional[int]
	Speed     Optional[int]
	Heading   Optional[int]
	Latitude  Optional[float64]
	Longitude Optional[float64]

	// IngestTimestamp is milliseconds since epoch, stamped at parse time
	IngestTimestamp int64
}

// HasPosition reports whether the record carries a usable position.
// (0, 0) is the "no position" sentinel, so a genuine position at the
// null island is indistinguishable from a missing one.
func (r TelemetryRecord) HasPosition() bool {
	return r.Latitude.Value != 0 && r.Longitude.Value != 0
}

// Location returns the record's position, sentinel included
func (r TelemetryRecord) Location() GeoPoint {
	return GeoPoint{Lat: r.Latitude.Value, Lon: r.Longitude.Value}
}

// GeoPoint is a WGS84 position
type GeoPoint struct {
	Lat float64
	Lon float64
}
