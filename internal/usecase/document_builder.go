package usecase

import (
	"strings"

	"adsb-ingest-service/internal/domain/entity"
)

// BuildWriteOperations converts a batch into one upsert per record, in
// batch order. Records for the same aircraft are not merged; the store
// applies them in submission order.
func BuildWriteOperations(batch []entity.TelemetryRecord) []entity.WriteOperation {
	ops := make([]entity.WriteOperation, 0, len(batch))
	for _, rec := range batch {
		ops = append(ops, BuildWriteOperation(rec))
	}
	return ops
}

// BuildWriteOperation derives the sparse update and the full seed for one record
func BuildWriteOperation(rec entity.TelemetryRecord) entity.WriteOperation {
	return entity.WriteOperation{
		ICAO:         rec.ICAO,
		UpdateFields: updateFields(rec),
		Seed:         seedFields(rec),
	}
}

func updateFields(rec entity.TelemetryRecord) entity.Fields {
	update := entity.Fields{
		entity.FieldICAO:      rec.ICAO,
		entity.FieldTimestamp: rec.IngestTimestamp,
		// speed is always sent, zero included, as the last-seen signal
		entity.FieldSpeed: rec.Speed.Value,
	}

	if rec.HasPosition() {
		update[entity.FieldLatitude] = rec.Latitude.Value
		update[entity.FieldLongitude] = rec.Longitude.Value
		update[entity.FieldLocation] = rec.Location()
	}
	if rec.Heading.Value != 0 {
		update[entity.FieldHeading] = rec.Heading.Value
	}
	if rec.Altitude.Present {
		update[entity.FieldAltitude] = rec.Altitude.Value
	}
	if rec.Callsign.Present && strings.TrimSpace(rec.Callsign.Value) != "" {
		update[entity.FieldCallsign] = rec.Callsign.Value
	}

	return update
}

// seedFields is the starting document; sentinel zeros are kept as-is
func seedFields(rec entity.TelemetryRecord) entity.Fields {
	return entity.Fields{
		entity.FieldICAO:      rec.ICAO,
		entity.FieldLocation:  rec.Location(),
		entity.FieldAltitude:  rec.Altitude.Ptr(),
		entity.FieldHeading:   rec.Heading.Value,
		entity.FieldSpeed:     rec.Speed.Value,
		entity.FieldCallsign:  rec.Callsign.Ptr(),
		entity.FieldTimestamp: rec.IngestTimestamp,
	}
}
