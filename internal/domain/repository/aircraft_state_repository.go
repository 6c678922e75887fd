package repository

import (
	"context"

	"adsb-ingest-service/internal/domain/entity"
)

// AircraftStateRepository defines the bulk upsert contract of the
// current-state store. A returned error means the call as a whole
// failed (store unreachable); rejected operations are reported in the
// result and never abort their siblings.
type AircraftStateRepository interface {
	BulkUpsert(ctx context.Context, ops []entity.WriteOperation) (*entity.BulkResult, error)
}
