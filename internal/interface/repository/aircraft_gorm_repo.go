package repository

import (
	"context"
	"fmt"
	"strings"

	"adsb-ingest-service/internal/domain/entity"
	"adsb-ingest-service/internal/domain/repository"
	"adsb-ingest-service/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AircraftState GORM model for database mapping
type AircraftState struct {
	ICAO      string  `gorm:"column:icao;primaryKey"`
	Flight    *string `gorm:"column:flight"`
	Altitude  *int    `gorm:"column:altitude"`
	Speed     int     `gorm:"column:speed"`
	Heading   int     `gorm:"column:heading"`
	Lat       float64 `gorm:"column:lat"`
	Lon       float64 `gorm:"column:lon"`
	Timestamp int64   `gorm:"column:timestamp;index"`
}

// GormAircraftStateRepository implements AircraftStateRepository on PostgreSQL
type GormAircraftStateRepository struct {
	db    *gorm.DB
	table string
}

// NewGormAircraftStateRepository creates a new GORM aircraft state repository
// and migrates its table
func NewGormAircraftStateRepository(ctx context.Context, db *gorm.DB, tableName string, log logger.Logger) repository.AircraftStateRepository {
	table := strings.ReplaceAll(tableName, "-", "_")
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&AircraftState{}); err != nil {
		log.Warn("Failed to migrate aircraft state table", "table", table, "error", err)
	}
	return &GormAircraftStateRepository{
		db:    db,
		table: table,
	}
}

// BulkUpsert runs all operations in one transaction, each behind its own
// savepoint, so a rejected row rolls back alone.
func (r *GormAircraftStateRepository) BulkUpsert(ctx context.Context, ops []entity.WriteOperation) (*entity.BulkResult, error) {
	result := &entity.BulkResult{Submitted: len(ops)}
	if len(ops) == 0 {
		return result, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, op := range ops {
			err := tx.Transaction(func(sp *gorm.DB) error {
				return r.upsert(sp, op).Error
			})
			if err != nil {
				result.Failures = append(result.Failures, entity.ItemFailure{
					Index:  i,
					ICAO:   op.ICAO,
					Reason: err.Error(),
				})
				continue
			}
			result.Succeeded++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bulk upsert aircraft states: %w", err)
	}

	return result, nil
}

func (r *GormAircraftStateRepository) upsert(tx *gorm.DB, op entity.WriteOperation) *gorm.DB {
	row := stateFromSeed(op)
	return tx.Table(r.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: entity.FieldICAO}},
			DoUpdates: clause.Assignments(updateColumns(op.UpdateFields)),
		}).
		Create(&row)
}

// stateFromSeed maps the seed document onto a row
func stateFromSeed(op entity.WriteOperation) AircraftState {
	row := AircraftState{ICAO: op.ICAO}
	if v, ok := op.Seed[entity.FieldCallsign].(*string); ok {
		row.Flight = v
	}
	if v, ok := op.Seed[entity.FieldAltitude].(*int); ok {
		row.Altitude = v
	}
	if v, ok := op.Seed[entity.FieldSpeed].(int); ok {
		row.Speed = v
	}
	if v, ok := op.Seed[entity.FieldHeading].(int); ok {
		row.Heading = v
	}
	if v, ok := op.Seed[entity.FieldLocation].(entity.GeoPoint); ok {
		row.Lat, row.Lon = v.Lat, v.Lon
	}
	if v, ok := op.Seed[entity.FieldTimestamp].(int64); ok {
		row.Timestamp = v
	}
	return row
}

// updateColumns maps update fields onto columns. location has no column
// of its own; lat and lon carry it.
func updateColumns(fields entity.Fields) map[string]interface{} {
	cols := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k == entity.FieldLocation {
			continue
		}
		cols[k] = v
	}
	return cols
}
