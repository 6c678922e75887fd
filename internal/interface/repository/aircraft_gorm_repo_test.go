package repository

import (
	"context"
	"errors"
	"testing"

	"adsb-ingest-service/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestStateFromSeed(t *testing.T) {
	row := stateFromSeed(op("ABC123"))

	assert.Equal(t, "ABC123", row.ICAO)
	require.NotNil(t, row.Altitude)
	assert.Equal(t, 35000, *row.Altitude)
	assert.Nil(t, row.Flight)
	assert.Equal(t, 250, row.Speed)
	assert.Equal(t, 0, row.Heading)
	assert.Equal(t, 51.5, row.Lat)
	assert.Equal(t, -0.1, row.Lon)
	assert.Equal(t, int64(1741953600000), row.Timestamp)
}

func TestUpdateColumns(t *testing.T) {
	cols := updateColumns(op("ABC123").UpdateFields)

	assert.NotContains(t, cols, entity.FieldLocation)
	assert.Equal(t, 51.5, cols[entity.FieldLatitude])
	assert.Equal(t, -0.1, cols[entity.FieldLongitude])
	assert.Equal(t, 250, cols[entity.FieldSpeed])
	assert.Len(t, cols, 6)
}

func TestGormUpsertStatement(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=adsb dbname=adsb sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	repo := &GormAircraftStateRepository{db: db, table: "adsb_traffic"}

	o := op("ABC123")
	o.UpdateFields = entity.Fields{
		entity.FieldICAO:      "ABC123",
		entity.FieldSpeed:     0,
		entity.FieldTimestamp: int64(1),
	}
	stmt := repo.upsert(db.WithContext(context.Background()), o).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, `INSERT INTO "adsb_traffic"`)
	assert.Contains(t, sql, `ON CONFLICT ("icao") DO UPDATE SET`)
	assert.Contains(t, sql, `"speed"=`)
	assert.Contains(t, sql, `"timestamp"=`)
	assert.NotContains(t, sql, `"altitude"=`)
	assert.NotContains(t, sql, `"lat"=`)
}

func TestGormBulkUpsert_Empty(t *testing.T) {
	repo := &GormAircraftStateRepository{}
	result, err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Submitted)
}

func newMockGormRepo(t *testing.T) (*GormAircraftStateRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &GormAircraftStateRepository{db: db, table: "adsb_traffic"}, mock
}

func TestGormBulkUpsert_RejectedRowRollsBackAlone(t *testing.T) {
	repo, mock := newMockGormRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^INSERT INTO "adsb_traffic"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^INSERT INTO "adsb_traffic"`).WillReturnError(errors.New(`new row violates check constraint "altitude_range"`))
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^INSERT INTO "adsb_traffic"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ops := []entity.WriteOperation{op("A1"), op("A2"), op("A3")}
	result, err := repo.BulkUpsert(context.Background(), ops)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Submitted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, "A2", result.Failures[0].ICAO)
	assert.Contains(t, result.Failures[0].Reason, "altitude_range")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBulkUpsert_BeginFailure(t *testing.T) {
	repo, mock := newMockGormRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	result, err := repo.BulkUpsert(context.Background(), []entity.WriteOperation{op("A1")})
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
