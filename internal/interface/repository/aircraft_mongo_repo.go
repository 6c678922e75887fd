package repository

import (
	"context"
	"errors"
	"fmt"

	"adsb-ingest-service/internal/domain/entity"
	"adsb-ingest-service/internal/domain/repository"
	"adsb-ingest-service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// bulkWriter is the part of *mongo.Collection the repository needs
type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// geoJSONPoint is the stored shape of entity.GeoPoint, indexable by 2dsphere
type geoJSONPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

// MongoAircraftStateRepository implements AircraftStateRepository on a
// MongoDB collection. Documents are keyed by ICAO address in _id.
type MongoAircraftStateRepository struct {
	collection bulkWriter
	logger     logger.Logger
}

// NewMongoAircraftStateRepository creates a new MongoDB aircraft state repository
func NewMongoAircraftStateRepository(ctx context.Context, db *mongo.Database, collectionName string, log logger.Logger) repository.AircraftStateRepository {
	collection := db.Collection(collectionName)

	locationIndex := mongo.IndexModel{
		Keys: bson.D{{Key: entity.FieldLocation, Value: "2dsphere"}},
	}

	// Most recently seen aircraft first
	timestampIndex := mongo.IndexModel{
		Keys: bson.D{{Key: entity.FieldTimestamp, Value: -1}},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{locationIndex, timestampIndex}); err != nil {
		log.Warn("Failed to create aircraft state indexes", "collection", collectionName, "error", err)
	}

	return newMongoAircraftStateRepository(collection, log)
}

func newMongoAircraftStateRepository(collection bulkWriter, log logger.Logger) *MongoAircraftStateRepository {
	return &MongoAircraftStateRepository{
		collection: collection,
		logger:     log,
	}
}

// BulkUpsert submits ops as an ordered bulk write. MongoDB stops an
// ordered bulk at the first write error; the failed operation is
// recorded and the rest of the batch is resubmitted, so later
// operations still apply in submission order.
func (r *MongoAircraftStateRepository) BulkUpsert(ctx context.Context, ops []entity.WriteOperation) (*entity.BulkResult, error) {
	result := &entity.BulkResult{Submitted: len(ops)}
	if len(ops) == 0 {
		return result, nil
	}

	models := make([]mongo.WriteModel, len(ops))
	for i, op := range ops {
		models[i] = upsertModel(op)
	}

	opts := options.BulkWrite().SetOrdered(true)
	for start := 0; start < len(models); {
		res, err := r.collection.BulkWrite(ctx, models[start:], opts)
		if err == nil {
			result.Succeeded += applied(res)
			break
		}

		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
			return nil, fmt.Errorf("failed to bulk upsert aircraft states: %w", err)
		}

		// ordered: everything before the first error was applied
		failed := bwe.WriteErrors[0]
		result.Succeeded += failed.Index
		index := start + failed.Index
		result.Failures = append(result.Failures, entity.ItemFailure{
			Index:  index,
			ICAO:   ops[index].ICAO,
			Code:   failed.Code,
			Reason: failed.Message,
		})
		start = index + 1
	}

	return result, nil
}

func applied(res *mongo.BulkWriteResult) int {
	if res == nil {
		return 0
	}
	return int(res.MatchedCount + res.UpsertedCount)
}

// upsertModel sets the update fields, and on insert also the seed fields
// the update does not already set, so a new document equals the seed.
func upsertModel(op entity.WriteOperation) *mongo.UpdateOneModel {
	set := toBSON(op.UpdateFields)
	setOnInsert := bson.M{}
	for k, v := range op.Seed {
		if _, ok := op.UpdateFields[k]; !ok {
			setOnInsert[k] = bsonValue(v)
		}
	}

	update := bson.M{"$set": set}
	if len(setOnInsert) > 0 {
		update["$setOnInsert"] = setOnInsert
	}

	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": op.ICAO}).
		SetUpdate(update).
		SetUpsert(true)
}

func toBSON(fields entity.Fields) bson.M {
	doc := make(bson.M, len(fields))
	for k, v := range fields {
		doc[k] = bsonValue(v)
	}
	return doc
}

func bsonValue(v interface{}) interface{} {
	if p, ok := v.(entity.GeoPoint); ok {
		return geoJSONPoint{Type: "Point", Coordinates: [2]float64{p.Lon, p.Lat}}
	}
	return v
}
