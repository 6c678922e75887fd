package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"adsb-ingest-service/internal/domain/entity"
	"adsb-ingest-service/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// upsertScript writes the seed when the hash does not exist yet, the
// update fields otherwise. ARGV[3] is the TTL in milliseconds, 0 for none.
var upsertScript = redis.NewScript(`
local fields
if redis.call('EXISTS', KEYS[1]) == 0 then
	fields = cjson.decode(ARGV[1])
else
	fields = cjson.decode(ARGV[2])
end
for k, v in pairs(fields) do
	redis.call('HSET', KEYS[1], k, v)
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// RedisAircraftStateRepository implements AircraftStateRepository with
// one hash per aircraft under <prefix>:<icao>
type RedisAircraftStateRepository struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisAircraftStateRepository creates a new Redis aircraft state repository
func NewRedisAircraftStateRepository(rdb redis.UniversalClient, prefix string, ttl time.Duration) repository.AircraftStateRepository {
	return &RedisAircraftStateRepository{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

// BulkUpsert sends every operation in one pipeline. Redis reply errors
// are per-operation failures; anything else means the call failed.
func (r *RedisAircraftStateRepository) BulkUpsert(ctx context.Context, ops []entity.WriteOperation) (*entity.BulkResult, error) {
	result := &entity.BulkResult{Submitted: len(ops)}
	if len(ops) == 0 {
		return result, nil
	}

	keys := make([][]string, len(ops))
	args := make([][]interface{}, len(ops))
	for i, op := range ops {
		a, err := r.scriptArgs(op)
		if err != nil {
			return nil, fmt.Errorf("failed to encode aircraft state %s: %w", op.ICAO, err)
		}
		keys[i] = []string{r.key(op.ICAO)}
		args[i] = a
	}

	cmds := r.runPipeline(ctx, keys, args)
	if redis.HasErrorPrefix(cmds[0].Err(), "NOSCRIPT") {
		// script cache is empty (new or restarted server); nothing ran
		if err := upsertScript.Load(ctx, r.rdb).Err(); err != nil {
			return nil, fmt.Errorf("failed to load upsert script: %w", err)
		}
		cmds = r.runPipeline(ctx, keys, args)
	}

	for i, cmd := range cmds {
		err := cmd.Err()
		if err == nil {
			result.Succeeded++
			continue
		}
		var replyErr redis.Error
		if !errors.As(err, &replyErr) {
			return nil, fmt.Errorf("failed to bulk upsert aircraft states: %w", err)
		}
		result.Failures = append(result.Failures, entity.ItemFailure{
			Index:  i,
			ICAO:   ops[i].ICAO,
			Reason: err.Error(),
		})
	}

	return result, nil
}

// runPipeline sends one EVALSHA per operation. Exec reports only the
// first failed command; callers inspect each.
func (r *RedisAircraftStateRepository) runPipeline(ctx context.Context, keys [][]string, args [][]interface{}) []*redis.Cmd {
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.Cmd, len(keys))
	for i := range keys {
		cmds[i] = upsertScript.Run(ctx, pipe, keys[i], args[i]...)
	}
	_, _ = pipe.Exec(ctx)
	return cmds
}

func (r *RedisAircraftStateRepository) key(icao string) string {
	return r.prefix + ":" + icao
}

func (r *RedisAircraftStateRepository) scriptArgs(op entity.WriteOperation) ([]interface{}, error) {
	seed, err := json.Marshal(hashFields(op.Seed))
	if err != nil {
		return nil, err
	}
	update, err := json.Marshal(hashFields(op.UpdateFields))
	if err != nil {
		return nil, err
	}
	return []interface{}{string(seed), string(update), r.ttl.Milliseconds()}, nil
}

// hashFields renders a document as hash field strings. Unknown seed
// values (nil pointers) are left out of the hash.
func hashFields(fields entity.Fields) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := hashValue(v); ok {
			out[k] = s
		}
	}
	return out
}

func hashValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case *string:
		if val == nil {
			return "", false
		}
		return *val, true
	case int:
		return strconv.Itoa(val), true
	case *int:
		if val == nil {
			return "", false
		}
		return strconv.Itoa(*val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case entity.GeoPoint:
		return strconv.FormatFloat(val.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(val.Lon, 'f', -1, 64), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}
