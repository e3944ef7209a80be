package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
)

const (
	redisScheduleKey = "courtsched:schedule"
	redisTriggersKey = "courtsched:triggers"
	redisFiredPrefix = "courtsched:fired:"

	// fired markers outlive any plausible duplicate delivery window
	redisFiredTTL = 30 * 24 * time.Hour
)

// markFiredScript flips a trigger to fired atomically: returns 0 when the
// trigger is unknown or the marker already exists, 1 on first fire.
var markFiredScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
return redis.call('SETNX', KEYS[2], '1')
`)

// Redis persists state as JSON values in a single Redis instance. This was
// the original deployment backend (Railway Redis).
type Redis struct {
	rdb *redis.Client
}

func OpenRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (s *Redis) LoadSchedule(ctx context.Context) (model.ScheduleRecord, error) {
	raw, err := s.rdb.Get(ctx, redisScheduleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return emptySchedule(), nil
	}
	if err != nil {
		return model.ScheduleRecord{}, fmt.Errorf("load schedule: %w", err)
	}
	var rec model.ScheduleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.ScheduleRecord{}, fmt.Errorf("decode schedule: %w", err)
	}
	return rec, nil
}

func (s *Redis) SaveSchedule(ctx context.Context, rec model.ScheduleRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisScheduleKey, raw, 0).Err()
}

func (s *Redis) SaveTrigger(ctx context.Context, tr model.DeferredTrigger) error {
	raw, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, redisTriggersKey, tr.ID, raw).Err()
}

func (s *Redis) GetTrigger(ctx context.Context, id string) (model.DeferredTrigger, error) {
	raw, err := s.rdb.HGet(ctx, redisTriggersKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DeferredTrigger{}, internaltypes.ErrNotFound
	}
	if err != nil {
		return model.DeferredTrigger{}, fmt.Errorf("get trigger: %w", err)
	}
	var tr model.DeferredTrigger
	if err := json.Unmarshal(raw, &tr); err != nil {
		return model.DeferredTrigger{}, fmt.Errorf("decode trigger: %w", err)
	}
	return tr, nil
}

func (s *Redis) DeleteTrigger(ctx context.Context, id string) error {
	return s.rdb.HDel(ctx, redisTriggersKey, id).Err()
}

func (s *Redis) ListTriggers(ctx context.Context) ([]model.DeferredTrigger, error) {
	vals, err := s.rdb.HGetAll(ctx, redisTriggersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	out := make([]model.DeferredTrigger, 0, len(vals))
	for _, raw := range vals {
		var tr model.DeferredTrigger
		if err := json.Unmarshal([]byte(raw), &tr); err != nil {
			continue
		}
		if !tr.Fired {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *Redis) MarkTriggerFired(ctx context.Context, id string) (bool, error) {
	firedKey := redisFiredPrefix + id
	n, err := markFiredScript.Run(ctx, s.rdb, []string{redisTriggersKey, firedKey}, id).Int()
	if err != nil {
		return false, fmt.Errorf("mark fired: %w", err)
	}
	if n != 1 {
		return false, nil
	}
	// first fire: persist the flag on the record and bound the marker
	if tr, err := s.GetTrigger(ctx, id); err == nil {
		tr.Fired = true
		_ = s.SaveTrigger(ctx, tr)
	}
	_ = s.rdb.Expire(ctx, firedKey, redisFiredTTL).Err()
	return true, nil
}

func (s *Redis) Close() error { return s.rdb.Close() }
