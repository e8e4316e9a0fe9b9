package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redisv8 "github.com/go-redis/redis/v8"

	rds "automator/internal/platform/redis"
)

// Store is the durable record of job and per-action state. Pure data
// access; the state machine lives in Service and the worker engine.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Save(ctx context.Context, j *Job) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int, status Status) ([]*Job, error)
}

const indexKey = "jobs:index"

func key(id string) string { return "job:" + id }

// RedisStore persists jobs as JSON values with a created-at sorted set for
// bounded newest-first listing. Records have no TTL; only an explicit
// delete removes them.
type RedisStore struct {
	redis *rds.Service
}

func NewRedisStore(redis *rds.Service) *RedisStore { return &RedisStore{redis: redis} }

func (s *RedisStore) Create(ctx context.Context, j *Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	ok, err := s.redis.Client().SetNX(ctx, key(j.ID), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	return s.redis.Client().ZAdd(ctx, indexKey, &redisv8.Z{
		Score:  float64(j.CreatedAt.UnixMilli()),
		Member: j.ID,
	}).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	b, err := s.redis.Client().Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redisv8.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Save is update-only: writing to a deleted job returns ErrNotFound so a
// worker driving a removed job cannot resurrect the record.
func (s *RedisStore) Save(ctx context.Context, j *Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	ok, err := s.redis.Client().SetXX(ctx, key(j.ID), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Client().Del(ctx, key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.redis.Client().ZRem(ctx, indexKey, id).Err()
}

func (s *RedisStore) List(ctx context.Context, limit int, status Status) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.redis.Client().ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		j, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}
