package library

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/logger"
)

const DefaultPrefix = "slomo:recordings:"

// putScript stores the entry and adds it to the ordered set in one step.
// A ttl of 0 stores without expiry.
var putScript = redis.NewScript(`
	local key = KEYS[1]
	local all_key = KEYS[2]
	local data = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local score = tonumber(ARGV[3])
	local id = ARGV[4]
	if ttl > 0 then
		redis.call('SET', key, data, 'PX', ttl)
	else
		redis.call('SET', key, data)
	end
	redis.call('ZADD', all_key, score, id)
	return 1
`)

// listScript returns entries newest first and prunes ids whose entry has
// expired.
var listScript = redis.NewScript(`
	local all_key = KEYS[1]
	local prefix = ARGV[1]
	local ids = redis.call('ZREVRANGE', all_key, 0, -1)
	local result = {}
	local expired = {}
	for i, id in ipairs(ids) do
		local data = redis.call('GET', prefix .. id)
		if data then
			table.insert(result, data)
		else
			table.insert(expired, id)
		end
	end
	for i, id in ipairs(expired) do
		redis.call('ZREM', all_key, id)
	end
	return result
`)

// RedisIndex implements Index on Redis. Each recording is a JSON string at
// <prefix><id>; <prefix>all is a sorted set of ids scored by start time.
type RedisIndex struct {
	client *redis.Client
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

func NewRedisIndex(client *redis.Client, log logger.Logger, prefix string, ttl time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisIndex{
		client: client,
		logger: log.WithField("component", "recording_index"),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisIndex) key(id string) string {
	return r.prefix + id
}

func (r *RedisIndex) allKey() string {
	return r.prefix + "all"
}

func (r *RedisIndex) Put(ctx context.Context, rec *Recording) error {
	if rec == nil || rec.ID == "" {
		return errors.NewValidationError("recording id is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	_, err = putScript.Run(ctx, r.client,
		[]string{r.key(rec.ID), r.allKey()},
		data, r.ttl.Milliseconds(), rec.StartedAt.UnixMilli(), rec.ID).Int()
	if err != nil {
		return fmt.Errorf("failed to store recording: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"recording_id": rec.ID,
		"path":         rec.Path,
		"frames":       rec.Frames,
	}).Debug("Recording indexed")
	return nil
}

func (r *RedisIndex) Get(ctx context.Context, id string) (*Recording, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}
	return &rec, nil
}

func (r *RedisIndex) List(ctx context.Context) ([]*Recording, error) {
	res, err := listScript.Run(ctx, r.client, []string{r.allKey()}, r.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type from script")
	}

	recs := make([]*Recording, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Warn("Invalid data type in result")
			continue
		}
		var rec Recording
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal recording")
			continue
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func (r *RedisIndex) Delete(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	if err := r.client.ZRem(ctx, r.allKey(), id).Err(); err != nil {
		r.logger.WithError(err).Warnf("Failed to remove recording %s from index set", id)
	}
	if deleted == 0 {
		return notFound(id)
	}

	r.logger.WithField("recording_id", id).Info("Recording removed from index")
	return nil
}

func (r *RedisIndex) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
