package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/marginalia/internal/models"
)

// RedisStatus mirrors job status into a Redis hash per job.
type RedisStatus struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStatus{client: c, keyNS: "job", ttl: ttl}, nil
}

func (s *RedisStatus) key(jobID uint) string { return fmt.Sprintf("%s:%d:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID uint, st Snapshot) error {
	m := map[string]interface{}{
		"status":        string(st.Status),
		"progress":      st.Progress,
		"error_message": st.ErrorMessage,
		"updated":       st.UpdatedAt.Format(time.RFC3339Nano),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(jobID), m)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(jobID), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID uint) (Snapshot, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return Snapshot{}, false, err
	}
	return decodeSnapshot(res)
}

func decodeSnapshot(res map[string]string) (Snapshot, bool, error) {
	if len(res) == 0 {
		return Snapshot{}, false, nil
	}
	st := Snapshot{
		Status:       models.JobStatus(res["status"]),
		ErrorMessage: res["error_message"],
	}
	if !st.Status.Valid() {
		return Snapshot{}, false, fmt.Errorf("mirror holds unknown status %q", res["status"])
	}
	if p, err := strconv.Atoi(res["progress"]); err == nil {
		st.Progress = p
	}
	if v := res["updated"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.UpdatedAt = t
		}
	}
	return st, true, nil
}

// Delete removes the job's hash so reads fall back to the database.
func (s *RedisStatus) Delete(ctx context.Context, jobID uint) error {
	return s.client.Del(ctx, s.key(jobID)).Err()
}

// Ping checks redis connectivity.
func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStatus) Close() error { return s.client.Close() }
