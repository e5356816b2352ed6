// Package redisstore implements task.CheckpointStore on
// github.com/redis/go-redis/v9, for deployments that need checkpoints to
// survive a process restart (§6.9, C10). Checkpoints are JSON-encoded
// and pushed onto a per-workflow Redis list, mirroring the mapping-key
// pattern the teacher's Pulse result-stream manager uses for its own
// Redis-backed state.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowcraft/execore/task"
)

const defaultKeyPrefix = "execore:checkpoint:"

// Store persists checkpoints as a Redis list per workflow ID.
type Store struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ task.CheckpointStore = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// KeyPrefix overrides the default Redis key prefix.
	KeyPrefix string
	// TTL expires a workflow's checkpoint list after the given duration
	// of inactivity; zero disables expiry.
	TTL time.Duration
}

// New constructs a Store backed by rdb.
func New(rdb *redis.Client, opts Options) *Store {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{rdb: rdb, keyPrefix: prefix, ttl: opts.TTL}
}

func (s *Store) key(workflowID string) string {
	return s.keyPrefix + workflowID
}

// Save JSON-encodes cp and appends it to workflowID's checkpoint list.
func (s *Store) Save(workflowID string, cp task.Checkpoint) error {
	ctx := context.Background()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redisstore: marshal checkpoint: %w", err)
	}
	key := s.key(workflowID)
	if err := s.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redisstore: rpush checkpoint: %w", err)
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redisstore: set ttl: %w", err)
		}
	}
	return nil
}

// List returns every checkpoint stored for workflowID, oldest first.
func (s *Store) List(workflowID string) ([]task.Checkpoint, error) {
	ctx := context.Background()
	raw, err := s.rdb.LRange(ctx, s.key(workflowID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redisstore: lrange checkpoints: %w", err)
	}
	cps := make([]task.Checkpoint, 0, len(raw))
	for _, r := range raw {
		var cp task.Checkpoint
		if err := json.Unmarshal([]byte(r), &cp); err != nil {
			return nil, fmt.Errorf("redisstore: unmarshal checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Timestamp.Before(cps[j].Timestamp) })
	return cps, nil
}
