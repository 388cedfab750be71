package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

const (
	memoryTTL     = 24 * time.Hour
	maxRoomMemory = 500
)

// RedisLog keeps each room's memories in a sorted set scored by creation
// time in milliseconds.
type RedisLog struct {
	client *redis.Client
}

// NewRedisLog connects to redisURL and pings it.
func NewRedisLog(ctx context.Context, redisURL string) (*RedisLog, error) {
	client, err := dial(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisLog{client: client}, nil
}

func dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Close closes the Redis connection.
func (s *RedisLog) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisLog) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client.
func (s *RedisLog) Client() *redis.Client {
	return s.client
}

// Nonces returns a nonce store sharing this connection.
func (s *RedisLog) Nonces() *RedisNonces {
	return &RedisNonces{client: s.client}
}

func roomMemoryKey(roomID string) string {
	return fmt.Sprintf("room:%s:memories", roomID)
}

func roomMemoryIDsKey(roomID string) string {
	return fmt.Sprintf("room:%s:memory-ids", roomID)
}

// appendScript records a memory once per id. The id joins the seen set
// only after the memory itself is written, so a failed write can be
// retried.
//
// KEYS: ids set, memories zset. ARGV: id, score, memory, ttl seconds, cap.
var appendScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
redis.call('ZREMRANGEBYRANK', KEYS[2], 0, tostring(-tonumber(ARGV[5]) - 1))
redis.call('EXPIRE', KEYS[2], ARGV[4])
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Append stores m and trims the room to the newest maxRoomMemory entries.
// Ids already seen in the room are skipped.
func (s *RedisLog) Append(ctx context.Context, m *models.Memory) error {
	prepare(m)

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	keys := []string{roomMemoryIDsKey(m.RoomID), roomMemoryKey(m.RoomID)}
	err = appendScript.Run(ctx, s.client, keys,
		m.ID,
		m.CreatedAt.UnixMilli(),
		string(data),
		int64(memoryTTL.Seconds()),
		maxRoomMemory,
	).Err()
	if err != nil {
		return fmt.Errorf("appending memory %s: %w", m.ID, err)
	}
	return nil
}

// Recent returns the newest memories of the room.
func (s *RedisLog) Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := s.client.ZRevRange(ctx, roomMemoryKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	memories := make([]models.Memory, 0, len(results))
	for _, data := range results {
		var m models.Memory
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			continue
		}
		memories = append(memories, m)
	}
	return memories, nil
}

// RedisNonces stores used nonces as expiring keys.
type RedisNonces struct {
	client *redis.Client
}

func nonceKey(agentID, nonce string) string {
	return fmt.Sprintf("nonce:%s:%s", agentID, nonce)
}

// IsNonceUsed checks if a nonce has been used.
func (s *RedisNonces) IsNonceUsed(ctx context.Context, agentID, nonce string) (bool, error) {
	err := s.client.Get(ctx, nonceKey(agentID, nonce)).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// MarkNonceUsed marks a nonce as used with a TTL.
func (s *RedisNonces) MarkNonceUsed(ctx context.Context, agentID, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, nonceKey(agentID, nonce), "1", ttl).Err()
}
