package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"skychat/internal/models"
	"skychat/internal/redis"
)

const redisKeyPrefix = "history:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore keeps one sorted set per user, scored by message time.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (s *redisStore) Put(ctx context.Context, msg models.Message) error {
	ts, err := time.Parse(models.TimestampLayout, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.client.ZAdd(ctx, redisKey(msg.UserID), float64(ts.UnixMicro()), string(data)); err != nil {
		return fmt.Errorf("zadd message: %w", err)
	}
	return nil
}

func (s *redisStore) Query(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	members, err := s.client.ZRevRange(ctx, redisKey(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("zrevrange history: %w", err)
	}
	messages := make([]models.Message, 0, len(members))
	for _, raw := range members {
		var m models.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			log.Printf("history redis decode failed: %v", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
