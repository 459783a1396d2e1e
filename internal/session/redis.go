package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"customer-insights/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "insights:session:"

// RedisStore keeps each session as a Redis list of JSON messages. Every write
// refreshes the TTL and trims the list to the newest maxMessages entries.
type RedisStore struct {
	redis       redis.Cmdable
	ttl         time.Duration
	maxMessages int
	logger      logger.Logger
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, maxMessages int, log logger.Logger) *RedisStore {
	return &RedisStore{
		redis:       rdb,
		ttl:         ttl,
		maxMessages: maxMessages,
		logger:      log.With(map[string]interface{}{"component": "session-store"}),
	}
}

func Key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: encode message: %v", ErrHistoryStoreFailed, err)
		}
		values = append(values, b)
	}

	key := Key(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryStoreFailed, err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	items, err := s.redis.LRange(ctx, Key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryStoreFailed, err)
	}

	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			s.logger.Warn("skipping unreadable history entry", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if err := s.redis.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryStoreFailed, err)
	}
	return nil
}
