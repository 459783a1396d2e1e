package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/response"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "insights:raw"

// CachedUpstream keeps textual backend answers in Redis. Only answers that read
// as structured or plain text are stored; a broken cache only costs a backend call.
type CachedUpstream struct {
	next   dispatch.Upstream
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedUpstream(next dispatch.Upstream, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedUpstream {
	return &CachedUpstream{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "upstream-cache"}),
	}
}

func (c *CachedUpstream) CallGeneral(ctx context.Context, question string) (response.Raw, error) {
	return c.through(ctx, GeneralCacheKey(question), question, func(ctx context.Context) (response.Raw, error) {
		return c.next.CallGeneral(ctx, question)
	})
}

func (c *CachedUpstream) CallScoped(ctx context.Context, question, customerID string) (response.Raw, error) {
	return c.through(ctx, ScopedCacheKey(customerID, question), question, func(ctx context.Context) (response.Raw, error) {
		return c.next.CallScoped(ctx, question, customerID)
	})
}

func (c *CachedUpstream) through(ctx context.Context, key, question string, call func(context.Context) (response.Raw, error)) (response.Raw, error) {
	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return response.Text(cached), nil
	case errors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed, calling backend", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	raw, err := call(ctx)
	if err != nil {
		return raw, err
	}

	text, ok := raw.Text()
	if !ok || !cacheable(raw, question) {
		return raw, nil
	}

	if err := c.redis.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return raw, nil
}

// cacheable rejects empty, unparsable and odd payloads so a bad answer is not replayed.
func cacheable(raw response.Raw, question string) bool {
	_, outcome := response.Interpret(raw, question)
	return outcome == response.OutcomeStructured || outcome == response.OutcomeText
}

func GeneralCacheKey(question string) string {
	return fmt.Sprintf("%s:general:%s", cacheKeyPrefix, normalizeQuestion(question))
}

func ScopedCacheKey(customerID, question string) string {
	return fmt.Sprintf("%s:customer:%s:%s", cacheKeyPrefix, url.PathEscape(customerID), normalizeQuestion(question))
}

func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
