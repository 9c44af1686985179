package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bestiary-server/internal/service"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const defaultPrefix = "bestiary:generate"

var _ service.GenerationLimiter = (*FixedWindowLimiter)(nil)

// FixedWindowLimiter ограничивает число генераций пользователя в фиксированном окне.
// Счетчики живут в Redis, поэтому лимит общий для всех реплик сервера.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	prefix string
	client *redis.Client
	now    func() time.Time
}

// NewFixedWindowLimiter создает лимитер поверх готового клиента Redis.
func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	// Окно считается в миллисекундах
	if window < time.Millisecond {
		return nil, fmt.Errorf("rate limiter window %s is shorter than 1ms", window)
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		prefix: prefix,
		client: client,
		now:    time.Now,
	}, nil
}

// Allow увеличивает счетчик пользователя в текущем окне и сообщает, укладывается ли он в лимит.
// Ошибку Redis вызывающий трактует как отказ.
func (l *FixedWindowLimiter) Allow(ctx context.Context, userID uint64) (bool, error) {
	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%d:%d", l.prefix, userID, slot)

	count, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limiter redis error: %w", err)
	}
	return count <= int64(l.limit), nil
}
