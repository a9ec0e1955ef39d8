package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same three-window quota across multiple
// processes sharing one vendor account. It trades the in-process limiter's
// rolling windows for fixed Redis windows (counter + TTL per window), which
// is how a shared quota stays cheap: one Lua round trip per admission.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	cfg    Config

	script *redis.Script
}

// Atomically checks all three counters against their ceilings and only
// increments when every check passes. GET-check-INCR without Lua races
// between processes.
const multiWindowScript = `
local minuteKey = KEYS[1]
local hourKey = KEYS[2]
local dayKey = KEYS[3]
local minuteLimit = tonumber(ARGV[1])
local hourLimit = tonumber(ARGV[2])
local dayLimit = tonumber(ARGV[3])

local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local hourCurrent = tonumber(redis.call("GET", hourKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dayKey) or "0")

if minCurrent + 1 > minuteLimit then
    return {0, minCurrent, hourCurrent, dayCurrent}
end
if hourCurrent + 1 > hourLimit then
    return {0, minCurrent, hourCurrent, dayCurrent}
end
if dayCurrent + 1 > dayLimit then
    return {0, minCurrent, hourCurrent, dayCurrent}
end

local newMin = redis.call("INCR", minuteKey)
if newMin == 1 then
    redis.call("EXPIRE", minuteKey, 60)
end
local newHour = redis.call("INCR", hourKey)
if newHour == 1 then
    redis.call("EXPIRE", hourKey, 3600)
end
local newDay = redis.call("INCR", dayKey)
if newDay == 1 then
    redis.call("EXPIRE", dayKey, 86400)
end

return {1, newMin, newHour, newDay}
`

// NewRedisLimiter creates a shared limiter. prefix namespaces the counters,
// typically the platform name.
func NewRedisLimiter(client *redis.Client, prefix string, cfg Config) *RedisLimiter {
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 60 * time.Second
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		cfg:    cfg,
		script: redis.NewScript(multiWindowScript),
	}
}

func (l *RedisLimiter) keys() []string {
	return []string{
		fmt.Sprintf("ratelimit:%s:minute", l.prefix),
		fmt.Sprintf("ratelimit:%s:hour", l.prefix),
		fmt.Sprintf("ratelimit:%s:day", l.prefix),
	}
}

// Allow atomically checks and records one request. A Redis failure denies
// admission and surfaces the error; callers decide whether to fail open.
func (l *RedisLimiter) Allow(ctx context.Context) (bool, error) {
	res, err := l.script.Run(ctx, l.client, l.keys(),
		l.cfg.PerMinute, l.cfg.PerHour, l.cfg.PerDay).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis check failed: %w", err)
	}
	return len(res) > 0 && res[0] == 1, nil
}

// Wait blocks until admitted, sleeping RetryAfter between attempts.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		allowed, err := l.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if err := sleepCtx(ctx, l.cfg.RetryAfter); err != nil {
			return err
		}
	}
}

// Usage reports the current counter values. Missing keys read as zero.
func (l *RedisLimiter) Usage(ctx context.Context) (Usage, error) {
	keys := l.keys()
	vals, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("ratelimit: redis usage failed: %w", err)
	}
	counts := make([]int, 3)
	for i, v := range vals {
		if s, ok := v.(string); ok {
			fmt.Sscanf(s, "%d", &counts[i])
		}
	}
	return Usage{Minute: counts[0], Hour: counts[1], Day: counts[2]}, nil
}
