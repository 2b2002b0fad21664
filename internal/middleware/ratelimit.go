package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/config"
)

// tokenBucketScript refills and takes one token atomically. Returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Key strategies understood by NewTokenBucket.
const (
	KeyByIP       = "ip"       // one bucket per client address
	KeyByIPRoute  = "ip_route" // one bucket per client address and endpoint
	KeyByIdentity = "identity" // one bucket per submitted email or external id and endpoint
)

// maxIdentityPeek bounds how much of the request body is read to find the
// submitted identity.
const maxIdentityPeek = 64 << 10

// NewTokenBucket throttles requests with a Redis-backed token bucket keyed
// by cfg.KeyStrategy. It is a pass-through when disabled or when rdb is nil,
// and fails open on Redis errors so an outage never locks users out.
//
// KeyByIdentity buckets attempts against one account no matter how many
// addresses they come from; requests without an identity fall back to the
// client address.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []any{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				log.Warn("ratelimit: redis error", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			arr, ok := vals.([]any)
			if !ok || len(arr) != 3 {
				log.Warn("ratelimit: unexpected script result", zap.String("key", key), zap.Any("result", vals))
				return next(c)
			}
			allowed := fmt.Sprint(arr[0]) == "1"
			remaining := asInt64(arr[1])
			retryMs := asInt64(arr[2])

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 0 {
					secs = 0
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				log.Info("ratelimit: blocked",
					zap.String("strategy", cfg.KeyStrategy),
					zap.String("ip", c.RealIP()),
					zap.String("route", c.Path()),
					zap.Int64("retry_ms", retryMs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case KeyByIP:
		parts = append(parts, "ip", ip)
	case KeyByIdentity:
		if id := submittedIdentity(c); id != "" {
			parts = append(parts, "id", id, "route", route)
		} else {
			parts = append(parts, "ip", ip, "route", route)
		}
	default:
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}

// submittedIdentity returns a digest of the email or external id a
// credential request names, or "" when it names neither. The body is
// restored for the handler. Digests keep addresses out of Redis keys.
func submittedIdentity(c echo.Context) string {
	var body struct {
		Email          string `json:"email"`
		ExternalID     string `json:"external_id"`
		TelegramUserID string `json:"telegram_user_id"`
	}
	req := c.Request()
	if req.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(req.Body, maxIdentityPeek))
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(raw))
		if err == nil {
			_ = json.Unmarshal(raw, &body)
		}
	}

	var id string
	switch {
	case strings.TrimSpace(body.Email) != "":
		id = "email:" + strings.ToLower(strings.TrimSpace(body.Email))
	case strings.TrimSpace(body.ExternalID) != "":
		id = "ext:" + strings.TrimSpace(body.ExternalID)
	case strings.TrimSpace(body.TelegramUserID) != "":
		id = "ext:" + strings.TrimSpace(body.TelegramUserID)
	default:
		for _, name := range []string{"external_id", "telegram_user_id"} {
			if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
				id = "ext:" + v
				break
			}
		}
	}
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:12])
}
