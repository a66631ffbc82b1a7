package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
)

// 文档注释：Redis 二级缓存
// 背景：多实例部署时共享热点结果；值为 JSON 编码的候选列表，过期交给 Redis TTL。
// 约束：键形如 restroom:cache:<provider>:<key>；读写异常仅记日志并视为未命中。
type Redis struct {
	rc       *redis.Client
	provider string
	ttl      time.Duration
	log      *slog.Logger
}

func NewRedis(rc *redis.Client, provider string, ttl time.Duration, l *slog.Logger) *Redis {
	return &Redis{rc: rc, provider: provider, ttl: ttl, log: logger.Or(l)}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) key(k Key) string { return "restroom:cache:" + r.provider + ":" + k.String() }

func (r *Redis) Get(ctx context.Context, k Key) ([]model.Candidate, bool) {
	s, err := r.rc.Get(ctx, r.key(k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache_redis_get_error", "provider", r.provider, "err", err)
		}
		return nil, false
	}
	var out []model.Candidate
	if err := json.Unmarshal(s, &out); err != nil {
		r.log.Warn("cache_redis_decode_error", "provider", r.provider, "err", err)
		return nil, false
	}
	return out, true
}

func (r *Redis) Put(ctx context.Context, k Key, v []model.Candidate) {
	if v == nil {
		v = []model.Candidate{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("cache_redis_encode_error", "provider", r.provider, "err", err)
		return
	}
	if err := r.rc.Set(ctx, r.key(k), b, r.ttl).Err(); err != nil {
		r.log.Warn("cache_redis_set_error", "provider", r.provider, "err", err)
	}
}
