package utils

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig：二级结果缓存与提交去重共用的 Redis 连接参数
// 约束：URL 非空时优先（redis:// 或 rediss://），其余字段被忽略
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// 文档注释：从环境变量读取 Redis 参数
// 背景：REDIS_URL 适配托管实例；否则由 REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB 拼装。
// 约束：REDIS_DB 非法或为负时回退 0。
func RedisConfigFromEnv() RedisConfig {
	if u := strings.TrimSpace(os.Getenv("REDIS_URL")); u != "" {
		return RedisConfig{URL: u}
	}
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		host = "127.0.0.1"
	}
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	if port == "" {
		port = "6379"
	}
	db := 0
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("REDIS_DB"))); err == nil && n >= 0 {
		db = n
	}
	return RedisConfig{Addr: net.JoinHostPort(host, port), Password: os.Getenv("REDIS_PASS"), DB: db}
}

// Options：转换为 go-redis 选项
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	if c.Addr == "" {
		return nil, fmt.Errorf("redis address not configured")
	}
	return &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}, nil
}

// String：日志用，不含密码
func (c RedisConfig) String() string {
	opts, err := c.Options()
	if err != nil {
		return "redis(unconfigured)"
	}
	return fmt.Sprintf("redis(%s/%d)", opts.Addr, opts.DB)
}

// 文档注释：打开并探活
// 约束：PING 失败时关闭客户端并返回错误，调用方按无 Redis 降级。
func OpenRedis(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	rc := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping %s: %w", c, err)
	}
	return rc, nil
}
