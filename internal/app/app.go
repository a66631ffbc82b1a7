// 包 app：按配置装配存储、缓存、数据源与检索管线，供服务进程与命令行工具共用
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"restroom-api/internal/aggregator"
	"restroom-api/internal/cache"
	"restroom-api/internal/config"
	"restroom-api/internal/directions"
	"restroom-api/internal/location"
	"restroom-api/internal/logger"
	"restroom-api/internal/migrate"
	"restroom-api/internal/places"
	"restroom-api/internal/providers"
	"restroom-api/internal/records"
	"restroom-api/internal/refuge"
	"restroom-api/internal/store"
	"restroom-api/internal/store/mongostore"
	"restroom-api/internal/utils"
)

// App：装配完成的依赖集合
type App struct {
	Config     config.Config
	Store      store.Store
	Pipeline   *aggregator.Pipeline
	Records    *records.Service
	Directions *directions.Client
	GeoIP      *location.GeoIP
	Redis      *redis.Client

	closers []func() error
	log     *slog.Logger
}

// 文档注释：按配置装配
// 背景：存储后端三选一；Redis 仅在启用时作为二级缓存与提交去重使用，不可达时降级为纯内存。
// 约束：GeoIP 库打开失败只告警不中断；存储初始化失败直接返回错误。
func Build(ctx context.Context, cfg config.Config, l *slog.Logger) (*App, error) {
	l = logger.Or(l)
	a := &App{Config: cfg, log: l}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	if cfg.RedisCache {
		rc, err := utils.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok", "redis", cfg.Redis.String())
			a.Redis = rc
			a.closers = append(a.closers, rc.Close)
		}
	} else {
		l.Info("redis_disabled")
	}

	commercial := providers.Provider(places.New(places.Config{
		BaseURL:  cfg.PlacesBaseURL,
		APIKey:   cfg.PlacesAPIKey,
		QPS:      cfg.PlacesQPS,
		MaxPages: cfg.PlacesMaxPages,
		Logger:   l,
	}))
	registry := providers.Provider(refuge.New(refuge.Config{
		BaseURL: cfg.RefugeBaseURL,
		Timeout: cfg.RefugeTimeout,
		Retries: cfg.RefugeRetries,
		Logger:  l,
	}))
	if cfg.CacheTTL > 0 {
		commercial = providers.NewCached(commercial, a.cacheChain(places.ProviderName), "restrooms")
		registry = providers.NewCached(registry, a.cacheChain(refuge.ProviderName), "restrooms")
	}
	if cfg.PlacesAPIKey == "" {
		l.Warn("places_key_missing")
	}

	a.Pipeline = aggregator.NewPipeline(commercial, registry, st, l)
	a.Records = records.NewService(st, l)
	a.Directions = directions.New(directions.Config{
		BaseURL: cfg.DirectionsBaseURL,
		APIKey:  cfg.DirectionsAPIKey,
		Logger:  l,
	})

	if cfg.GeoIPPath != "" {
		g, err := location.OpenGeoIP(cfg.GeoIPPath, l)
		if err != nil {
			l.Warn("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
		} else {
			a.GeoIP = g
			a.closers = append(a.closers, g.Close)
		}
	}
	return a, nil
}

func (a *App) cacheChain(provider string) cache.Tier {
	tiers := []cache.Tier{cache.NewMemory(a.Config.CacheTTL, cache.WithCapacity(a.Config.CacheCapacity))}
	if a.Redis != nil {
		tiers = append(tiers, cache.NewRedis(a.Redis, provider, a.Config.CacheTTL, a.log))
	}
	return cache.NewChain(provider, tiers...)
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := store.OpenPostgres(cfg.PostgresDSN, a.log)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.DB().PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.log.Info("db_ping_ok", "backend", cfg.Store)
		if cfg.EnsureSchema {
			if err := migrate.EnsureSchema(ctx, pg.DB()); err != nil {
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		return pg, nil
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() error { return disconnect(client) })
		m := mongostore.New(db, a.log)
		if cfg.EnsureSchema {
			if err := m.EnsureIndexes(ctx); err != nil {
				return nil, fmt.Errorf("ensure indexes: %w", err)
			}
		}
		a.log.Info("db_ping_ok", "backend", cfg.Store)
		return m, nil
	default:
		a.log.Info("store_memory")
		return store.NewMemory(), nil
	}
}

func disconnect(c *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Disconnect(ctx)
}

// Close：按打开顺序的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
