// 包 aggregator：聚合管线（并发拉取两路数据源 + 存储快照 → 融合 → 筛选）与实时会话控制器
package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"restroom-api/internal/filter"
	"restroom-api/internal/fusion"
	"restroom-api/internal/logger"
	"restroom-api/internal/model"
	"restroom-api/internal/providers"
	"restroom-api/internal/store"
)

// DefaultRadiusMeters：未指定半径时的检索半径
const DefaultRadiusMeters = 2000

// Fetched：两路外部数据源的一次拉取结果
type Fetched struct {
	Commercial []model.Candidate
	Registry   []model.Candidate
}

// 文档注释：聚合管线
// 背景：商业地点与社区登记两路数据源并发拉取，任一路失败按空结果降级，不影响另一路。
// 约束：数据源可为 nil（未配置），视为恒空；缓存由调用方通过 providers.Cached 包装注入。
type Pipeline struct {
	commercial providers.Provider
	registry   providers.Provider
	store      store.Store
	log        *slog.Logger
}

func NewPipeline(commercial, registry providers.Provider, s store.Store, l *slog.Logger) *Pipeline {
	return &Pipeline{commercial: commercial, registry: registry, store: s, log: logger.Or(l)}
}

// Store：管线使用的记录存储
func (p *Pipeline) Store() store.Store { return p.store }

// FetchProviders：并发拉取两路数据源；错误只记录日志
func (p *Pipeline) FetchProviders(ctx context.Context, center model.Coordinates, radiusMeters int) Fetched {
	var out Fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Commercial = p.search(gctx, p.commercial, center, radiusMeters)
		return nil
	})
	g.Go(func() error {
		out.Registry = p.search(gctx, p.registry, center, radiusMeters)
		return nil
	})
	_ = g.Wait()
	return out
}

func (p *Pipeline) search(ctx context.Context, src providers.Provider, center model.Coordinates, radiusMeters int) []model.Candidate {
	if src == nil {
		return nil
	}
	t0 := time.Now()
	res, err := src.Search(ctx, center, radiusMeters)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("provider_degraded", "provider", src.Name(), "err", err)
		}
		return nil
	}
	p.log.Debug("provider_done", "provider", src.Name(), "count", len(res), "ms", time.Since(t0).Milliseconds())
	return res
}

// Snapshot：用户提交记录的一次性快照；存储为 nil 时为空
func (p *Pipeline) Snapshot(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.FetchNearby(ctx, center, radiusMeters)
}

// Compose：融合并筛选
func Compose(f Fetched, user []model.Candidate, spec model.FilterSpec) filter.Result {
	return filter.Apply(fusion.Merge(f.Commercial, f.Registry, user), spec)
}

// 文档注释：一次性检索
// 背景：服务请求/响应式调用方；数据源与快照并发执行。
// 约束：快照失败按空降级并记录日志，结果仍返回。
func (p *Pipeline) Search(ctx context.Context, center model.Coordinates, radiusMeters int, spec model.FilterSpec) filter.Result {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	var (
		fetched Fetched
		user    []model.Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched = p.FetchProviders(gctx, center, radiusMeters)
		return nil
	})
	g.Go(func() error {
		snap, err := p.Snapshot(gctx, center, radiusMeters)
		if err != nil {
			p.log.Warn("store_snapshot_error", "err", err)
			return nil
		}
		user = snap
		return nil
	})
	_ = g.Wait()
	res := Compose(fetched, user, spec)
	p.log.Debug("search_done", "lat", center.Lat, "lng", center.Lng, "radius", radiusMeters,
		"passing", len(res.Passing), "filtered", len(res.FilteredOut))
	return res
}
