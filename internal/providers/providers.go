// 包 providers：数据源统一接口与读穿缓存包装
package providers

import (
	"context"

	"restroom-api/internal/cache"
	"restroom-api/internal/model"
)

// 文档注释：附近检索数据源
// 背景：商业地点与社区登记两类外部数据源返回异构结构，适配层负责归一化为 Candidate。
// 约束：结果只包含半径内且坐标有效的记录，DistanceFromUser 已填充；失败返回错误且不返回部分数据。
type Provider interface {
	Name() string
	Search(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error)
}

// Func：函数适配器
type Func struct {
	ID string
	Fn func(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Search(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	return f.Fn(ctx, center, radiusMeters)
}

// Cached：读穿缓存
// 约束：仅缓存成功结果；错误透传且不写缓存；ctx 已取消时结果不写缓存；命中与否不改变结果语义
type Cached struct {
	inner Provider
	tier  cache.Tier
	query string
}

func NewCached(inner Provider, tier cache.Tier, query string) *Cached {
	return &Cached{inner: inner, tier: tier, query: query}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Search(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	if c.tier == nil {
		return c.inner.Search(ctx, center, radiusMeters)
	}
	k := cache.NewKey(center, radiusMeters, c.query)
	if v, ok := c.tier.Get(ctx, k); ok {
		return v, nil
	}
	v, err := c.inner.Search(ctx, center, radiusMeters)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return model.Clone(v), nil
	}
	c.tier.Put(ctx, k, v)
	return model.Clone(v), nil
}
