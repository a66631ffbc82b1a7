package cache

import (
	"context"

	"restroom-api/internal/metrics"
	"restroom-api/internal/model"
)

// 文档注释：多级缓存链
// 背景：按顺序读取（快的在前），慢层命中后回填更快的层；写入同时落到所有层。
// 约束：nil 层被忽略；零层链始终未命中。
type Chain struct {
	provider string
	tiers    []Tier
}

func NewChain(provider string, tiers ...Tier) *Chain {
	c := &Chain{provider: provider}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Get(ctx context.Context, k Key) ([]model.Candidate, bool) {
	for i, t := range c.tiers {
		v, ok := t.Get(ctx, k)
		if !ok {
			metrics.CacheMissesTotal.WithLabelValues(c.provider, t.Name()).Inc()
			continue
		}
		metrics.CacheHitsTotal.WithLabelValues(c.provider, t.Name()).Inc()
		for j := 0; j < i; j++ {
			c.tiers[j].Put(ctx, k, v)
		}
		return v, true
	}
	return nil, false
}

func (c *Chain) Put(ctx context.Context, k Key, v []model.Candidate) {
	for _, t := range c.tiers {
		t.Put(ctx, k, v)
	}
}
