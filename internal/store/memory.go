package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"restroom-api/internal/model"
	"restroom-api/internal/signal"
)

// 文档注释：内存存储
// 背景：开发环境与测试的默认实现；变更通过版本号单元广播给订阅者。
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.Candidate
	reviews map[string][]model.Review
	version *signal.Cell[uint64]
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]model.Candidate),
		reviews: make(map[string][]model.Review),
		version: signal.New[uint64](0),
		now:     time.Now,
	}
}

func (m *Memory) bump() {
	m.version.Update(func(v uint64) uint64 { return v + 1 })
}

func (m *Memory) AddRecord(_ context.Context, c model.Candidate) (string, error) {
	c = stripRuntime(c)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := m.now()
	c.SubmittedAt, c.LastUpdated = &now, &now
	m.mu.Lock()
	m.records[c.ID] = c
	m.mu.Unlock()
	m.bump()
	return c.ID, nil
}

func (m *Memory) GetByID(_ context.Context, id string) (model.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.records[id]
	if !ok {
		return model.Candidate{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Update(_ context.Context, id string, p model.Patch) error {
	m.mu.Lock()
	c, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	c = p.Apply(c)
	now := m.now()
	c.LastUpdated = &now
	m.records[id] = c
	m.mu.Unlock()
	m.bump()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.records[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.records, id)
	delete(m.reviews, id)
	m.mu.Unlock()
	m.bump()
	return nil
}

func (m *Memory) FetchNearby(_ context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	m.mu.RLock()
	all := make([]model.Candidate, 0, len(m.records))
	for _, c := range m.records {
		all = append(all, c)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return Nearby(all, center, radiusMeters, NearbyLimit), nil
}

func (m *Memory) SubscribeNearby(ctx context.Context, center model.Coordinates, radiusMeters int) (<-chan Update, error) {
	sub := m.version.Subscribe()
	ch := make(chan Update)
	go func() {
		defer close(ch)
		defer sub.Cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				snap, _ := m.FetchNearby(ctx, center, radiusMeters)
				if !send(ctx, ch, Update{Candidates: snap}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

func (m *Memory) AddReview(_ context.Context, r model.Review) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ParentID]; !ok {
		return "", ErrNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.reviews[r.ParentID] = append(m.reviews[r.ParentID], r)
	return r.ID, nil
}

// ListReviews：按创建时间倒序
func (m *Memory) ListReviews(_ context.Context, parentID string) ([]model.Review, error) {
	m.mu.RLock()
	out := append([]model.Review(nil), m.reviews[parentID]...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
