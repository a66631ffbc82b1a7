package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"restroom-api/internal/model"
)

// DefaultCapacity：进程内条目上限
const DefaultCapacity = 1024

type entry struct {
	k          Key
	v          []model.Candidate
	insertedAt time.Time
}

func (e *entry) isExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.insertedAt) >= ttl
}

// 文档注释：进程内 LRU 缓存（按写入时间计算过期）
// 背景：同一位置在短周期内会被反复查询（移动端抖动、筛选切换），进程内命中可省去整轮出站请求。
// 约束：Put 覆盖旧值并顺带清理过期条目；超过容量按最久未用淘汰；返回值为副本。
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	now  func() time.Time
	lst  *list.List
	dict map[Key]*list.Element
}

// MemoryOption：构造选项
type MemoryOption func(*Memory)

// WithClock：注入时钟（测试用）
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithCapacity：条目上限，<=0 忽略
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.cap = n
		}
	}
}

func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{ttl: ttl, cap: DefaultCapacity, now: time.Now, lst: list.New(), dict: make(map[Key]*list.Element)}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, k Key) ([]model.Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.dict[k]
	if !ok {
		return nil, false
	}
	it := e.Value.(*entry)
	if it.isExpired(m.now(), m.ttl) {
		m.lst.Remove(e)
		delete(m.dict, k)
		return nil, false
	}
	m.lst.MoveToFront(e)
	return model.Clone(it.v), true
}

func (m *Memory) Put(_ context.Context, k Key, v []model.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.dict[k]; ok {
		e.Value = &entry{k: k, v: model.Clone(v), insertedAt: now}
		m.lst.MoveToFront(e)
	} else {
		m.dict[k] = m.lst.PushFront(&entry{k: k, v: model.Clone(v), insertedAt: now})
	}
	m.sweep(now)
	for m.lst.Len() > m.cap {
		back := m.lst.Back()
		delete(m.dict, back.Value.(*entry).k)
		m.lst.Remove(back)
	}
}

// sweep：从最久未用端清理过期条目；调用方持锁
func (m *Memory) sweep(now time.Time) {
	for e := m.lst.Back(); e != nil; {
		prev := e.Prev()
		if it := e.Value.(*entry); it.isExpired(now, m.ttl) {
			delete(m.dict, it.k)
			m.lst.Remove(e)
		}
		e = prev
	}
}

// Len：当前条目数（含尚未清理的过期条目）
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lst.Len()
}
