// 包 signal：最新值单元（发布/订阅），用于对外暴露会话状态（结果、阶段、错误、位置、筛选）
package signal

import "sync"

// 文档注释：最新值单元
// 背景：写入是整体替换；订阅者先收到订阅时的当前值，之后按写入顺序收到每一次更新。
// 约束：每个订阅者独立排队，慢订阅者不阻塞写入方与其他订阅者；取消后通道被关闭。
type Cell[T any] struct {
	mu   sync.Mutex
	v    T
	next uint64
	subs map[uint64]*Subscription[T]
}

// New：带初值构造
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{v: initial, subs: make(map[uint64]*Subscription[T])}
}

// Get：当前值
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set：替换当前值并通知全部订阅者
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
	for _, s := range c.subs {
		s.push(v)
	}
}

// Update：在锁内基于旧值计算新值
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = fn(c.v)
	for _, s := range c.subs {
		s.push(c.v)
	}
	return c.v
}

// Subscribe：返回可取消的订阅；首个元素是当前值
func (c *Cell[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	out := make(chan T)
	s := &Subscription[T]{
		C:      out,
		out:    out,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.cancel = func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	s.push(c.v)
	c.subs[id] = s
	go s.pump()
	return s
}

// Subscribers：当前订阅数
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Subscription：单个订阅
type Subscription[T any] struct {
	C <-chan T

	out    chan T
	mu     sync.Mutex
	queue  []T
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
	cancel func()
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}

// Cancel：取消订阅，可重复调用
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}
