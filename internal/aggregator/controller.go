package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"restroom-api/internal/filter"
	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/metrics"
	"restroom-api/internal/model"
	"restroom-api/internal/signal"
	"restroom-api/internal/store"
)

// DefaultMoveThresholdMeters：位置流中小于该距离的移动不触发重新检索
const DefaultMoveThresholdMeters = 25.0

var (
	ErrStopped         = errors.New("aggregator: controller stopped")
	ErrInvalidLocation = errors.New("aggregator: invalid location")
	ErrInvalidRadius   = errors.New("aggregator: radius must be positive")
)

// Phase：会话阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "idle"
	}
}

// Option：控制器选项
type Option func(*Controller)

// WithMoveThreshold：位置流的移动阈值（米）
func WithMoveThreshold(m float64) Option {
	return func(c *Controller) {
		if m >= 0 {
			c.moveThreshold = m
		}
	}
}

// WithRadius：初始检索半径（米）
func WithRadius(r int) Option {
	return func(c *Controller) {
		if r > 0 {
			c.radius = r
		}
	}
}

// WithFilter：初始筛选条件
func WithFilter(f model.FilterSpec) Option {
	return func(c *Controller) { c.Filter.Set(f.Normalize()) }
}

// 文档注释：实时聚合会话控制器
// 背景：位置或半径变化触发完整重取（两路数据源 + 新的存储订阅）；筛选变化只对最近一次融合结果本地重算。
// 约束：
// - 每次完整触发递增代号并取消上一代上下文；旧代的完成与推送一律丢弃；
// - 融合与筛选在 mu 内串行执行，同一会话不会并发发布；
// - 数据源就绪前收到的存储推送只暂存，不单独发布；
// - 订阅出错时保留上一次结果；数据源未就绪则阶段保持 Loading，错误随首次发布一并给出。
type Controller struct {
	Results  *signal.Cell[[]model.Candidate]
	Phase    *signal.Cell[Phase]
	Err      *signal.Cell[error]
	Location *signal.Cell[model.Coordinates]
	Filter   *signal.Cell[model.FilterSpec]

	pipeline      *Pipeline
	log           *slog.Logger
	moveThreshold float64

	mu       sync.Mutex
	radius   int
	gen      uint64
	cancel   context.CancelFunc
	fetched  Fetched
	ready    bool
	subErr   error
	user     []model.Candidate
	stopped  bool
	root     context.Context
	stopRoot context.CancelFunc
	wg       sync.WaitGroup
}

func NewController(p *Pipeline, l *slog.Logger, opts ...Option) *Controller {
	root, stop := context.WithCancel(context.Background())
	c := &Controller{
		Results:       signal.New[[]model.Candidate](nil),
		Phase:         signal.New(PhaseIdle),
		Err:           signal.New[error](nil),
		Location:      signal.New(model.Coordinates{}),
		Filter:        signal.New(model.DefaultFilterSpec()),
		pipeline:      p,
		log:           logger.Or(l),
		moveThreshold: DefaultMoveThresholdMeters,
		radius:        DefaultRadiusMeters,
		root:          root,
		stopRoot:      stop,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Radius：当前检索半径
func (c *Controller) Radius() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radius
}

// 文档注释：消费位置流
// 约束：首个有效位置立即触发；之后仅当相对上次触发位置移动超过阈值时触发；ctx 结束、通道关闭或 Stop 后退出；Stop 之后调用不做任何事。
func (c *Controller) Start(ctx context.Context, locations <-chan model.Coordinates) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		var last model.Coordinates
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.root.Done():
				return
			case loc, ok := <-locations:
				if !ok {
					return
				}
				if !loc.Valid() {
					c.log.Debug("location_ignored_invalid")
					continue
				}
				if last.Valid() && !geo.Moved(last, loc, c.moveThreshold) {
					continue
				}
				last = loc
				if err := c.SetLocation(loc); err != nil {
					return
				}
			}
		}
	}()
}

// SetLocation：更新位置并完整重取
func (c *Controller) SetLocation(loc model.Coordinates) error {
	if !loc.Valid() {
		return ErrInvalidLocation
	}
	c.Location.Set(loc)
	return c.trigger()
}

// SetRadius：更新半径；已有位置时完整重取
func (c *Controller) SetRadius(r int) error {
	if r <= 0 {
		return ErrInvalidRadius
	}
	c.mu.Lock()
	c.radius = r
	c.mu.Unlock()
	if !c.Location.Get().Valid() {
		return nil
	}
	return c.trigger()
}

// SetFilter：替换筛选条件并对最近一次融合输入本地重算，不产生数据源请求
func (c *Controller) SetFilter(spec model.FilterSpec) error {
	c.Filter.Set(spec.Normalize())
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.ready {
		c.publishLocked()
	}
	return nil
}

// Refresh：以当前位置与半径重新检索
func (c *Controller) Refresh() error {
	if !c.Location.Get().Valid() {
		return ErrInvalidLocation
	}
	return c.trigger()
}

func (c *Controller) trigger() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.root)
	c.cancel = cancel
	c.fetched = Fetched{}
	c.user = nil
	c.ready = false
	c.subErr = nil
	center, radius := c.Location.Get(), c.radius
	c.Err.Set(nil)
	c.Phase.Set(PhaseLoading)
	c.wg.Add(2)
	c.mu.Unlock()

	c.log.Debug("pipeline_trigger", "gen", gen, "lat", center.Lat, "lng", center.Lng, "radius", radius)
	go c.runProviders(ctx, gen, center, radius)
	go c.runSubscription(ctx, gen, center, radius)
	return nil
}

func (c *Controller) runProviders(ctx context.Context, gen uint64, center model.Coordinates, radius int) {
	defer c.wg.Done()
	f := c.pipeline.FetchProviders(ctx, center, radius)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.stopped {
		metrics.PipelineStaleDropsTotal.Inc()
		c.log.Debug("pipeline_stale_drop", "gen", gen, "current", c.gen, "stage", "providers")
		return
	}
	c.fetched = f
	c.ready = true
	c.publishLocked()
	if c.subErr != nil {
		c.Err.Set(c.subErr)
		c.subErr = nil
	}
}

func (c *Controller) runSubscription(ctx context.Context, gen uint64, center model.Coordinates, radius int) {
	defer c.wg.Done()
	s := c.pipeline.Store()
	if s == nil {
		return
	}
	ch, err := s.SubscribeNearby(ctx, center, radius)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("subscription_open_error", "err", err)
		snap, serr := c.pipeline.Snapshot(ctx, center, radius)
		c.apply(gen, store.Update{Candidates: snap, Err: errors.Join(err, serr)})
		return
	}
	for u := range ch {
		if !c.apply(gen, u) {
			return
		}
	}
}

// apply：处理一次存储推送；返回 false 表示本代订阅应结束
func (c *Controller) apply(gen uint64, u store.Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.stopped {
		metrics.PipelineStaleDropsTotal.Inc()
		c.log.Debug("pipeline_stale_drop", "gen", gen, "current", c.gen, "stage", "store")
		return false
	}
	if u.Err != nil {
		c.log.Warn("subscription_error", "gen", gen, "err", u.Err)
		metrics.SubscriptionErrorsTotal.Inc()
		if u.Candidates != nil {
			c.user = u.Candidates
		}
		if !c.ready {
			c.subErr = u.Err
			return false
		}
		c.publishLocked()
		c.Err.Set(u.Err)
		return false
	}
	c.user = u.Candidates
	if c.ready {
		c.publishLocked()
	}
	return true
}

// publishLocked：调用方持有 mu
func (c *Controller) publishLocked() {
	res := Compose(c.fetched, c.user, c.Filter.Get())
	c.Results.Set(res.Published())
	c.Phase.Set(PhaseReady)
	metrics.PipelinePublishTotal.Inc()
	c.log.Debug("pipeline_publish", "gen", c.gen, "passing", len(res.Passing), "filtered", len(res.FilteredOut))
}

// LastResult：按当前筛选条件重算最近一次融合结果（不发布）
func (c *Controller) LastResult() filter.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Compose(c.fetched, c.user, c.Filter.Get())
}

// Stop：同步取消在途工作、关闭订阅并等待全部协程退出；可重复调用
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	c.stopRoot()
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Debug("controller_stopped")
}
