// 包 places：商业地点检索适配（附近检索 + 文本检索），归一化为厕所候选
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/metrics"
	"restroom-api/internal/middleware"
	"restroom-api/internal/model"
)

const (
	ProviderName     = "places"
	DefaultBaseURL   = "https://maps.googleapis.com/maps/api/place"
	DefaultMaxPages  = 3
	DefaultPageDelay = 2 * time.Second
	DefaultLimit     = 30
)

// ErrMissingKey：未配置服务端密钥
var ErrMissingKey = errors.New("places: missing api key")

// StatusError：接口返回非 OK/ZERO_RESULTS 状态
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return "places status " + e.Status + ": " + e.Message
	}
	return "places status " + e.Status
}

// Config：客户端配置，零值字段取默认
type Config struct {
	BaseURL    string
	APIKey     string
	QPS        int
	MaxPages   int
	PageDelay  time.Duration
	Limit      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client：商业地点适配器（无状态，可并发使用）
type Client struct {
	base     string
	key      string
	maxPages int
	delay    time.Duration
	limit    int
	hc       *http.Client
	limiter  *middleware.TokenBucket
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Client {
	c := &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		key:      cfg.APIKey,
		maxPages: cfg.MaxPages,
		delay:    cfg.PageDelay,
		limit:    cfg.Limit,
		hc:       cfg.HTTPClient,
		limiter:  middleware.NewTokenBucket(cfg.QPS),
		log:      logger.Or(cfg.Logger),
		sleep:    sleepCtx,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}
	if c.delay <= 0 {
		c.delay = DefaultPageDelay
	}
	if c.limit <= 0 {
		c.limit = DefaultLimit
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 5 * time.Second}
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

type queryKind int

const (
	kindNearby queryKind = iota
	kindText
)

type query struct {
	kind  queryKind
	value string
}

func (q query) String() string {
	if q.kind == kindNearby {
		return "type:" + q.value
	}
	return "text:" + q.value
}

func allQueries() []query {
	out := make([]query, 0, len(NearbyTypes)+len(TextQueries))
	for _, t := range NearbyTypes {
		out = append(out, query{kind: kindNearby, value: t})
	}
	for _, t := range TextQueries {
		out = append(out, query{kind: kindText, value: t})
	}
	return out
}

// 文档注释：检索中心点半径内的候选
// 背景：按类型并发附近检索，同时并发一批文本检索；每个子查询独立失败（记日志、计指标、按零结果处理）。
// 约束：仅当全部子查询失败时返回错误（携带按查询顺序的首个错误）；结果已按关键字过滤、去重、按半径截断、排序并截取前 limit 条。
func (c *Client) Search(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	if c.key == "" {
		return nil, ErrMissingKey
	}
	if !center.Valid() {
		return nil, fmt.Errorf("places: invalid center %v", center)
	}
	qs := allQueries()
	results := make([][]model.Candidate, len(qs))
	errs := make([]error, len(qs))
	var wg sync.WaitGroup
	for i, q := range qs {
		wg.Add(1)
		go func(i int, q query) {
			defer wg.Done()
			results[i], errs[i] = c.fetchAll(ctx, q, center, radiusMeters)
			if errs[i] != nil {
				c.log.Warn("places_query_error", "query", q.String(), "err", errs[i])
			}
		}(i, q)
	}
	wg.Wait()

	var firstErr error
	failed := 0
	var merged []model.Candidate
	for i := range qs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		merged = append(merged, results[i]...)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("places: search cancelled: %w", err)
	}
	if failed == len(qs) {
		return nil, fmt.Errorf("places: all %d queries failed: %w", failed, firstErr)
	}
	out := c.postProcess(merged, center, radiusMeters)
	c.log.Debug("places_done", "raw", len(merged), "kept", len(out), "failed_queries", failed)
	return out, nil
}

// postProcess：去重、坐标与关键字过滤、距离截断、排序、截取
func (c *Client) postProcess(in []model.Candidate, center model.Coordinates, radiusMeters int) []model.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Candidate, 0, len(in))
	for _, p := range in {
		if _, dup := seen[p.CommercialPlaceID]; dup {
			continue
		}
		seen[p.CommercialPlaceID] = struct{}{}
		if !p.Location.Valid() || !Plausible(p.Name, p.Address) {
			continue
		}
		d := geo.DistanceMeters(center, p.Location)
		if d > float64(radiusMeters) {
			continue
		}
		out = append(out, p.WithDistance(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > c.limit {
		out = out[:c.limit]
	}
	return out
}

func less(a, b model.Candidate) bool {
	at, bt := a.Category == model.CategoryPublicToilet, b.Category == model.CategoryPublicToilet
	if at != bt {
		return at
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if a.ReviewCount != b.ReviewCount {
		return a.ReviewCount > b.ReviewCount
	}
	return a.DistanceFromUser < b.DistanceFromUser
}

// fetchAll：单个子查询的全部分页
// 约束：首页失败即返回错误；后续页失败保留已取得的页；续页令牌需等待 delay 后才生效；
// ctx 取消时返回错误而不是已取得的部分页
func (c *Client) fetchAll(ctx context.Context, q query, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	var out []model.Candidate
	token := ""
	for page := 0; page < c.maxPages; page++ {
		if page > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return nil, err
			}
		}
		resp, err := c.fetchPage(ctx, q, center, radiusMeters, token)
		if err != nil {
			if page == 0 || ctx.Err() != nil {
				return nil, err
			}
			c.log.Warn("places_page_error", "query", q.String(), "page", page, "err", err)
			break
		}
		for _, r := range resp.Results {
			if cand, ok := r.toCandidate(); ok {
				out = append(out, cand)
			}
		}
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, q query, center model.Coordinates, radiusMeters int, token string) (*searchResponse, error) {
	v := url.Values{}
	v.Set("location", strconv.FormatFloat(center.Lat, 'f', -1, 64)+","+strconv.FormatFloat(center.Lng, 'f', -1, 64))
	v.Set("radius", strconv.Itoa(radiusMeters))
	v.Set("key", c.key)
	endpoint := "/nearbysearch/json"
	if q.kind == kindNearby {
		v.Set("type", q.value)
	} else {
		endpoint = "/textsearch/json"
		v.Set("query", q.value)
	}
	if token != "" {
		v.Set("pagetoken", token)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	c.log.Debug("places_req", "query", q.String(), "paged", token != "")
	r, err := c.doRequest(req)
	metrics.ObserveProvider(ProviderName, t0, err)
	if err != nil {
		c.log.Error("places_http_error", "query", q.String(), "err", err)
		return nil, err
	}
	c.log.Debug("places_resp", "query", q.String(), "status", r.Status, "results", len(r.Results), "duration_ms", time.Since(t0).Milliseconds())
	return r, nil
}

func (c *Client) doRequest(req *http.Request) (*searchResponse, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places http status %d", resp.StatusCode)
	}
	var r searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("places decode: %w", err)
	}
	switch r.Status {
	case "OK", "ZERO_RESULTS":
		return &r, nil
	}
	return nil, &StatusError{Status: r.Status, Message: r.ErrorMessage}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
