// 包 refuge：社区卫生间登记数据源适配（单次 GET，扁平数组）
package refuge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/metrics"
	"restroom-api/internal/model"
)

const (
	ProviderName   = "refuge"
	DefaultBaseURL = "https://www.refugerestrooms.org"
	byLocationPath = "/api/v1/restrooms/by_location"
	defaultName    = "Public Restroom"
)

// Config：客户端配置
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
}

// Client：社区登记适配器
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Retries > 0 {
		hc.SetRetryCount(cfg.Retries).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
	}
	return &Client{http: hc, log: logger.Or(cfg.Logger)}
}

func (c *Client) Name() string { return ProviderName }

// record：登记接口单条记录；可选字段用指针区分缺失
type record struct {
	ID            int64    `json:"id"`
	Name          *string  `json:"name"`
	Street        string   `json:"street"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Unisex        bool     `json:"unisex"`
	ChangingTable bool     `json:"changing_table"`
	Accessible    bool     `json:"accessible"`
	Approved      *bool    `json:"approved"`
}

func (r record) toCandidate() (model.Candidate, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return model.Candidate{}, false
	}
	loc := model.Coordinates{Lat: *r.Latitude, Lng: *r.Longitude}
	if !loc.Valid() {
		return model.Candidate{}, false
	}
	name := defaultName
	if r.Name != nil && *r.Name != "" {
		name = *r.Name
	}
	approved := true
	if r.Approved != nil {
		approved = *r.Approved
	}
	return model.Candidate{
		ID:                     "refuge_" + strconv.FormatInt(r.ID, 10),
		Name:                   name,
		Address:                r.Street,
		Location:               loc,
		Category:               model.CategoryPublicToilet,
		IsPublic:               true,
		IsFree:                 true,
		IsGenderNeutral:        r.Unisex,
		IsBabyFriendly:         r.ChangingTable,
		HasChangingTable:       r.ChangingTable,
		IsWheelchairAccessible: r.Accessible,
		Source:                 model.SourceRegistry,
		SubmittedBy:            model.RegistrySubmitter,
		IsApproved:             approved,
	}, true
}

// 文档注释：检索中心点半径内的登记记录
// 约束：网络、状态码或解析失败均返回错误且不返回部分数据；几何无效的记录静默丢弃；结果按距离升序
func (c *Client) Search(ctx context.Context, center model.Coordinates, radiusMeters int) ([]model.Candidate, error) {
	t0 := time.Now()
	c.log.Debug("refuge_req", "lat", center.Lat, "lng", center.Lng, "radius", radiusMeters)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    strconv.FormatFloat(center.Lat, 'f', -1, 64),
			"lng":    strconv.FormatFloat(center.Lng, 'f', -1, 64),
			"radius": strconv.Itoa(radiusMeters),
		}).
		Get(byLocationPath)
	if err != nil {
		metrics.ObserveProvider(ProviderName, t0, err)
		c.log.Error("refuge_http_error", "err", err)
		return nil, fmt.Errorf("refuge request: %w", err)
	}
	if resp.IsError() {
		err = fmt.Errorf("refuge http status %d", resp.StatusCode())
		metrics.ObserveProvider(ProviderName, t0, err)
		c.log.Error("refuge_http_error", "status", resp.StatusCode())
		return nil, err
	}
	var recs []record
	if err := json.Unmarshal(resp.Body(), &recs); err != nil {
		metrics.ObserveProvider(ProviderName, t0, err)
		c.log.Error("refuge_decode_error", "err", err)
		return nil, fmt.Errorf("refuge decode: %w", err)
	}
	metrics.ObserveProvider(ProviderName, t0, nil)

	out := make([]model.Candidate, 0, len(recs))
	for _, r := range recs {
		cand, ok := r.toCandidate()
		if !ok {
			continue
		}
		d := geo.DistanceMeters(center, cand.Location)
		if d > float64(radiusMeters) {
			continue
		}
		out = append(out, cand.WithDistance(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceFromUser < out[j].DistanceFromUser })
	c.log.Debug("refuge_resp", "raw", len(recs), "kept", len(out), "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}
