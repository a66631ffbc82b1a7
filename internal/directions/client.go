// 包 directions：路线规划数据源适配（驾车/步行/骑行，分步说明与路线折线）
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"restroom-api/internal/geo"
	"restroom-api/internal/logger"
	"restroom-api/internal/metrics"
	"restroom-api/internal/model"
)

const (
	ProviderName   = "directions"
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions"
)

var (
	ErrMissingKey  = errors.New("directions: missing api key")
	ErrNoRoute     = errors.New("directions: no routes found")
	ErrInvalidMode = errors.New("directions: unknown travel mode")
)

// Mode：出行方式
type Mode string

const (
	ModeDriving   Mode = "driving"
	ModeWalking   Mode = "walking"
	ModeBicycling Mode = "bicycling"
)

// ParseMode：空串取驾车
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeDriving, nil
	case ModeDriving, ModeWalking, ModeBicycling:
		return m, nil
	}
	return "", ErrInvalidMode
}

// StatusError：上游返回非 OK 状态
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return "directions: " + e.Message
	}
	return "directions api error: " + e.Status
}

// Step：单步导航
type Step struct {
	Instruction string            `json:"instruction"`
	Distance    string            `json:"distance"`
	Duration    string            `json:"duration"`
	Maneuver    string            `json:"maneuver,omitempty"`
	Start       model.Coordinates `json:"startLocation"`
	End         model.Coordinates `json:"endLocation"`
}

// Route：一条路线（取首段 leg）
type Route struct {
	Distance        string              `json:"distance"`
	Duration        string              `json:"duration"`
	DurationSeconds int                 `json:"durationSeconds"`
	Steps           []Step              `json:"steps"`
	Polyline        string              `json:"polyline"`
	Path            []model.Coordinates `json:"path"`
	Start           model.Coordinates   `json:"startLocation"`
	End             model.Coordinates   `json:"endLocation"`
}

// Config：客户端配置
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	http *resty.Client
	key  string
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
	return &Client{http: hc, key: cfg.APIKey, log: logger.Or(cfg.Logger)}
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p latLng) coords() model.Coordinates { return model.Coordinates{Lat: p.Lat, Lng: p.Lng} }

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Distance      textValue `json:"distance"`
			Duration      textValue `json:"duration"`
			StartLocation latLng    `json:"start_location"`
			EndLocation   latLng    `json:"end_location"`
			Steps         []struct {
				HTMLInstructions string    `json:"html_instructions"`
				Distance         textValue `json:"distance"`
				Duration         textValue `json:"duration"`
				Maneuver         string    `json:"maneuver"`
				StartLocation    latLng    `json:"start_location"`
				EndLocation      latLng    `json:"end_location"`
			} `json:"steps"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML：去掉分步说明中的 HTML 标签
func StripHTML(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

func coordParam(c model.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Route：首选路线
func (c *Client) Route(ctx context.Context, origin, dest model.Coordinates, mode Mode) (Route, error) {
	routes, err := c.routes(ctx, origin, dest, mode, false)
	if err != nil {
		return Route{}, err
	}
	return routes[0], nil
}

// Alternatives：包含备选路线的全部结果
func (c *Client) Alternatives(ctx context.Context, origin, dest model.Coordinates, mode Mode) ([]Route, error) {
	return c.routes(ctx, origin, dest, mode, true)
}

func (c *Client) routes(ctx context.Context, origin, dest model.Coordinates, mode Mode, alternatives bool) ([]Route, error) {
	if c.key == "" {
		return nil, ErrMissingKey
	}
	if mode == "" {
		mode = ModeDriving
	}
	t0 := time.Now()
	params := map[string]string{
		"origin":      coordParam(origin),
		"destination": coordParam(dest),
		"mode":        string(mode),
		"key":         c.key,
	}
	if alternatives {
		params["alternatives"] = "true"
	}
	c.log.Debug("directions_req", "mode", mode, "alternatives", alternatives)
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get("/json")
	if err != nil {
		metrics.ObserveProvider(ProviderName, t0, err)
		c.log.Error("directions_http_error", "err", err)
		return nil, fmt.Errorf("directions request: %w", err)
	}
	if resp.IsError() {
		err = fmt.Errorf("directions http status %d", resp.StatusCode())
		metrics.ObserveProvider(ProviderName, t0, err)
		return nil, err
	}
	var body apiResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.ObserveProvider(ProviderName, t0, err)
		return nil, fmt.Errorf("directions decode: %w", err)
	}
	if body.Status != "OK" {
		err := &StatusError{Status: body.Status, Message: body.ErrorMessage}
		if body.Status == "ZERO_RESULTS" {
			metrics.ObserveProvider(ProviderName, t0, nil)
			return nil, ErrNoRoute
		}
		metrics.ObserveProvider(ProviderName, t0, err)
		c.log.Warn("directions_status", "status", body.Status, "msg", body.ErrorMessage)
		return nil, err
	}
	metrics.ObserveProvider(ProviderName, t0, nil)

	out := make([]Route, 0, len(body.Routes))
	for _, r := range body.Routes {
		if len(r.Legs) == 0 {
			continue
		}
		leg := r.Legs[0]
		route := Route{
			Distance:        leg.Distance.Text,
			Duration:        leg.Duration.Text,
			DurationSeconds: leg.Duration.Value,
			Polyline:        r.OverviewPolyline.Points,
			Start:           leg.StartLocation.coords(),
			End:             leg.EndLocation.coords(),
			Steps:           make([]Step, 0, len(leg.Steps)),
		}
		for _, s := range leg.Steps {
			route.Steps = append(route.Steps, Step{
				Instruction: StripHTML(s.HTMLInstructions),
				Distance:    s.Distance.Text,
				Duration:    s.Duration.Text,
				Maneuver:    s.Maneuver,
				Start:       s.StartLocation.coords(),
				End:         s.EndLocation.coords(),
			})
		}
		path, err := geo.DecodePolyline(route.Polyline)
		if err != nil {
			c.log.Warn("directions_polyline_error", "err", err)
		}
		route.Path = path
		out = append(out, route)
	}
	if len(out) == 0 {
		return nil, ErrNoRoute
	}
	c.log.Debug("directions_resp", "routes", len(out), "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}
