// 包 api：对外 HTTP 接口（附近检索、实时推送、记录与评价、路线规划），基于 chi 路由
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"restroom-api/internal/aggregator"
	"restroom-api/internal/directions"
	"restroom-api/internal/location"
	"restroom-api/internal/logger"
	"restroom-api/internal/metrics"
	"restroom-api/internal/middleware"
	"restroom-api/internal/records"
	"restroom-api/internal/store"
)

// Config：处理器依赖
type Config struct {
	Pipeline            *aggregator.Pipeline
	Records             *records.Service
	Directions          *directions.Client
	GeoIP               *location.GeoIP
	Redis               *redis.Client
	Logger              *slog.Logger
	DefaultRadiusMeters int
	MoveThresholdMeters float64
	RateLimitQPS        int
	// LiveMaxDuration：单个实时连接的最长存活时间，0 表示不限
	LiveMaxDuration time.Duration
}

// Handler：HTTP 处理器集合
type Handler struct {
	pipeline      *aggregator.Pipeline
	records       *records.Service
	directions    *directions.Client
	geoip         *location.GeoIP
	rc            *redis.Client
	log           *slog.Logger
	defaultRadius int
	moveThreshold float64
	rateLimitQPS  int
	liveMax       time.Duration
}

func NewHandler(cfg Config) *Handler {
	radius := cfg.DefaultRadiusMeters
	if radius <= 0 {
		radius = aggregator.DefaultRadiusMeters
	}
	move := cfg.MoveThresholdMeters
	if move <= 0 {
		move = aggregator.DefaultMoveThresholdMeters
	}
	return &Handler{
		pipeline:      cfg.Pipeline,
		records:       cfg.Records,
		directions:    cfg.Directions,
		geoip:         cfg.GeoIP,
		rc:            cfg.Redis,
		log:           logger.Or(cfg.Logger),
		defaultRadius: radius,
		moveThreshold: move,
		rateLimitQPS:  cfg.RateLimitQPS,
		liveMax:       cfg.LiveMaxDuration,
	}
}

// Register：挂载业务路由
func (h *Handler) Register(r chi.Router) {
	r.Get("/restrooms/nearby", h.nearbyHandler())
	r.Get("/restrooms/live", h.liveHandler())
	r.Post("/restrooms", h.createHandler())
	r.Get("/restrooms/{id}", h.getHandler())
	r.Patch("/restrooms/{id}", h.patchHandler())
	r.Delete("/restrooms/{id}", h.deleteHandler())
	r.Post("/restrooms/{id}/reviews", h.addReviewHandler())
	r.Get("/restrooms/{id}/reviews", h.listReviewsHandler())
	r.Get("/directions", h.directionsHandler())
	r.Get("/locate", h.locateHandler())
}

// 文档注释：构建完整路由
// 背景：健康检查与指标不经过限流；业务接口挂在 apiBase 下并统一限流。
func (h *Handler) Routes(apiBase string) http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(logger.AccessMiddleware(h.log, metrics.ObserveHTTP))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(h.log, w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())

	if apiBase == "" {
		apiBase = "/"
	}
	router.Route(apiBase, func(r chi.Router) {
		r.Use(middleware.RateLimit(h.rateLimitQPS))
		h.Register(r)
	})
	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(l *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && l != nil {
		l.Debug("json_encode_error", "err", err)
	}
}

func writeError(l *slog.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(l, w, status, errorResponse{Error: msg})
}

// statusFor：业务错误到状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, records.ErrInvalidLocation),
		errors.Is(err, records.ErrInvalidRating),
		errors.Is(err, records.ErrMissingParent),
		errors.Is(err, directions.ErrInvalidMode),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, location.ErrInvalidIP):
		return http.StatusBadRequest
	case errors.Is(err, errNoLocation), errors.Is(err, location.ErrNoLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, location.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, directions.ErrNoRoute):
		return http.StatusNotFound
	case errors.Is(err, directions.ErrMissingKey):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.log.Error("http_handler_error", "path", r.URL.Path, "err", err)
		writeError(h.log, w, status, "internal error")
		return
	}
	writeError(h.log, w, status, err.Error())
}
