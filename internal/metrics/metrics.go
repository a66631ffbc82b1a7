package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2500, 5000}

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_provider_requests_total",
		Help: "Total outbound provider requests",
	}, []string{"provider"})
	ProviderSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_provider_success_total",
		Help: "Total outbound provider successes",
	}, []string{"provider"})
	ProviderFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_provider_fail_total",
		Help: "Total outbound provider failures (transport, status or parse)",
	}, []string{"provider"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restroom_provider_duration_ms",
		Help:    "Outbound provider call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"provider"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_cache_hits_total",
		Help: "Result cache hits by provider and tier",
	}, []string{"provider", "tier"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_cache_misses_total",
		Help: "Result cache misses by provider and tier",
	}, []string{"provider", "tier"})
	PipelinePublishTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restroom_pipeline_publish_total",
		Help: "Total published result lists",
	})
	PipelineStaleDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restroom_pipeline_stale_drops_total",
		Help: "Completions discarded because a newer generation superseded them",
	})
	SubscriptionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restroom_subscription_errors_total",
		Help: "Live store subscriptions closed with an error",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restroom_http_requests_total",
		Help: "HTTP requests by method and status",
	}, []string{"method", "status"})
	HTTPDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "restroom_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: durationBuckets,
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restroom_rate_limited_total",
		Help: "Inbound requests rejected by the token bucket",
	})
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderSuccessTotal,
		ProviderFailTotal,
		ProviderDurationMs,
		CacheHitsTotal,
		CacheMissesTotal,
		PipelinePublishTotal,
		PipelineStaleDropsTotal,
		SubscriptionErrorsTotal,
		HTTPRequestsTotal,
		HTTPDurationMs,
		RateLimitedTotal,
	)
}

// ObserveProvider：一次出站调用的计数与耗时
func ObserveProvider(provider string, start time.Time, err error) {
	ProviderRequestsTotal.WithLabelValues(provider).Inc()
	if err != nil {
		ProviderFailTotal.WithLabelValues(provider).Inc()
	} else {
		ProviderSuccessTotal.WithLabelValues(provider).Inc()
	}
	ProviderDurationMs.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveHTTP：与 logger.AccessMiddleware 的 observe 回调签名一致
func ObserveHTTP(r *http.Request, status int, dur time.Duration) {
	HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	HTTPDurationMs.Observe(float64(dur.Milliseconds()))
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
