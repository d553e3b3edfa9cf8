package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标集合。InitMetrics 注册后才可使用；重复调用只注册一次（方便测试）。
var (
	HTTPRequestsTotal *prometheus.CounterVec

	HTTPRequestDuration prometheus.Histogram

	AuthFailureTotal prometheus.Counter

	RateLimitedTotal prometheus.Counter

	TodoCreatedTotal prometheus.Counter

	TodoDeletedTotal prometheus.Counter

	initOnce sync.Once
)

// InitMetrics 注册 Prometheus 指标。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todohub_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todohub_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		})

		AuthFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todohub_auth_failure_total",
			Help: "Rejected requests: missing, invalid, expired or revoked tokens and bad credentials.",
		})

		RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todohub_rate_limited_total",
			Help: "Requests rejected by the login/register rate limiter.",
		})

		TodoCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todohub_todo_created_total",
			Help: "Todos created.",
		})

		TodoDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todohub_todo_deleted_total",
			Help: "Todos deleted.",
		})

		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthFailureTotal,
			RateLimitedTotal,
			TodoCreatedTotal,
			TodoDeletedTotal,
		)
	})
}

// ObserveRequest 记录一次 HTTP 请求的指标。
func ObserveRequest(method, path string, status int, latency time.Duration) {
	if HTTPRequestsTotal == nil {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.Observe(latency.Seconds())
}

// 下面的 Inc 封装对未初始化指标做空操作，单测里不强制注册。

func IncAuthFailure() {
	if AuthFailureTotal != nil {
		AuthFailureTotal.Inc()
	}
}

func IncRateLimited() {
	if RateLimitedTotal != nil {
		RateLimitedTotal.Inc()
	}
}

func IncTodoCreated() {
	if TodoCreatedTotal != nil {
		TodoCreatedTotal.Inc()
	}
}

func IncTodoDeleted() {
	if TodoDeletedTotal != nil {
		TodoDeletedTotal.Inc()
	}
}
