package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有指标注册在独立的 Registry 上，测试中可以任意创建多个实例。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 上游调用指标
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	StreamsActive    prometheus.Gauge

	// 内容指标
	ContentFallbacks *prometheus.CounterVec

	// 错误与限流指标
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec

	// 系统指标
	SystemUptime prometheus.GaugeFunc
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	started := time.Now()

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stealthmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stealthmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stealthmail_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stealthmail_upstream_requests_total",
				Help: "Total number of calls to upstream providers",
			},
			[]string{"provider", "operation", "outcome"},
		),

		UpstreamRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stealthmail_upstream_request_duration_seconds",
				Help:    "Upstream call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stealthmail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stealthmail_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted",
			},
		),

		StreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stealthmail_inbox_streams_active",
				Help: "Number of open inbox websocket streams",
			},
		),

		ContentFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stealthmail_content_fallbacks_total",
				Help: "Total number of article responses served from fallback content",
			},
			[]string{"operation", "reason"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stealthmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stealthmail_rate_limit_blocks_total",
				Help: "Total number of requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		SystemUptime: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "stealthmail_system_uptime_seconds",
				Help: "Process uptime in seconds",
			},
			func() float64 { return time.Since(started).Seconds() },
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// ObserveUpstream 记录一次上游调用
func (m *Metrics) ObserveUpstream(provider, operation, outcome string, elapsed time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordContentFallback 记录一次兜底内容响应
func (m *Metrics) RecordContentFallback(operation, reason string) {
	m.ContentFallbacks.WithLabelValues(operation, reason).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(limiter string) {
	m.RateLimitBlocks.WithLabelValues(limiter).Inc()
}

// StreamOpened 收件箱推送连接建立
func (m *Metrics) StreamOpened() {
	m.StreamsActive.Inc()
}

// StreamClosed 收件箱推送连接关闭
func (m *Metrics) StreamClosed() {
	m.StreamsActive.Dec()
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus 抓取端点
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
