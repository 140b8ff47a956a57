package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// maxGoroutines 存活检查允许的协程数上限
const maxGoroutines = 10000

// Report /health 返回的进程状态
type Report struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health      healthcheck.Handler
	logger      *zap.Logger
	environment string
	started     time.Time
	now         func() time.Time
}

// NewHealthChecker 创建健康检查器，默认带协程数存活检查
func NewHealthChecker(environment string, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:      healthcheck.NewHandler(),
		logger:      logger,
		environment: environment,
		started:     time.Now(),
		now:         time.Now,
	}
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	return hc
}

// AddReadinessCheck 添加就绪检查
func (hc *HealthChecker) AddReadinessCheck(name string, check healthcheck.Check) {
	hc.health.AddReadinessCheck(name, func() error {
		err := check()
		if err != nil {
			hc.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
		}
		return err
	})
}

// Report 返回进程运行时间与环境
func (hc *HealthChecker) Report() Report {
	now := hc.now()
	return Report{
		Status:      "OK",
		Timestamp:   now.UTC(),
		Uptime:      now.Sub(hc.started).Seconds(),
		Environment: hc.environment,
	}
}

// LiveHandler 存活检查端点
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查端点
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// UpstreamDNSCheck 在后台周期解析上游主机名
//
// 检查结果异步刷新，探针请求不会等待 DNS。
func UpstreamDNSCheck(ctx context.Context, host string, interval time.Duration) healthcheck.Check {
	return healthcheck.AsyncWithContext(ctx, healthcheck.DNSResolveCheck(host, 5*time.Second), interval)
}

// PingCheck 带超时的连接检查，用于 Redis 等依赖
func PingCheck(ping func(ctx context.Context) error, timeout time.Duration) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ping(ctx)
	}
}
