package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker(t *testing.T) {
	t.Run("Report 返回运行时间与环境", func(t *testing.T) {
		hc := NewHealthChecker("production", nil)
		hc.started = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
		hc.now = func() time.Time { return hc.started.Add(90 * time.Second) }

		r := hc.Report()
		assert.Equal(t, "OK", r.Status)
		assert.Equal(t, "production", r.Environment)
		assert.InDelta(t, 90.0, r.Uptime, 0.001)
	})

	t.Run("存活检查通过", func(t *testing.T) {
		hc := NewHealthChecker("test", nil)
		rec := httptest.NewRecorder()
		hc.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("就绪检查失败返回 503", func(t *testing.T) {
		hc := NewHealthChecker("test", nil)
		hc.AddReadinessCheck("redis", PingCheck(func(ctx context.Context) error {
			return errors.New("connection refused")
		}, time.Second))

		rec := httptest.NewRecorder()
		hc.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("PingCheck 带超时", func(t *testing.T) {
		check := PingCheck(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, 10*time.Millisecond)
		assert.ErrorIs(t, check(), context.DeadlineExceeded)
	})
}
