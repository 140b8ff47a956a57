package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stealthmail/backend/internal/health"
)

// APIVersion 对外公布的接口版本
const APIVersion = "1.0.0"

// routeDescriptions 接口文档中的路由说明
var routeDescriptions = map[string]string{
	"POST /api/mail/create":                "Create a temporary email address",
	"GET /api/mail/inbox":                  "Get inbox messages for an email address",
	"GET /api/mail/message/:id":            "Get a specific message by ID",
	"DELETE /api/mail/delete":              "Delete a temporary email address",
	"GET /api/mail/domains":                "List domains offered by the mail provider",
	"GET /api/mail/stream":                 "Stream inbox snapshots over WebSocket",
	"GET /api/articles":                    "List articles with pagination",
	"GET /api/articles/popular":            "List popular articles",
	"GET /api/articles/search":             "Search articles by title and excerpt",
	"GET /api/articles/categories":         "List article categories",
	"GET /api/articles/category/:category": "List articles in a category",
	"GET /api/articles/:id":                "Get a specific article by ID",
	"GET /health":                          "Process status and uptime",
	"GET /health/live":                     "Liveness probe",
	"GET /health/ready":                    "Readiness probe",
	"GET /metrics":                         "Prometheus metrics",
}

// SystemHandler 健康检查、指标与文档
type SystemHandler struct {
	health  *health.HealthChecker
	metrics http.Handler
	routes  func() gin.RoutesInfo
}

// NewSystemHandler 创建系统处理器
//
// routes 在请求时调用，文档总是反映实际注册的路由。
func NewSystemHandler(hc *health.HealthChecker, metrics http.Handler, routes func() gin.RoutesInfo) *SystemHandler {
	return &SystemHandler{health: hc, metrics: metrics, routes: routes}
}

// Health 返回进程状态
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Report())
}

// Root 返回服务横幅
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":       "Stealth Mail API Server",
		"version":       APIVersion,
		"documentation": "/api/docs",
		"endpoints": gin.H{
			"mail":     "/api/mail",
			"articles": "/api/articles",
			"health":   "/health",
		},
	})
}

// Docs 按模块列出已注册的路由
func (h *SystemHandler) Docs(c *gin.Context) {
	sections := map[string]map[string]string{}
	for _, r := range h.routes() {
		if r.Method == http.MethodHead || r.Method == http.MethodOptions {
			continue
		}
		key := r.Method + " " + r.Path
		desc, ok := routeDescriptions[key]
		if !ok {
			continue
		}
		section := docSection(r.Path)
		if sections[section] == nil {
			sections[section] = map[string]string{}
		}
		sections[section][key] = desc
	}

	c.JSON(http.StatusOK, gin.H{
		"title":     "Stealth Mail API Documentation",
		"version":   APIVersion,
		"endpoints": sections,
	})
}

// NotFound 未匹配路由
func (h *SystemHandler) NotFound(c *gin.Context) {
	NotFound(c, "Not found - "+c.Request.URL.RequestURI())
}

// Metrics Prometheus 抓取端点
func (h *SystemHandler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func docSection(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/mail"):
		return "mail"
	case strings.HasPrefix(path, "/api/articles"):
		return "articles"
	default:
		return "system"
	}
}
