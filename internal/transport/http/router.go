package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stealthmail/backend/internal/config"
	"stealthmail/backend/internal/health"
	"stealthmail/backend/internal/middleware"
	"stealthmail/backend/internal/monitoring"
	"stealthmail/backend/internal/ratelimit"
	"stealthmail/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config   *config.Config
	Mail     MailService
	Articles ArticleService
	Health   *health.HealthChecker
	Metrics  *monitoring.Metrics
	Limiter  ratelimit.Limiter   // 为 nil 时不限流
	Streamer *websocket.Streamer // 为 nil 时不注册收件箱推送
	Logger   *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	production := deps.Config.IsProduction()
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Health == nil {
		deps.Health = health.NewHealthChecker(deps.Config.App.Environment, log)
	}

	router := gin.New()
	// 未配置可信代理时限流按连接对端地址计数
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		log.Warn("invalid trusted proxies, forwarded headers ignored", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(middleware.RecoveryHandler(log, deps.Metrics))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Mailbox-Token", "X-Request-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	mailHandler := NewMailHandler(deps.Mail, deps.Streamer, log, production)
	articleHandler := NewArticleHandler(deps.Articles, log, production)
	systemHandler := NewSystemHandler(deps.Health, deps.Metrics.HTTPHandler(), router.Routes)

	// 健康检查与指标
	router.GET("/", systemHandler.Root)
	router.GET("/health", systemHandler.Health)
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	router.GET("/metrics", systemHandler.Metrics)

	api := router.Group("/api")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter, globalRule(deps.Config.RateLimit), middleware.GlobalRateLimitMessage, log, deps.Metrics))
	}
	api.Use(middleware.MailboxToken())
	{
		api.GET("/docs", systemHandler.Docs)

		// ========== Mail Routes ==========
		mail := api.Group("/mail")
		{
			create := []gin.HandlerFunc{mailHandler.Create}
			if deps.Limiter != nil {
				create = append([]gin.HandlerFunc{
					middleware.RateLimit(deps.Limiter, createRule(deps.Config.RateLimit), middleware.CreateRateLimitMessage, log, deps.Metrics),
				}, create...)
			}
			mail.POST("/create", create...)
			mail.GET("/inbox", mailHandler.Inbox)
			mail.GET("/message/:id", mailHandler.Message)
			mail.DELETE("/delete", mailHandler.Delete)
			mail.GET("/domains", mailHandler.Domains)
			if deps.Streamer != nil {
				mail.GET("/stream", mailHandler.Stream)
			}
		}

		// ========== Article Routes ==========
		articles := api.Group("/articles")
		{
			articles.GET("", articleHandler.List)
			articles.GET("/popular", articleHandler.Popular)
			articles.GET("/search", articleHandler.Search)
			articles.GET("/categories", articleHandler.Categories)
			articles.GET("/category/:category", articleHandler.ByCategory)
			articles.GET("/:id", articleHandler.ByID)
		}
	}

	router.NoRoute(systemHandler.NotFound)

	return router
}

func globalRule(cfg config.RateLimitConfig) ratelimit.Rule {
	return ratelimit.Rule{Name: "global", Window: cfg.Window, Max: cfg.Max}
}

func createRule(cfg config.RateLimitConfig) ratelimit.Rule {
	return ratelimit.Rule{Name: "create", Window: cfg.CreateWindow, Max: cfg.CreateMax}
}
