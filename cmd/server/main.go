package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stealthmail/backend/internal/cache"
	"stealthmail/backend/internal/config"
	"stealthmail/backend/internal/health"
	"stealthmail/backend/internal/logger"
	"stealthmail/backend/internal/monitoring"
	"stealthmail/backend/internal/ratelimit"
	"stealthmail/backend/internal/scheduler"
	"stealthmail/backend/internal/service"
	httptransport "stealthmail/backend/internal/transport/http"
	"stealthmail/backend/internal/upstream/mailtm"
	"stealthmail/backend/internal/upstream/notion"
	"stealthmail/backend/internal/websocket"
)

const version = "1.0.0"

// main 启动 Stealth Mail API 网关
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
		Service:     "stealthmail-api",
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting stealth mail server",
		zap.String("version", version),
		zap.String("environment", cfg.App.Environment),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("content_configured", cfg.Content.Configured()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(cfg.App.Environment, log)

	// 上游邮件服务商
	mailClient := mailtm.NewClient(cfg.Mail.BaseURL, cfg.Mail.Timeout,
		mailtm.WithLogger(log.Named("mailtm")),
		mailtm.WithObserver(metrics),
	)
	mailService := service.NewMailService(mailClient, cfg.Mail.Lifetime, log.Named("mail"), metrics)
	if host := hostOf(cfg.Mail.BaseURL); host != "" {
		healthChecker.AddReadinessCheck("mail-provider-dns", health.UpstreamDNSCheck(ctx, host, 30*time.Second))
	}

	// 内容后台，未配置时只提供兜底文章
	var backend service.ContentBackend
	if cfg.Content.Configured() {
		backend = notion.NewClient(cfg.Content.BaseURL, cfg.Content.NotionToken,
			notion.WithLogger(log.Named("notion")),
			notion.WithObserver(metrics),
		)
	} else {
		log.Warn("notion is not configured, serving fallback articles")
	}
	articleCache := cache.NewLocalCache[any](512, cfg.Content.CacheTTL)
	articleService := service.NewArticleService(backend, cfg.Content.DatabaseID, articleCache, cfg.Content.CacheTTL, log.Named("articles"), metrics)

	limiter, closeLimiter, err := newLimiter(cfg, log, healthChecker)
	if err != nil {
		log.Fatal("failed to initialize rate limiter", zap.Error(err))
	}
	defer closeLimiter()

	streamer := websocket.NewStreamer(mailService, cfg.CORS.AllowedOrigins, cfg.Mail.PollInterval, cfg.Mail.Lifetime, log.Named("stream"), metrics)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:   cfg,
		Mail:     mailService,
		Articles: articleService,
		Health:   healthChecker,
		Metrics:  metrics,
		Limiter:  limiter,
		Streamer: streamer,
		Logger:   log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * cfg.Mail.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	jobs := scheduler.New(log.Named("scheduler"), time.Minute)
	if articleService.Configured() {
		if err := jobs.Register("warm-articles", cfg.Content.WarmSchedule, articleService.Warm); err != nil {
			log.Fatal("failed to schedule article warmup", zap.Error(err))
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 本地缓存清理
	group.Go(func() error {
		articleCache.Run(groupCtx, time.Minute)
		return nil
	})

	// 内存限流计数清理
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		group.Go(func() error {
			mem.Run(groupCtx, time.Minute)
			return nil
		})
	}

	// 文章缓存预热
	group.Go(func() error {
		if articleService.Configured() {
			if err := jobs.RunNow(groupCtx, "warm-articles", articleService.Warm); err != nil {
				log.Warn("initial article warmup failed", zap.Error(err))
			} else {
				log.Info("article cache warmed")
			}
		}
		jobs.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// newLimiter 按配置创建限流后端，返回的 close 函数在退出时调用
func newLimiter(cfg *config.Config, log *zap.Logger, hc *health.HealthChecker) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.Backend != "redis" {
		log.Info("using in-memory rate limiter")
		return ratelimit.NewMemoryLimiter(100000), func() {}, nil
	}

	rl, err := ratelimit.NewRedisLimiter(cfg.Redis, log.Named("ratelimit"))
	if err != nil {
		return nil, nil, err
	}
	hc.AddReadinessCheck("redis", health.PingCheck(rl.Ping, 2*time.Second))
	log.Info("using redis rate limiter", zap.String("address", cfg.Redis.Address))

	return rl, func() {
		if err := rl.Close(); err != nil {
			log.Warn("redis close warning", zap.Error(err))
		}
	}, nil
}

// hostOf 取出 URL 的主机名
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
