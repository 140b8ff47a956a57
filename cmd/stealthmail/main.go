package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"stealthmail/backend/internal/config"
	"stealthmail/backend/internal/gatewayclient"
	"stealthmail/backend/internal/lifecycle"
	"stealthmail/backend/internal/logger"
	"stealthmail/backend/internal/tui"
)

// main 启动终端客户端：一个一次性邮箱加上隐私文章列表
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stealthmail:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 终端被界面占用，日志只写文件
	log := logger.NewFileOnly(cfg.Log.File, cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	gw := gatewayclient.New(cfg.Client.APIBaseURL, cfg.Mail.Timeout,
		gatewayclient.WithLogger(log.Named("gateway")),
	)
	ctrl := lifecycle.New(gw, lifecycle.Options{
		Lifetime:       cfg.Mail.Lifetime,
		PollInterval:   cfg.Mail.PollInterval,
		FallbackDomain: cfg.Mail.FallbackDomain,
		Logger:         log.Named("mailbox"),
	})
	defer ctrl.Close()

	log.Info("starting terminal client", zap.String("api", cfg.Client.APIBaseURL))
	if err := tui.Run(ctx, ctrl, gw); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}
