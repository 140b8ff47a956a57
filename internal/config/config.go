package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 3001

	// TrustedProxies 可信反向代理的 IP 或 CIDR，留空时只认连接对端地址，
	// 不读取 X-Forwarded-For
	TrustedProxies []string
}

// AppConfig 定义运行环境
type AppConfig struct {
	Environment string // development / production，决定错误详情是否外露
}

// MailConfig 定义上游临时邮件服务商与邮箱生命周期配置
type MailConfig struct {
	BaseURL        string        // 服务商 API 地址，默认 https://api.mail.tm
	Timeout        time.Duration // 单次上游请求超时，默认 30 秒
	Lifetime       time.Duration // 邮箱在客户端的可用时长，默认 10 分钟
	PollInterval   time.Duration // 收件箱轮询间隔，默认 30 秒
	FallbackDomain string        // 服务商不可用时占位地址使用的域名
}

// ContentConfig 定义 Notion 内容后台配置
type ContentConfig struct {
	NotionToken  string        // 集成令牌，留空时使用静态兜底文章
	DatabaseID   string        // 文章数据库 ID，留空时使用静态兜底文章
	BaseURL      string        // Notion API 地址
	CacheTTL     time.Duration // 实时结果的本地缓存时长
	WarmSchedule string        // 缓存预热的 cron 表达式
}

// Configured 判断内容后台是否已配置
func (c ContentConfig) Configured() bool {
	return strings.TrimSpace(c.NotionToken) != "" && strings.TrimSpace(c.DatabaseID) != ""
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// RateLimitConfig 定义按 IP 的限流阈值
type RateLimitConfig struct {
	Window       time.Duration // 全局限流窗口，默认 15 分钟
	Max          int           // 全局窗口内最大请求数，默认 100
	CreateWindow time.Duration // 创建邮箱限流窗口，默认 1 分钟
	CreateMax    int           // 创建邮箱窗口内最大请求数，默认 10
	Backend      string        // memory 或 redis
}

// RedisConfig 定义 Redis 服务配置（仅 redis 限流后端使用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// ClientConfig 定义终端客户端访问网关的配置
type ClientConfig struct {
	APIBaseURL string // 网关 API 根地址，默认 http://localhost:3001/api
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Mail      MailConfig
	Content   ContentConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Log       LogConfig
	Client    ClientConfig
}

// IsProduction 判断是否运行在生产环境
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: STEALTHMAIL_
// 例如: STEALTHMAIL_SERVER_PORT, STEALTHMAIL_CONTENT_NOTION_TOKEN
//
// 同时兼容旧部署使用的 NOTION_TOKEN、NOTION_DATABASE_ID、ALLOWED_ORIGINS、NODE_ENV、PORT。
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("stealthmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 旧环境变量名
	_ = viper.BindEnv("content.notion_token", "STEALTHMAIL_CONTENT_NOTION_TOKEN", "NOTION_TOKEN")
	_ = viper.BindEnv("content.database_id", "STEALTHMAIL_CONTENT_DATABASE_ID", "NOTION_DATABASE_ID")
	_ = viper.BindEnv("cors.allowed_origins", "STEALTHMAIL_CORS_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")
	_ = viper.BindEnv("app.environment", "STEALTHMAIL_APP_ENVIRONMENT", "NODE_ENV")
	_ = viper.BindEnv("server.port", "STEALTHMAIL_SERVER_PORT", "PORT")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.trusted_proxies", "")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("mail.base_url", "https://api.mail.tm")
	viper.SetDefault("mail.timeout", "30s")
	viper.SetDefault("mail.lifetime", "10m")
	viper.SetDefault("mail.poll_interval", "30s")
	viper.SetDefault("mail.fallback_domain", "stealthmail.com")
	viper.SetDefault("content.notion_token", "")
	viper.SetDefault("content.database_id", "")
	viper.SetDefault("content.base_url", "https://api.notion.com")
	viper.SetDefault("content.cache_ttl", "5m")
	viper.SetDefault("content.warm_schedule", "@every 5m")
	viper.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("ratelimit.window", "15m")
	viper.SetDefault("ratelimit.max", 100)
	viper.SetDefault("ratelimit.create_window", "1m")
	viper.SetDefault("ratelimit.create_max", 10)
	viper.SetDefault("ratelimit.backend", "memory")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("client.api_url", "http://localhost:3001/api")

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"mail.timeout", "mail.lifetime", "mail.poll_interval",
		"content.cache_ttl", "ratelimit.window", "ratelimit.create_window",
	} {
		d, err := time.ParseDuration(viper.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = d
	}

	if durations["mail.lifetime"] <= durations["mail.poll_interval"] {
		return nil, fmt.Errorf("mail.lifetime must be greater than mail.poll_interval")
	}

	rateMax := viper.GetInt("ratelimit.max")
	createMax := viper.GetInt("ratelimit.create_max")
	if rateMax <= 0 || createMax <= 0 {
		return nil, fmt.Errorf("ratelimit.max and ratelimit.create_max must be positive")
	}

	backend := strings.ToLower(strings.TrimSpace(viper.GetString("ratelimit.backend")))
	if backend != "memory" && backend != "redis" {
		return nil, fmt.Errorf("unsupported ratelimit.backend %q", backend)
	}

	trustedProxies := parseList(viper.GetString("server.trusted_proxies"))
	for _, p := range trustedProxies {
		if !validProxy(p) {
			return nil, fmt.Errorf("invalid server.trusted_proxies entry %q", p)
		}
	}
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),

			TrustedProxies: trustedProxies,
		},
		App: AppConfig{
			Environment: viper.GetString("app.environment"),
		},
		Mail: MailConfig{
			BaseURL:        strings.TrimRight(viper.GetString("mail.base_url"), "/"),
			Timeout:        durations["mail.timeout"],
			Lifetime:       durations["mail.lifetime"],
			PollInterval:   durations["mail.poll_interval"],
			FallbackDomain: strings.ToLower(viper.GetString("mail.fallback_domain")),
		},
		Content: ContentConfig{
			NotionToken:  viper.GetString("content.notion_token"),
			DatabaseID:   viper.GetString("content.database_id"),
			BaseURL:      strings.TrimRight(viper.GetString("content.base_url"), "/"),
			CacheTTL:     durations["content.cache_ttl"],
			WarmSchedule: viper.GetString("content.warm_schedule"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		RateLimit: RateLimitConfig{
			Window:       durations["ratelimit.window"],
			Max:          rateMax,
			CreateWindow: durations["ratelimit.create_window"],
			CreateMax:    createMax,
			Backend:      backend,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Client: ClientConfig{
			APIBaseURL: strings.TrimRight(viper.GetString("client.api_url"), "/"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}

// validProxy 判断是否为合法的 IP 或 CIDR
func validProxy(v string) bool {
	if strings.Contains(v, "/") {
		_, _, err := net.ParseCIDR(v)
		return err == nil
	}
	return net.ParseIP(v) != nil
}
