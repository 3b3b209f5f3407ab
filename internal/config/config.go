package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Realtime RealtimeConfig
	Payment  PaymentConfig
	Cart     CartConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	realtime, err := loadRealtimeConfig()
	if err != nil {
		return nil, err
	}

	payment, err := loadPaymentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Store:    store,
		Realtime: realtime,
		Payment:  payment,
		Cart:     loadCartConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	StaticDir      string
	ServeStatic    bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// loadServerConfig 解析服务器监听地址和限流参数。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	rps, err := parseOptionalFloatEnv("RATE_LIMIT_RPS")
	if err != nil {
		return ServerConfig{}, err
	}
	burst, err := parseOptionalIntEnv("RATE_LIMIT_BURST")
	if err != nil {
		return ServerConfig{}, err
	}
	serveStatic, err := parseBoolEnv("SERVE_STATIC", true)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		Addr:           addr,
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
		StaticDir:      getEnvOrDefault("STATIC_DIR", "../"),
		ServeStatic:    serveStatic,
		RateLimitRPS:   2,
		RateLimitBurst: 10,
	}
	if rps != nil {
		cfg.RateLimitRPS = *rps
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}
	return cfg, nil
}

// StoreConfig 描述本地回退存储使用的键值驱动。
type StoreConfig struct {
	Driver    kv.StoreType
	Path      string
	RedisAddr string
	KeyPrefix string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := kv.StoreType(strings.ToLower(getEnvOrDefault("STORE_DRIVER", string(kv.StoreTypeMemory))))
	cfg := StoreConfig{
		Driver:    driver,
		Path:      getEnvOrDefault("STORE_PATH", "data/store"),
		RedisAddr: getEnvOrDefault("STORE_REDIS_ADDR", ""),
		KeyPrefix: getEnvOrDefault("STORE_KEY_PREFIX", "custompc:"),
	}
	switch driver {
	case kv.StoreTypeMemory, kv.StoreTypePebble, kv.StoreTypeSQLite:
	case kv.StoreTypeRedis:
		if cfg.RedisAddr == "" {
			return StoreConfig{}, fmt.Errorf("STORE_REDIS_ADDR is required when STORE_DRIVER=redis")
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value: %q", driver)
	}
	return cfg, nil
}

// RealtimeConfig 描述远程实时数据库配置。
type RealtimeConfig struct {
	RedisAddr      string
	Prefix         string
	ConnectTimeout time.Duration
}

// Enabled 表示是否配置了远程数据库。
func (c RealtimeConfig) Enabled() bool {
	return c.RedisAddr != ""
}

func loadRealtimeConfig() (RealtimeConfig, error) {
	timeout, err := parseOptionalIntEnv("REALTIME_CONNECT_TIMEOUT")
	if err != nil {
		return RealtimeConfig{}, err
	}
	seconds := 10
	if timeout != nil {
		if *timeout < 1 {
			seconds = 1
		} else {
			seconds = *timeout
		}
	}
	return RealtimeConfig{
		RedisAddr:      getEnvOrDefault("REALTIME_REDIS_ADDR", ""),
		Prefix:         getEnvOrDefault("REALTIME_PREFIX", "rt:"),
		ConnectTimeout: time.Duration(seconds) * time.Second,
	}, nil
}

// PaymentConfig 描述 Square 支付配置，凭据不提供默认值。
type PaymentConfig struct {
	AccessToken string
	LocationID  string
	BaseURL     string
	Timeout     time.Duration
	Environment string
}

// Configured 表示是否提供了必需的 Square 凭据。
func (c PaymentConfig) Configured() bool {
	return c.AccessToken != "" && c.LocationID != ""
}

func loadPaymentConfig() (PaymentConfig, error) {
	// 解析超时设置
	timeout, err := parseOptionalIntEnv("SQUARE_TIMEOUT")
	if err != nil {
		return PaymentConfig{}, err
	}
	seconds := 30 // 默认30秒
	if timeout != nil {
		seconds = *timeout
	}
	return PaymentConfig{
		AccessToken: strings.TrimSpace(os.Getenv("SQUARE_ACCESS_TOKEN")),
		LocationID:  strings.TrimSpace(os.Getenv("SQUARE_LOCATION_ID")),
		BaseURL:     getEnvOrDefault("SQUARE_BASE_URL", "https://connect.squareup.com"),
		Timeout:     time.Duration(seconds) * time.Second,
		Environment: getEnvOrDefault("SQUARE_ENVIRONMENT", "production"),
	}, nil
}

// CartConfig 描述云端购物车配置。
type CartConfig struct {
	SupabaseURL string
	SupabaseKey string
	Table       string
}

// Enabled 表示是否配置了 Supabase 项目。
func (c CartConfig) Enabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

func loadCartConfig() CartConfig {
	return CartConfig{
		SupabaseURL: strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseKey: strings.TrimSpace(os.Getenv("SUPABASE_KEY")),
		Table:       getEnvOrDefault("SUPABASE_CART_TABLE", "carts"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
