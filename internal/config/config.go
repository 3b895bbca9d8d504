package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process settings read from the environment.
type Config struct {
	Port     string
	RunLocal bool
	LogLevel string

	ProductsTable    string
	CartTable        string
	DiscountsTable   string
	IdempotencyTable string
	OrdersTable      string
	QueueURL         string
	MetricsNamespace string

	RedisAddr     string
	RedisPassword string
	RulesCacheTTL time.Duration

	JWTSecret      string
	ChargePolicy   string
	IdempotencyTTL time.Duration
}

// Load reads the API configuration. JWT_SECRET is required.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return cfg, err
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// Read reads an optional .env file and then the environment, without the
// API-only requirements. The worker and seed commands use it.
func Read() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		RunLocal: getEnv("RUN_LOCAL", "false") == "true",
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProductsTable:    getEnv("PRODUCTS_TABLE", "products"),
		CartTable:        getEnv("CART_TABLE", "cart_lines"),
		DiscountsTable:   getEnv("DISCOUNTS_TABLE", "discount_rules"),
		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		OrdersTable:      getEnv("ORDERS_TABLE", "orders"),
		QueueURL:         os.Getenv("CHECKOUT_QUEUE_URL"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Storefront"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		ChargePolicy: getEnv("CHECKOUT_CHARGE_POLICY", "discounted"),
	}

	var err error
	if cfg.RulesCacheTTL, err = getDuration("RULES_CACHE_TTL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 48*time.Hour); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err == nil {
		return d, nil
	}
	// bare integers are seconds
	secs, convErr := strconv.Atoi(v)
	if convErr != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return time.Duration(secs) * time.Second, nil
}
