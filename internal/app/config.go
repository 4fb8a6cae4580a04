package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// DevJWTSecret используется, только если секрет не задан. При старте пишется предупреждение.
const DevJWTSecret = "ChangeMeImmediatelySecretKey!-sales-dev-only"

// Config описывает настройки запуска сервиса продаж.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	// GRPCAddr — адрес gRPC health-сервера; пустое значение отключает его.
	GRPCAddr string
	LogLevel string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedDemo            bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration
	CORSOrigins []string

	KafkaBrokers     []string
	KafkaTopic       string
	RabbitMQURL      string
	RabbitMQExchange string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		JWTSecret:                   DevJWTSecret,
		JWTIssuer:                   "sales-api",
		JWTAudience:                 "sales-console",
		JWTTTL:                      120 * time.Minute,
		CORSOrigins:                 []string{"http://localhost:3000", "http://localhost:5173"},
		RabbitMQExchange:            "sales.events",
		ProductCacheTTL:             30 * time.Second,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает SALES_* переменные окружения поверх DefaultConfig.
// Секреты можно передать файлом: SALES_JWT_SECRET_FILE, SALES_POSTGRES_DSN_FILE, SALES_REDIS_PASSWORD_FILE.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	cfg.HTTPAddr = getEnv("SALES_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getEnv("SALES_METRICS_ADDR", cfg.MetricsAddr)
	cfg.GRPCAddr = getEnv("SALES_GRPC_ADDR", cfg.GRPCAddr)
	cfg.LogLevel = getEnv("SALES_LOG_LEVEL", cfg.LogLevel)

	cfg.StorageDriver = StorageDriver(strings.ToLower(getEnv("SALES_STORAGE_DRIVER", string(cfg.StorageDriver))))
	cfg.PostgresDSN = getEnvFromFile("SALES_POSTGRES_DSN_FILE", "SALES_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = getBool("SALES_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate, &errs)
	cfg.SeedDemo = getBool("SALES_SEED_DEMO", cfg.SeedDemo, &errs)

	cfg.JWTSecret = getEnvFromFile("SALES_JWT_SECRET_FILE", "SALES_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("SALES_JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = getEnv("SALES_JWT_AUDIENCE", cfg.JWTAudience)
	cfg.JWTTTL = getDuration("SALES_JWT_TTL", cfg.JWTTTL, &errs)
	cfg.CORSOrigins = getList("SALES_CORS_ORIGINS", cfg.CORSOrigins)

	cfg.KafkaBrokers = getList("SALES_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("SALES_KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.RabbitMQURL = getEnvFromFile("SALES_RABBITMQ_URL_FILE", "SALES_RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQExchange = getEnv("SALES_RABBITMQ_EXCHANGE", cfg.RabbitMQExchange)

	cfg.RedisAddr = getEnv("SALES_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvFromFile("SALES_REDIS_PASSWORD_FILE", "SALES_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getInt("SALES_REDIS_DB", cfg.RedisDB, &errs)
	cfg.ProductCacheTTL = getDuration("SALES_PRODUCT_CACHE_TTL", cfg.ProductCacheTTL, &errs)

	cfg.OutboxPollInterval = getDuration("SALES_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval, &errs)
	cfg.OutboxBatchSize = getInt("SALES_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize, &errs)
	cfg.OutboxMaxAttempts = getInt("SALES_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts, &errs)
	cfg.OutboxRetryDelay = getDuration("SALES_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay, &errs)

	cfg.IdempotencyTTL = getDuration("SALES_IDEMPOTENCY_TTL", cfg.IdempotencyTTL, &errs)
	cfg.IdempotencyCleanupInterval = getDuration("SALES_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval, &errs)
	cfg.IdempotencyCleanupBatchSize = getInt("SALES_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize, &errs)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("SALES_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q (use memory|postgres)", c.StorageDriver))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("batch sizes and attempts must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}
