package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	HTTPPort         int
	CORSAllowOrigins []string
	JWTSecret        string

	StorageDriver    string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string
	NotifyExchange   string

	TelegramBotToken     string
	TelegramRestaurant   int64
	TelegramCustomer     int64
	TelegramCourier      int64
	TelegramWaiter       int64
	NotifyTimeout        time.Duration
	LocationPollInterval time.Duration
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "fulfillment"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))

	cfg.HTTPPort = cast.ToInt(getOrReturnDefault("HTTP_PORT", 8080))
	cfg.CORSAllowOrigins = splitList(cast.ToString(getOrReturnDefault("CORS_ALLOW_ORIGINS", "*")))
	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", ""))

	cfg.StorageDriver = cast.ToString(getOrReturnDefault("STORAGE_DRIVER", StorageDriverPostgres))
	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "fulfillment"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations"))

	cfg.RabbitMQHost = cast.ToString(getOrReturnDefault("RABBITMQ_HOST", ""))
	cfg.RabbitMQPort = cast.ToInt(getOrReturnDefault("RABBITMQ_PORT", 5672))
	cfg.RabbitMQUser = cast.ToString(getOrReturnDefault("RABBITMQ_USER", "guest"))
	cfg.RabbitMQPassword = cast.ToString(getOrReturnDefault("RABBITMQ_PASSWORD", "guest"))
	cfg.NotifyExchange = cast.ToString(getOrReturnDefault("NOTIFY_EXCHANGE", "notifications_fanout"))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))
	cfg.TelegramRestaurant = cast.ToInt64(getOrReturnDefault("TG_RESTAURANT_CHAT_ID", 0))
	cfg.TelegramCustomer = cast.ToInt64(getOrReturnDefault("TG_CUSTOMER_CHAT_ID", 0))
	cfg.TelegramCourier = cast.ToInt64(getOrReturnDefault("TG_COURIER_CHAT_ID", 0))
	cfg.TelegramWaiter = cast.ToInt64(getOrReturnDefault("TG_WAITER_CHAT_ID", 0))

	cfg.NotifyTimeout = cast.ToDuration(getOrReturnDefault("NOTIFY_TIMEOUT", "5s"))
	cfg.LocationPollInterval = cast.ToDuration(getOrReturnDefault("LOCATION_POLL_INTERVAL", "3s"))

	return cfg
}

// PostgresURL is used by both the pool and the migrator.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
	)
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
