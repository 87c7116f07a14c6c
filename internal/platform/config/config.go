package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs from the environment.
type Config struct {
	Addr string

	Registrar RegistrarConfig
	Payment   PaymentConfig
	Redis     RedisConfig

	// PostgresURL selects the persistent operation store. Empty means the
	// in-memory store (dev and tests).
	PostgresURL string

	// AdminToken guards the operation admin routes.
	AdminToken string

	// KafkaBrokers enables the order event stream when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// CheckoutWindow is how long a checkout stays valid after its start
	// timestamp. Payment intents are refused once it elapses.
	CheckoutWindow time.Duration
}

// RegistrarConfig holds the upstream domain registrar settings.
type RegistrarConfig struct {
	BaseURL string
	// APIKey authenticates outbound calls and doubles as the HMAC secret
	// for inbound registrar webhooks.
	APIKey string
	// OwnerAddress is the custody wallet reservations land on. Ownership
	// checks compare against it case-insensitively.
	OwnerAddress string
}

// PaymentConfig holds the payment processor settings.
type PaymentConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

// RedisConfig configures the optional Redis connection used for webhook
// event dedupe. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// A local .env is loaded when present; real environments set variables
// directly.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Addr: getEnv("NAMECLAIM_ADDR", ":8080"),
		Registrar: RegistrarConfig{
			BaseURL:      getEnv("REGISTRAR_BASE_URL", "https://api.registrar.example"),
			APIKey:       os.Getenv("REGISTRAR_API_KEY"),
			OwnerAddress: strings.ToLower(os.Getenv("REGISTRAR_OWNER_ADDRESS")),
		},
		Payment: PaymentConfig{
			BaseURL:       getEnv("PAYMENT_BASE_URL", "https://api.payments.example"),
			SecretKey:     os.Getenv("PAYMENT_SECRET_KEY"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_ORDER_TOPIC", "nameclaim.order-events"),
		CheckoutWindow: getEnvDuration("CHECKOUT_WINDOW", 2*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
