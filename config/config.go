package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string
	Database           DatabaseConfig
	JWT                JWTConfig
	Argon2             Argon2Config
	Mail               MailConfig
	Storage            StorageConfig
	MQ                 MQConfig
	// UserCodePrefix prefixes the human-readable user code, e.g. MC-20251.
	UserCodePrefix string
	// RegisterIssuesToken controls whether registration returns a bearer
	// token before the email address is verified.
	RegisterIssuesToken bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type Argon2Config struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
}

type MailConfig struct {
	// Backend is "smtp" or "log".
	Backend  string
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
	From     string
}

type StorageConfig struct {
	// Backend is "local", "minio" or "gcs".
	Backend  string
	LocalDir string
	Minio    MinioConfig
	GCS      GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	// Backend is "", "rabbitmq" or "pubsub". Empty disables event publishing.
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
	// MaxOutstanding caps unacknowledged messages per subscriber.
	MaxOutstanding int
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "mouldconnect"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "mouldconnect_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		Env:                getEnv("ENV", "prod"),
		ServerPort:         getEnvInt("SERVER_PORT", 4000),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		Database:           dbConfig,
		JWT: JWTConfig{
			Secret: strings.TrimSpace(getEnv("JWT_SECRET", "")),
			TTL:    getEnvTokenTTL("JWT_EXPIRATION_TIME", time.Hour),
		},
		Argon2: Argon2Config{
			MemoryKB:    uint32(getEnvInt("ARGON2_MEMORY_KB", 64*1024)),
			Time:        uint32(getEnvInt("ARGON2_TIME", 3)),
			Parallelism: uint8(getEnvInt("ARGON2_PARALLELISM", 1)),
		},
		Mail: MailConfig{
			Backend:  getEnv("NOTIFIER_BACKEND", "smtp"),
			Host:     getEnv("EMAIL_HOST", "localhost"),
			Port:     getEnvInt("EMAIL_PORT", 587),
			Secure:   getEnvBool("EMAIL_SECURE", false),
			User:     getEnv("EMAIL_USER", ""),
			Password: getEnv("EMAIL_PASS", ""),
			From:     getEnv("EMAIL_FROM", getEnv("EMAIL_USER", "")),
		},
		Storage: StorageConfig{
			Backend:  getEnv("STORAGE_BACKEND", "local"),
			LocalDir: getEnv("EREPO_PATH", "eRepo"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "erepo"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			},
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", ""),
			Channel: getEnv("MQ_CHANNEL", "account-events"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
				MaxOutstanding:     getEnvInt("PUBSUB_MAX_OUTSTANDING", 10),
			},
		},
		UserCodePrefix:      getEnv("USER_CODE_PREFIX", "MC"),
		RegisterIssuesToken: getEnvBool("REGISTER_ISSUE_TOKEN", false),
	}
}

// Validate reports configuration that would prevent the server from starting.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_EXPIRATION_TIME must be a positive duration such as 3600, 30m or 7d")
	}
	switch c.Mail.Backend {
	case "smtp", "log":
	default:
		return fmt.Errorf("unknown NOTIFIER_BACKEND %q", c.Mail.Backend)
	}
	switch c.Storage.Backend {
	case "local", "minio", "gcs":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.MQ.Backend {
	case "", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unknown MQ_BACKEND %q", c.MQ.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvTokenTTL accepts Go durations ("1h30m"), a number with a unit
// suffix ("7d", "2 weeks", "1.5y") and bare integers, which count seconds.
// A value that does not parse yields 0 so Validate rejects it.
func getEnvTokenTTL(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	ttl, err := parseTokenTTL(valueStr)
	if err != nil {
		return 0
	}
	return ttl
}

var ttlUnits = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "msecs": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"y": 8766 * time.Hour, "yr": 8766 * time.Hour, "yrs": 8766 * time.Hour, "year": 8766 * time.Hour, "years": 8766 * time.Hour,
}

func parseTokenTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}

	split := strings.IndexFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	if split <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	n, err := strconv.ParseFloat(raw[:split], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	unit, ok := ttlUnits[strings.ToLower(strings.TrimSpace(raw[split:]))]
	if !ok {
		return 0, fmt.Errorf("invalid duration unit in %q", raw)
	}
	return time.Duration(n * float64(unit)), nil
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
