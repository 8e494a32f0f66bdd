package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by VERIFICATION_STORE and USER_STORE.
const (
	BackendMemory = "memory"
	BackendDynamo = "dynamo"
	BackendRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	UserStore         string // "memory" | "dynamo"
	VerificationStore string // "memory" | "dynamo" | "redis"
	RedisURL          string
	SweepInterval     time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTKeyID          string
	JWTIssuer         string
	JWTExpiry         time.Duration
	JWTRotationGrace  time.Duration

	TwoFactorTTL         time.Duration
	TwoFactorMaxAttempts int
	ResetTokenTTL        time.Duration
	BcryptCost           int

	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	MailQueueSize int

	SNSRegion      string
	AllowedOrigins []string // CORS allowed origins

	// TrustProxyHeaders makes the rate limiter key on X-Forwarded-For/X-Real-Ip.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	UserVerifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	jwtExpiry := getEnvDuration("JWT_EXPIRY", 12*time.Hour)
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			UserVerifications: getEnv("DYNAMO_TABLE_USER_VERIFICATIONS", "user_verifications"),
		},

		UserStore:         getEnv("USER_STORE", BackendDynamo),
		VerificationStore: getEnv("VERIFICATION_STORE", BackendDynamo),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTKeyID:          getEnv("JWT_KEY_ID", "primary"),
		JWTIssuer:         getEnv("JWT_ISSUER", "user-service"),
		JWTExpiry:         jwtExpiry,
		JWTRotationGrace:  getEnvDuration("JWT_ROTATION_GRACE", jwtExpiry),

		TwoFactorTTL:         getEnvDuration("TWO_FACTOR_TTL", 5*time.Minute),
		TwoFactorMaxAttempts: getEnvInt("TWO_FACTOR_MAX_ATTEMPTS", 5),
		ResetTokenTTL:        getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		BcryptCost:           getEnvInt("BCRYPT_COST", 10),

		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "1025"),
		SMTPFrom:      getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		MailQueueSize: getEnvInt("MAIL_QUEUE_SIZE", 256),

		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "1h30m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
