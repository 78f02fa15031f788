package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Endpoint keys for rate limit rules. Admission control and the HTTP layer
// must agree on these names, so they live here.
const (
	EndpointUploadBegin    = "upload_begin"
	EndpointUploadFinalize = "upload_finalize"
	EndpointPurchaseOrder  = "purchase_order"
)

// RateLimitRule is a fixed-window limit for one endpoint.
type RateLimitRule struct {
	MaxRequests   int
	WindowMinutes int
}

type Config struct {
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	RedisAddr     string
	RedisPort     string
	RedisPassword string
	JWTSecret     string

	// Credit accounting
	CreditsPerMB     int64 // conversion rate, credits are the internal unit of record
	FreeGrantCredits int64 // granted once at signup
	CreditPriceUSD   float64
	LedgerHashSecret string

	// Admission control
	RateLimits    map[string]RateLimitRule
	DailyImageCap int
	DailyVideoCap int

	// Abandoned reservation sweep
	ReservationTTLMinutes int
	SweepIntervalMinutes  int

	// Blob store (STS credential issuance only, uploads go direct from the client)
	OSSRegion          string
	OSSEndpoint        string
	OSSBucketName      string
	OSSAccessKeyID     string
	OSSAccessKeySecret string
	OSSRoleArn         string

	// Log configuration
	LogLevel      string
	LogFilename   string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisFullAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisAddr, c.RedisPort)
}

// RateLimit returns the rule for an endpoint. A zero MaxRequests means the
// endpoint is unlimited.
func (c *Config) RateLimit(endpoint string) RateLimitRule {
	return c.RateLimits[endpoint]
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// Ignore error if .env file is not found
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return &Config{
		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBPort:        os.Getenv("DB_PORT"),
		RedisAddr:     os.Getenv("REDIS_HOST"),
		RedisPort:     os.Getenv("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		CreditsPerMB:     getEnvAsInt64("CREDITS_PER_MB", 1),
		FreeGrantCredits: getEnvAsInt64("FREE_GRANT_CREDITS", 5120),
		CreditPriceUSD:   getEnvAsFloat("CREDIT_PRICE_USD", 0.01),
		LedgerHashSecret: getEnv("LEDGER_HASH_SECRET", os.Getenv("JWT_SECRET")),

		RateLimits: map[string]RateLimitRule{
			EndpointUploadBegin: {
				MaxRequests:   getEnvAsInt("RATE_LIMIT_UPLOAD_BEGIN_MAX", 30),
				WindowMinutes: getEnvAsInt("RATE_LIMIT_UPLOAD_BEGIN_WINDOW_MINUTES", 60),
			},
			EndpointUploadFinalize: {
				MaxRequests:   getEnvAsInt("RATE_LIMIT_UPLOAD_FINALIZE_MAX", 60),
				WindowMinutes: getEnvAsInt("RATE_LIMIT_UPLOAD_FINALIZE_WINDOW_MINUTES", 60),
			},
			EndpointPurchaseOrder: {
				MaxRequests:   getEnvAsInt("RATE_LIMIT_PURCHASE_ORDER_MAX", 10),
				WindowMinutes: getEnvAsInt("RATE_LIMIT_PURCHASE_ORDER_WINDOW_MINUTES", 60),
			},
		},
		DailyImageCap: getEnvAsInt("DAILY_IMAGE_CAP", 100),
		DailyVideoCap: getEnvAsInt("DAILY_VIDEO_CAP", 20),

		ReservationTTLMinutes: getEnvAsInt("RESERVATION_TTL_MINUTES", 360),
		SweepIntervalMinutes:  getEnvAsInt("SWEEP_INTERVAL_MINUTES", 15),

		OSSRegion:          os.Getenv("OSS_REGION"),
		OSSEndpoint:        os.Getenv("OSS_ENDPOINT"),
		OSSBucketName:      os.Getenv("OSS_BUCKET_NAME"),
		OSSAccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
		OSSAccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
		OSSRoleArn:         os.Getenv("OSS_ROLE_ARN"),

		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogFilename:   getEnv("LOG_FILENAME", "logs/app.log"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
