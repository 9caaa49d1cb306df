// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Supabase    SupabaseConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Gateway     GatewayConfig
	NATS        NATSConfig
	Ads         AdsConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
}

type FrontendConfig struct {
	BaseURL  string
	SiteName string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	AllowOrigins []string
	PublicURL    string
}

type DatabaseConfig struct {
	// URL, when set, is used as is and the discrete fields are ignored.
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

// SupabaseConfig points at the managed auth provider. JWTSecret verifies the
// access tokens it issues.
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
	LocalUploadDir  string
}

type PaymentConfig struct {
	StripeSecretKey      string
	StripePublishableKey string
	Currency             string
	MinimumPurchase      float64
}

type GatewayConfig struct {
	BaseURL        string
	TimeoutSeconds int
	TokenTTLHours  int
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type AdsConfig struct {
	AdminUserID string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowOrigins: getEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:5173"}),
			PublicURL:    getEnv("SERVER_PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "limey"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			AnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:  getEnv("SUPABASE_JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "limey-media"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
			LocalUploadDir:  getEnv("LOCAL_UPLOAD_DIR", "./uploads"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			Currency:             getEnv("PAYMENT_CURRENCY", "ttd"),
			MinimumPurchase:      getEnvAsFloat("PAYMENT_MINIMUM_PURCHASE", 10.0),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("TTPAYPAL_BASE_URL", "https://ttpaypal.com"),
			TimeoutSeconds: getEnvAsInt("TTPAYPAL_TIMEOUT", 20),
			TokenTTLHours:  getEnvAsInt("TTPAYPAL_TOKEN_TTL", 24),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "limey"),
		},
		Ads: AdsConfig{
			AdminUserID: getEnv("ADS_ADMIN_USER_ID", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL:  getEnv("FRONTEND_BASE_URL", "http://localhost:5173"),
			SiteName: getEnv("FRONTEND_SITE_NAME", "Limey"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Environment != "production" {
		return nil
	}

	if c.Supabase.JWTSecret == "your-secret-key-change-in-production" {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be set in production")
	}

	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Ads.AdminUserID == "" {
		return fmt.Errorf("ADS_ADMIN_USER_ID is required in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
