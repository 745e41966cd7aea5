// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Storage  StorageConfig
	Notify   NotifyConfig
	Pipeline PipelineConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

// ForecastConfig holds the numeric policy of the forecast pipeline.
type ForecastConfig struct {
	SampleLimit      int
	SafetyBuffer     float64
	LookbackDays     int
	MaxAdjustmentPct float64
	ModelVersion     string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type NotifyConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

type PipelineConfig struct {
	WorkerCount         int
	RetryAttempts       int
	RetryBackoffSeconds int
}

var (
	once     sync.Once
	instance *Config
)

// Load reads the process configuration once and returns the shared instance.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		v.AutomaticEnv()
		instance = New(v)
	})

	return instance
}

// New builds a Config from the given viper instance after applying defaults.
func New(v *viper.Viper) *Config {
	setDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			SampleLimit:      v.GetInt("FORECAST_SAMPLE_LIMIT"),
			SafetyBuffer:     v.GetFloat64("FORECAST_SAFETY_BUFFER"),
			LookbackDays:     v.GetInt("FORECAST_LOOKBACK_DAYS"),
			MaxAdjustmentPct: v.GetFloat64("FORECAST_MAX_ADJUSTMENT_PCT"),
			ModelVersion:     v.GetString("FORECAST_MODEL_VERSION"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Notify: NotifyConfig{
			WebhookURL:     v.GetString("NOTIFY_WEBHOOK_URL"),
			TimeoutSeconds: v.GetInt("NOTIFY_TIMEOUT_SECONDS"),
		},
		Pipeline: PipelineConfig{
			WorkerCount:         v.GetInt("PIPELINE_WORKER_COUNT"),
			RetryAttempts:       v.GetInt("PIPELINE_RETRY_ATTEMPTS"),
			RetryBackoffSeconds: v.GetInt("PIPELINE_RETRY_BACKOFF_SECONDS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bakecast")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_FORECAST_TTL_SECONDS", 300)
	v.SetDefault("FORECAST_SAMPLE_LIMIT", 9)
	v.SetDefault("FORECAST_SAFETY_BUFFER", 0.05)
	v.SetDefault("FORECAST_LOOKBACK_DAYS", 7)
	v.SetDefault("FORECAST_MAX_ADJUSTMENT_PCT", 0.15)
	v.SetDefault("FORECAST_MODEL_VERSION", "weekday-avg-v2")
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_BUCKET", "production-plans")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 10)
	v.SetDefault("PIPELINE_WORKER_COUNT", 4)
	v.SetDefault("PIPELINE_RETRY_ATTEMPTS", 3)
	v.SetDefault("PIPELINE_RETRY_BACKOFF_SECONDS", 30)
}

// RetryBackoff returns the pipeline retry backoff as a duration.
func (c PipelineConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}
