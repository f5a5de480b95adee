package config

import (
	"os"
	"strconv"
	"time"
)

type SatelliteServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	ProviderCfg ProviderConfig
	PipelineCfg PipelineConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ProviderConfig drives the Copernicus Data Space client. Version tags the
// provider/index-formula schema; it is part of every cache key so upstream
// changes invalidate stale entries instead of mixing schema versions.
type ProviderConfig struct {
	TokenURL          string
	ProcessURL        string
	ClientID          string
	ClientSecret      string
	Version           string
	RequestTimeout    time.Duration
	MaxCloudCoverage  float64
	StepDays          int
	TargetMPerPixel   float64
	MinDim            int
	MaxDim            int
}

// PipelineConfig holds the processing tunables. Defaults are conservative
// and stay overridable per environment.
type PipelineConfig struct {
	CloudProbThreshold    float64
	MinValidPixelFraction float64
	CacheTTL              time.Duration
	CacheSweepInterval    time.Duration
	WatchThreshold        float64
	AlertThreshold        float64
	MinBaselineSamples    int
	BaselineWindowDays    int
}

func New() *SatelliteServiceConfig {
	return &SatelliteServiceConfig{
		Port: getEnvOrDefault("PORT", "8086"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "satellite_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RabbitMQCfg: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
		},
		ProviderCfg: ProviderConfig{
			TokenURL:         getEnvOrDefault("CDSE_TOKEN_URL", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"),
			ProcessURL:       getEnvOrDefault("CDSE_PROCESS_URL", "https://sh.dataspace.copernicus.eu/api/v1/process"),
			ClientID:         getEnvOrDefault("CDSE_CLIENT_ID", ""),
			ClientSecret:     getEnvOrDefault("CDSE_CLIENT_SECRET", ""),
			Version:          getEnvOrDefault("PROVIDER_VERSION", "sentinel-2-l2a/v1"),
			RequestTimeout:   getEnvDuration("PROVIDER_TIMEOUT", 120*time.Second),
			MaxCloudCoverage: getEnvFloat("PROVIDER_MAX_CLOUD_COVERAGE", 70.0),
			StepDays:         getEnvInt("PROVIDER_STEP_DAYS", 10),
			TargetMPerPixel:  getEnvFloat("PROVIDER_TARGET_M_PER_PIXEL", 10.0),
			MinDim:           getEnvInt("PROVIDER_MIN_DIM", 512),
			MaxDim:           getEnvInt("PROVIDER_MAX_DIM", 2048),
		},
		PipelineCfg: PipelineConfig{
			CloudProbThreshold:    getEnvFloat("CLOUD_PROB_THRESHOLD", 0.40),
			MinValidPixelFraction: getEnvFloat("MIN_VALID_PIXEL_FRACTION", 0.30),
			CacheTTL:              getEnvDuration("CACHE_TTL", 30*time.Minute),
			CacheSweepInterval:    getEnvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
			WatchThreshold:        getEnvFloat("ANOMALY_WATCH_THRESHOLD", 1.0),
			AlertThreshold:        getEnvFloat("ANOMALY_ALERT_THRESHOLD", 2.0),
			MinBaselineSamples:    getEnvInt("MIN_BASELINE_SAMPLES", 3),
			BaselineWindowDays:    getEnvInt("BASELINE_DOY_WINDOW_DAYS", 15),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
