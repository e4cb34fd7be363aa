package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	Engine EngineConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// EngineConfig carries the tunable coefficients of the recommendation engine.
// The urgency multipliers and confidence bounds are heuristic defaults, not
// fixed law; deployments tune them per catalog.
type EngineConfig struct {
	Workers          int           // per-job forecasting worker pool size
	JobTimeout       time.Duration // wall-clock budget before a job is marked failed
	PerProductBudget time.Duration // coarse estimate used for estimated_completion
	HorizonDays      int           // default forecast horizon

	UrgencyHighMultiplier   float64 // high: days_until_stockout <= lead_time × this
	UrgencyMediumMultiplier float64 // medium: days_until_stockout <= lead_time × this

	ConfidenceFloor   float64 // never report below this, even with rich data
	ConfidenceCeiling float64 // saturation point, never reached exactly
	LowDataCap        float64 // cap when history has fewer than MinSamples points
	MinSamples        int     // below this the forecast is flagged insufficient
	WindowFloorDays   int     // trailing window is max(this, horizon)
	SeasonalCycleDays int     // calendar cycle for the seasonality ratio
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOGGER_LEVEL", "info"),
			Encoding: getEnv("LOGGER_ENCODING", "json"),
		},
		Engine: EngineConfig{
			Workers:          getEnvInt("ENGINE_WORKERS", 4),
			JobTimeout:       getEnvDuration("ENGINE_JOB_TIMEOUT", 10*time.Minute),
			PerProductBudget: getEnvDuration("ENGINE_PER_PRODUCT_BUDGET", 200*time.Millisecond),
			HorizonDays:      getEnvInt("ENGINE_HORIZON_DAYS", 30),

			UrgencyHighMultiplier:   getEnvFloat("ENGINE_URGENCY_HIGH_MULT", 1.5),
			UrgencyMediumMultiplier: getEnvFloat("ENGINE_URGENCY_MEDIUM_MULT", 3.0),

			ConfidenceFloor:   getEnvFloat("ENGINE_CONFIDENCE_FLOOR", 10),
			ConfidenceCeiling: getEnvFloat("ENGINE_CONFIDENCE_CEILING", 95),
			LowDataCap:        getEnvFloat("ENGINE_LOW_DATA_CAP", 20),
			MinSamples:        getEnvInt("ENGINE_MIN_SAMPLES", 7),
			WindowFloorDays:   getEnvInt("ENGINE_WINDOW_FLOOR_DAYS", 28),
			SeasonalCycleDays: getEnvInt("ENGINE_SEASONAL_CYCLE_DAYS", 7),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}
