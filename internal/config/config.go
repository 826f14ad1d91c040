package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Betting settings
	MinBetAmount       int
	MaxBetAmount       int
	MatchWaitSeconds   int
	QueueExpiryMinutes int

	// Multiplayer pool settings
	RoundDurationSeconds   int
	RoundCooldownCompleted int
	RoundCooldownCancelled int
	PoolFeePercent         int

	// Bonuses
	DailyBonusAmount    float64
	ReferralBonusAmount float64

	// Payment gateway (Razorpay)
	RazorpayBaseURL   string
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayTimeout   int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/coinduel?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Betting settings
		MinBetAmount:       getEnvInt("MIN_BET_AMOUNT", 10),
		MaxBetAmount:       getEnvInt("MAX_BET_AMOUNT", 100000),
		MatchWaitSeconds:   getEnvInt("MATCH_WAIT_SECONDS", 30),
		QueueExpiryMinutes: getEnvInt("QUEUE_EXPIRY_MINUTES", 60),

		// Multiplayer pool
		RoundDurationSeconds:   getEnvInt("ROUND_DURATION_SECONDS", 120),
		RoundCooldownCompleted: getEnvInt("ROUND_COOLDOWN_COMPLETED_SECONDS", 10),
		RoundCooldownCancelled: getEnvInt("ROUND_COOLDOWN_CANCELLED_SECONDS", 5),
		PoolFeePercent:         getEnvInt("POOL_FEE_PERCENT", 5),

		// Bonuses
		DailyBonusAmount:    getEnvFloat("DAILY_BONUS_AMOUNT", 10),
		ReferralBonusAmount: getEnvFloat("REFERRAL_BONUS_AMOUNT", 50),

		// Payment gateway
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayTimeout:   getEnvInt("RAZORPAY_TIMEOUT_SECONDS", 15),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 1440),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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
