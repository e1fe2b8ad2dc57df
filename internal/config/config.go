package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Save parser service
	ParserURL string

	// Auth
	JWTSecret       string
	JWTExpiration   time.Duration
	BotSharedSecret string

	// Skill prior and update environment
	SkillMu       float64
	SkillSigma    float64
	SkillBeta     float64
	SkillTau      float64
	SkillDrawProb float64

	// Rating policy
	MinSubPoints int

	// Leaderboard
	LeaderboardMinGames int

	// Save archive
	SaveArchivePath string

	// Report submission rate limiting
	ReportRateLimit  int
	ReportRateWindow time.Duration

	// Leaderboard cache
	LeaderboardCacheTTL time.Duration
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	mu := getFloat("TS_MU", 1200)
	sigma := getFloat("TS_SIGMA", 400)

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		ParserURL:           getEnv("PARSER_URL", "http://localhost:8090"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:       getDuration("JWT_EXPIRATION", 24*time.Hour),
		BotSharedSecret:     getEnv("BOT_SHARED_SECRET", ""),
		SkillMu:             mu,
		SkillSigma:          sigma,
		SkillBeta:           getFloat("TS_BETA", sigma/2),
		SkillTau:            getFloat("TS_TAU", sigma/100),
		SkillDrawProb:       getFloat("TS_DRAW_PROB", 0.05),
		MinSubPoints:        getInt("MIN_SUB_POINTS", 0),
		LeaderboardMinGames: getInt("LEADERBOARD_MIN_GAMES", 2),
		SaveArchivePath:     getEnv("SAVE_ARCHIVE_PATH", "./storage"),
		ReportRateLimit:     getInt("REPORT_RATE_LIMIT", 10),
		ReportRateWindow:    getDuration("REPORT_RATE_WINDOW", time.Minute),
		LeaderboardCacheTTL: getDuration("LEADERBOARD_CACHE_TTL", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
