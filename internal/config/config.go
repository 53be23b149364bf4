// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server's runtime settings, read from the environment with
// sensible defaults. A .env file is honored via godotenv in main.
type Config struct {
	Port string

	QuestionServiceURL string
	RunnerServiceURL   string

	RedisAddr   string
	RedisDB     int
	ResultQueue string

	MatchInterval  time.Duration
	SwapTimeout    time.Duration
	DrawTimeout    time.Duration
	StartCountdown time.Duration

	QuestionsPerMatch int
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Port:               getEnv("PORT", "8080"),
		QuestionServiceURL: getEnv("QUESTION_SERVICE_URL", "http://localhost:3000"),
		RunnerServiceURL:   getEnv("RUNNER_SERVICE_URL", "http://localhost:3001"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		ResultQueue:        getEnv("RESULT_QUEUE_NAME", ""),
		MatchInterval:      getEnvDuration("MATCH_INTERVAL", 5*time.Second),
		SwapTimeout:        getEnvDuration("SWAP_TIMEOUT", 15*time.Second),
		DrawTimeout:        getEnvDuration("DRAW_TIMEOUT", 15*time.Second),
		StartCountdown:     getEnvDuration("START_COUNTDOWN", 3*time.Second),
		QuestionsPerMatch:  getEnvInt("QUESTIONS_PER_MATCH", 3),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
