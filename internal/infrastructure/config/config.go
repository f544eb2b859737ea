package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
	DatabasePath    string

	// LLM generation and grading
	LLMURL     string // OpenAI-compatible endpoint, e.g. "http://localhost:1234"
	LLMModel   string // model name, e.g. "qwen3-8b"
	LLMTimeout time.Duration

	// Logging
	LogMode string // "dev" or "prod"
	LogFile string // optional rotating file sink

	// Optional infrastructure; empty disables it
	RedisAddr        string
	RabbitMQURI      string
	RabbitMQExchange string
	TracingEnabled   bool

	// Scheduling and generation
	SchedulerTopK            int
	GenerationWorkers        int
	GenerationConcurrency    int
	GenerationConceptTimeout time.Duration
	GenerationMaxRetries     int

	// Durable generation tasks
	TaskMaxAttempts  int
	TaskRetryDelay   time.Duration
	TaskStaleAfter   time.Duration
	TaskPollInterval time.Duration
	PreparingWindow  time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()
	return &Config{
		ServerAddress:   mustGetenv("SERVER_ADDRESS"),
		ShutdownTimeout: mustGetDuration("SHUTDOWN_TIMEOUT"),
		DatabasePath:    getenvDefault("DATABASE_PATH", "mastery.db"),

		LLMURL:     getenvDefault("LLM_URL", "http://localhost:1234"),
		LLMModel:   getenvDefault("LLM_MODEL", "qwen3-8b"),
		LLMTimeout: getDurationDefault("LLM_TIMEOUT", 120*time.Second),

		LogMode: getenvDefault("LOG_MODE", "dev"),
		LogFile: os.Getenv("LOG_FILE"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitMQURI:      os.Getenv("RABBITMQ_URI"),
		RabbitMQExchange: getenvDefault("RABBITMQ_EXCHANGE", "mastery.events"),
		TracingEnabled:   getBoolDefault("TRACING_ENABLED", false),

		SchedulerTopK:            getIntDefault("SCHEDULER_TOP_K", 3),
		GenerationWorkers:        getIntDefault("GENERATION_WORKERS", 2),
		GenerationConcurrency:    getIntDefault("GENERATION_CONCURRENCY", 3),
		GenerationConceptTimeout: getDurationDefault("GENERATION_CONCEPT_TIMEOUT", 3*time.Minute),
		GenerationMaxRetries:     getIntDefault("GENERATION_MAX_RETRIES", 3),

		TaskMaxAttempts:  getIntDefault("TASK_MAX_ATTEMPTS", 5),
		TaskRetryDelay:   getDurationDefault("TASK_RETRY_DELAY", 30*time.Second),
		TaskStaleAfter:   getDurationDefault("TASK_STALE_AFTER", 10*time.Minute),
		TaskPollInterval: getDurationDefault("TASK_POLL_INTERVAL", 5*time.Second),
		PreparingWindow:  getDurationDefault("PREPARING_WINDOW", 5*time.Minute),
	}
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: required environment variable %s is not set", k)
	}
	return v
}

func mustGetDuration(k string) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: required environment variable %s is not set", k)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", k, v, err)
	}
	return d
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getDurationDefault(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", k, v, err)
	}
	return d
}

func getIntDefault(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("config: %s=%q is not a positive integer", k, v)
	}
	return n
}

func getBoolDefault(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid boolean: %v", k, v, err)
	}
	return b
}
