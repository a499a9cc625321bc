package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MINDSCAPE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MINDSCAPE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// StorageDriver returns the configured storage backend.
// Defaults to "memory" if not set. Valid values: memory, redis, postgres.
func StorageDriver() string {
	d := os.Getenv("STORAGE_DRIVER")
	if d == "" {
		return "memory"
	}
	return d
}

func RedisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return "localhost:6379"
	}
	return addr
}

func RedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// AIProvider returns the configured AI provider.
// Defaults to "openai" if not set. Valid values: openai, mock.
func AIProvider() string {
	p := os.Getenv("AI_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// AIAPIKey returns the API key for the configured AI provider.
func AIAPIKey() string {
	switch AIProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// WorkerConcurrency returns the background job pool width.
// Defaults to 4 if not set.
func WorkerConcurrency() int {
	n, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// RateLimitRPS returns the AI provider requests-per-second limit.
// Defaults to 10 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 10
	}
	return rps
}

// RateLimitBurst returns the burst size for AI rate limiting.
// Defaults to 5 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 5
	}
	return burst
}

// MetricsAddr returns the listen address for the metrics/health endpoint.
// Defaults to ":9090" if not set.
func MetricsAddr() string {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return ":9090"
	}
	return addr
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
