package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Groq
	GroqAPIKey         string // optional server-side fallback key
	GroqModel          string
	GroqBaseURL        string
	GroqConcurrentReqs int

	// GitHub
	GitHubAPIURL string
	GitHubToken  string // optional fallback token for unauthenticated clients

	// Redis (optional GitHub response cache)
	RedisURL string

	// Rate limiting
	ChatRateLimit int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8000"),
		Env:                getEnvOrDefault("ENV", "development"),
		GroqAPIKey:         getEnvOrDefault("GROQ_API_KEY", ""),
		GroqModel:          getEnvOrDefault("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL:        getEnvOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqConcurrentReqs: getEnvAsIntOrDefault("GROQ_CONCURRENT_REQUESTS", 5),
		GitHubAPIURL:       getEnvOrDefault("GITHUB_API_URL", "https://api.github.com"),
		GitHubToken:        getEnvOrDefault("GITHUB_TOKEN", ""),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		ChatRateLimit:      getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 20),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "*"),
	}

	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
