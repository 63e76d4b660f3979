package config

import (
	"os"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	RedisURL    string
	MongoURI    string
	MongoDBName string
	JWTSecret   string

	// Broker stream names
	ChatInputTopic  string
	ChatOutputTopic string
	ChatScoreTopic  string

	// Subscriber consumer group
	ConsumerGroup string
	ConsumerName  string

	// Session timing
	SessionTick      time.Duration
	ResponseDeadline time.Duration

	AllowedOrigins string
	Environment    string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "4000"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB", "teachback"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		ChatInputTopic:  getEnv("CHAT_INPUT_TOPIC", "chat.input"),
		ChatOutputTopic: getEnv("CHAT_OUTPUT_TOPIC", "chat.output"),
		ChatScoreTopic:  getEnv("CHAT_SCORE_TOPIC", "chat.score"),

		ConsumerGroup: getEnv("CONSUMER_GROUP", "gateway"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostnameOr("gateway-1")),

		SessionTick:      getDurationEnv("SESSION_TICK", time.Second),
		ResponseDeadline: getDurationEnv("RESPONSE_DEADLINE", 60*time.Second),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func hostnameOr(defaultValue string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return defaultValue
	}
	return name
}
