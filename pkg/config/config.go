package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL  string `validate:"required,url"`
	ChannelURL  string `validate:"required,url"`
	BearerToken string `validate:"required"`
	Environment string
	AckTimeout  time.Duration
	LogFile     string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		BackendURL:  getEnv("BACKEND_URL", "http://localhost:3000/api"),
		ChannelURL:  getEnv("CHANNEL_URL", "ws://localhost:3000/socket"),
		BearerToken: getEnv("BEARER_TOKEN", ""),
		Environment: getEnv("ENVIRONMENT", "development"),
		AckTimeout:  time.Duration(getEnvAsInt64("ACK_TIMEOUT_SECONDS", 8)) * time.Second,
		LogFile:     getEnv("LOG_FILE", "messenger.log"),
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
