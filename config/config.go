package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the server needs from the environment.
type Config struct {
	Env         string
	ServerPort  string
	MongoURI    string
	MongoDBName string
	JWTSecret   string
	LogFile     string
}

// Load reads configuration from the environment, loading a local .env
// file first when one exists.
func Load() (*Config, error) {
	// Missing .env is fine in production; values come from the real env.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "teamon"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogFile:     getEnv("LOG_FILE", "logs/teamon.log"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
