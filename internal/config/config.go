package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID  string
	Region     string
	LogLevel   string
	KMSKeyName string

	// BaseURL is the externally reachable address used to build OAuth
	// redirect URIs.
	BaseURL string
	Port    string
}

func New() *Config {
	// best-effort: a missing .env is the normal case on Cloud Run
	_ = godotenv.Load()

	return &Config{
		ProjectID:  os.Getenv("PROJECTID"),
		Region:     os.Getenv("REGION"),
		LogLevel:   os.Getenv("LOGLEVEL"),
		KMSKeyName: os.Getenv("KMSKEYNAME"),
		BaseURL:    getEnvOr("BASEURL", "http://localhost:1337"),
		Port:       getEnvOr("PORT", "8080"),
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
