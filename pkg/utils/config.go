package utils

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv pulls in a .env file from the working directory when one
// exists. Real environment variables always win; a missing file is not
// an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}
}

func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func GetEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a bool, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := GetEnv("COMICSHELF_JWT_SECRET", "")
	if secret == "" {
		// dev default (override for any real deployment)
		secret = "dev-secret-change-me"
		log.Println("[config] COMICSHELF_JWT_SECRET not set, using dev default")
	}

	return AuthConfig{
		JWTSecret: secret,
		JWTIssuer: GetEnv("COMICSHELF_JWT_ISSUER", "comicshelf"),
		JWTTTL:    GetEnvDuration("COMICSHELF_JWT_TTL", 24*time.Hour),
	}
}
