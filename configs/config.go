package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func loadEnv() {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

func ConfigOr(key, def string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return def
}

func ConfigInt(key string, def int) int {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ Invalid integer for %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func ConfigFloat(key string, def float64) float64 {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("⚠️ Invalid number for %s=%q, using default %v", key, v, def)
		return def
	}
	return f
}

// ConfigDuration accepts Go duration strings ("30s", "5m").
func ConfigDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid duration for %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}
