package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv накладывает на Config переменные окружения TABKEEPER_*
func parseEnv(c *Config) {
	if v := os.Getenv("TABKEEPER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("TABKEEPER_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("TABKEEPER_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("TABKEEPER_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AccessTokenTTL = d
		}
	}
	if v := os.Getenv("TABKEEPER_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HistoryLimit = n
		}
	}
	if v := os.Getenv("TABKEEPER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
