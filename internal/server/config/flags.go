package config

import (
	"flag"
	"time"
)

// parseFlags накладывает на Config флаги командной строки.
// Флаги имеют приоритет над окружением.
func parseFlags(c *Config, args []string) error {
	fs := flag.NewFlagSet("tabkeeper-server", flag.ContinueOnError)

	fs.StringVar(&c.Addr, "a", c.Addr, "address and port to run server")
	fs.StringVar(&c.DatabasePath, "d", c.DatabasePath, "path to sqlite database file")
	fs.StringVar(&c.JWTSecret, "s", c.JWTSecret, "JWT HMAC secret key")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")

	tokenTTL := fs.Int("t", int(c.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	fs.IntVar(&c.HistoryLimit, "history-limit", c.HistoryLimit, "snapshot versions kept per user")
	fs.IntVar(&c.AuthRateLimit, "auth-rate", c.AuthRateLimit, "auth requests per IP per minute")
	fs.IntVar(&c.DefaultRateLimit, "rate", c.DefaultRateLimit, "requests per IP per minute")

	if err := fs.Parse(args); err != nil {
		return err
	}

	c.AccessTokenTTL = time.Duration(*tokenTTL) * time.Minute

	return nil
}
