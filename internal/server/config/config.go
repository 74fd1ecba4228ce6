// Package config собирает конфигурацию сервера из дефолтов,
// переменных окружения и флагов командной строки (в этом порядке).
package config

import "time"

// Config хранит runtime настройки сервера синхронизации
type Config struct {
	// Addr - адрес и порт HTTP сервера
	Addr string
	// DatabasePath - путь к файлу SQLite базы
	DatabasePath string
	// JWTSecret - HMAC секрет для подписи токенов (HS256).
	// Дефолт годится только для разработки.
	JWTSecret string
	// AccessTokenTTL - время жизни токена и сессии
	AccessTokenTTL time.Duration
	// HistoryLimit - сколько версий снапшота хранится на пользователя
	HistoryLimit int
	// StreamHeartbeat - интервал heartbeat в websocket потоке
	StreamHeartbeat time.Duration
	// StreamMaxLifetime - потолок жизни одного websocket соединения
	StreamMaxLifetime time.Duration
	// AuthRateLimit - запросов login/register с одного IP в минуту
	AuthRateLimit int
	// DefaultRateLimit - запросов с одного IP в минуту на остальные пути
	DefaultRateLimit int
	// LogLevel - уровень логирования: debug, info, warn, error
	LogLevel string
}

// LoadDefaults заполняет Config дефолтами для разработки
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabasePath = "tabkeeper.db"
	c.JWTSecret = "dev-secret-change-me"
	c.AccessTokenTTL = 24 * time.Hour
	c.HistoryLimit = 5
	c.StreamHeartbeat = 10 * time.Second
	c.StreamMaxLifetime = 15 * time.Minute
	c.AuthRateLimit = 10
	c.DefaultRateLimit = 300
	c.LogLevel = "info"
}

// Load строит Config: дефолты, поверх них окружение, поверх - флаги
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
