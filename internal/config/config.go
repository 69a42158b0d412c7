// Package config загружает конфигурацию сервиса.
// Приоритет: переменные окружения > YAML-файлы > значения по умолчанию.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dormlink/internal/logger"
	"gopkg.in/yaml.v3"
)

// loadEnv читает .env только вне production (в контейнере конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		if idx := strings.LastIndex(parent, "/"); idx <= 0 {
			return
		} else {
			dir = parent[:idx]
			if dir == "" {
				dir = "/"
			}
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// DatabaseConfig — настройки подключения к БД.
type DatabaseConfig struct {
	URL            string `yaml:"database_url"`
	MaxConnections int    `yaml:"db_max_connections"`
}

// RedisConfig — Redis (сессии пользователей).
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Config содержит настройки приложения, БД и сессионного хранилища.
type Config struct {
	// Сервер
	ServerAddr   string        `yaml:"server_addr"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	// APIAnonKey — анонимный ключ API: клиент обязан передавать его в X-Api-Key.
	// Отсутствие — фатальная ошибка запуска.
	APIAnonKey string `yaml:"-"`

	// База данных (загружается из config/database.yaml)
	Database DatabaseConfig `yaml:"-"`

	// Redis — хранилище сессий.
	Redis RedisConfig `yaml:"-"`

	// WebSocket
	MaxWSConnections int `yaml:"max_ws_connections"`
	WSSendBufferSize int `yaml:"ws_send_buffer_size"`

	// CORS
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	// Логирование
	LogLevel string `yaml:"log_level"`

	// PushVAPIDPublicKey — публичный VAPID-ключ для подписки в браузере.
	PushVAPIDPublicKey string `yaml:"-"`
	// PushVAPIDPrivateKey — приватный VAPID-ключ (пуши отключены, если пуст).
	PushVAPIDPrivateKey string `yaml:"-"`
	// PushSubscriber — контактный mailto для VAPID.
	PushSubscriber string `yaml:"-"`
}

// DatabaseURL возвращает строку подключения к БД.
func (c *Config) DatabaseURL() string { return c.Database.URL }

// DBMaxConnections возвращает максимальное число соединений в пуле.
func (c *Config) DBMaxConnections() int {
	if c.Database.MaxConnections <= 0 {
		return 20
	}
	return c.Database.MaxConnections
}

// yamlConfig — промежуточная структура для парсинга app YAML (без БД).
type yamlConfig struct {
	ServerAddr         string `yaml:"server_addr"`
	ReadTimeout        int    `yaml:"read_timeout"`
	WriteTimeout       int    `yaml:"write_timeout"`
	IdleTimeout        int    `yaml:"idle_timeout"`
	MaxWSConnections   int    `yaml:"max_ws_connections"`
	WSSendBufferSize   int    `yaml:"ws_send_buffer_size"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
	LogLevel           string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		ServerAddr:         ":8080",
		ReadTimeout:        15,
		WriteTimeout:       15,
		IdleTimeout:        60,
		MaxWSConnections:   10000,
		WSSendBufferSize:   256,
		CORSAllowedOrigins: "*",
		LogLevel:           "info",
	}

	appPaths := []string{os.Getenv("CONFIG_PATH"), "config/api.yaml"}
	for _, path := range appPaths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	// Конфигурация БД: DATABASE_CONFIG_PATH > config/database.yaml. Дефолта нет:
	// DATABASE_URL обязателен (кроме режима -dev со встроенным PostgreSQL).
	var dbURL string
	dbMaxConn := 20
	dbPaths := []string{os.Getenv("DATABASE_CONFIG_PATH"), "config/database.yaml"}
	for _, path := range dbPaths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var dc struct {
			URL            string `yaml:"database_url"`
			MaxConnections int    `yaml:"db_max_connections"`
		}
		if err := yaml.Unmarshal(data, &dc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v", path, err)
		} else {
			dbURL = dc.URL
			if dc.MaxConnections > 0 {
				dbMaxConn = dc.MaxConnections
			}
			logger.Infof("config: загружен %s", path)
		}
		break
	}
	dbURL = envStr("DATABASE_URL", dbURL)
	dbMaxConn = envInt("DB_MAX_CONNECTIONS", dbMaxConn)
	if dbMaxConn <= 0 {
		dbMaxConn = 20
	}

	cfg := &Config{
		ServerAddr:          envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:         time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout:        time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:         time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		APIAnonKey:          os.Getenv("API_ANON_KEY"),
		Database:            DatabaseConfig{URL: dbURL, MaxConnections: dbMaxConn},
		Redis:               RedisConfig{URL: envStr("REDIS_URL", "redis://localhost:6379")},
		MaxWSConnections:    envInt("MAX_WS_CONNECTIONS", yc.MaxWSConnections),
		WSSendBufferSize:    envInt("WS_SEND_BUFFER_SIZE", yc.WSSendBufferSize),
		CORSAllowedOrigins:  envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		LogLevel:            envStr("LOG_LEVEL", yc.LogLevel),
		PushVAPIDPublicKey:  os.Getenv("PUSH_VAPID_PUBLIC_KEY"),
		PushVAPIDPrivateKey: os.Getenv("PUSH_VAPID_PRIVATE_KEY"),
		PushSubscriber:      envStr("PUSH_SUBSCRIBER", "mailto:admin@dormlink.local"),
	}

	if os.Getenv("APP_ENV") == "production" {
		if cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*" {
			logger.Errorf("config: в production задайте CORS_ALLOWED_ORIGINS (явный список origins, не *)")
		}
	}

	return cfg
}

// MustValidate проверяет обязательные настройки: URL хранилища и анонимный ключ API.
// devMode подменяет внешнюю БД встроенным PostgreSQL, поэтому DATABASE_URL не требуется.
func (c *Config) MustValidate(devMode bool) {
	if c.APIAnonKey == "" {
		logger.Errorf("config: API_ANON_KEY не задан — остановка")
		os.Exit(1)
	}
	if !devMode && c.Database.URL == "" {
		logger.Errorf("config: DATABASE_URL не задан — остановка (или запустите с -dev)")
		os.Exit(1)
	}
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
