package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Oracle    OracleConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах).
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах).
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// AuthConfig содержит настройки токенов
type AuthConfig struct {
	// JWTSecret подписывает сессионные и игровые токены (HS256).
	JWTSecret string `mapstructure:"jwt_secret"`

	// SessionTTL — время жизни сессионного токена (cookie).
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// PlayerTokenTTL — время жизни игрового токена, привязанного к (pin, player_id).
	PlayerTokenTTL time.Duration `mapstructure:"player_token_ttl"`

	// SecureCookies включает флаг Secure на выставляемых куках.
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// CORSConfig содержит настройки CORS
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig содержит настройки лимита запросов по IP
type RateLimitConfig struct {
	// Requests — максимум запросов на IP за окно.
	Requests int `mapstructure:"requests"`

	// WindowSec — длина окна в секундах.
	WindowSec int `mapstructure:"window_sec"`
}

// OracleConfig содержит настройки удаленного генератора вопросов
type OracleConfig struct {
	// Enabled включает обращение к удаленному провайдеру; иначе сразу
	// используется встроенный пул вопросов.
	Enabled bool `mapstructure:"enabled"`

	// AuthURL — endpoint выдачи OAuth access-токена.
	AuthURL string `mapstructure:"auth_url"`

	// APIURL — endpoint chat/completions.
	APIURL string `mapstructure:"api_url"`

	// AuthKey — base64 ключ для Authorization: Basic.
	AuthKey string `mapstructure:"auth_key"`

	Scope      string        `mapstructure:"scope"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SkipVerify bool          `mapstructure:"skip_verify"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 10)
	vip.SetDefault("server.writetimeout", 10)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("auth.session_ttl", 168*time.Hour)
	vip.SetDefault("auth.player_token_ttl", 8*time.Hour)
	vip.SetDefault("ratelimit.requests", 90)
	vip.SetDefault("ratelimit.window_sec", 60)
	vip.SetDefault("oracle.scope", "GIGACHAT_API_PERS")
	vip.SetDefault("oracle.model", "GigaChat")
	vip.SetDefault("oracle.timeout", 40*time.Second)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readtimeout", "SERVER_READ_TIMEOUT")
	vip.BindEnv("server.writetimeout", "SERVER_WRITE_TIMEOUT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("auth.jwt_secret", "JWT_SECRET")
	vip.BindEnv("auth.session_ttl", "AUTH_SESSION_TTL")
	vip.BindEnv("auth.player_token_ttl", "AUTH_PLAYER_TOKEN_TTL")
	vip.BindEnv("auth.secure_cookies", "AUTH_SECURE_COOKIES")

	vip.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	vip.BindEnv("ratelimit.requests", "RATELIMIT_REQUESTS")
	vip.BindEnv("ratelimit.window_sec", "RATELIMIT_WINDOW_SEC")

	vip.BindEnv("oracle.enabled", "ORACLE_ENABLED")
	vip.BindEnv("oracle.auth_url", "ORACLE_AUTH_URL")
	vip.BindEnv("oracle.api_url", "ORACLE_API_URL")
	vip.BindEnv("oracle.auth_key", "ORACLE_AUTH_KEY")
	vip.BindEnv("oracle.scope", "ORACLE_SCOPE")
	vip.BindEnv("oracle.model", "ORACLE_MODEL")
	vip.BindEnv("oracle.timeout", "ORACLE_TIMEOUT")
	vip.BindEnv("oracle.skip_verify", "ORACLE_SKIP_VERIFY")

	// 3. Путь к файлу конфигурации (не страшно, если файла нет — есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим (Viper объединит файл, env и умолчания)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// CORS_ALLOWED_ORIGINS задается списком через запятую
	if len(cfg.CORS.AllowedOrigins) == 1 && strings.Contains(cfg.CORS.AllowedOrigins[0], ",") {
		cfg.CORS.AllowedOrigins = strings.Split(cfg.CORS.AllowedOrigins[0], ",")
	}

	// 5. Логирование конфигурации (только вне release режима)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Session TTL: %v", cfg.Auth.SessionTTL)
		log.Printf("Player Token TTL: %v", cfg.Auth.PlayerTokenTTL)
		log.Printf("Rate Limit: %d req / %d sec", cfg.RateLimit.Requests, cfg.RateLimit.WindowSec)
		log.Printf("Oracle Enabled: %t", cfg.Oracle.Enabled)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Oracle.Enabled && (cfg.Oracle.AuthKey == "" || cfg.Oracle.AuthURL == "" || cfg.Oracle.APIURL == "") {
		return nil, fmt.Errorf("oracle is enabled but auth_key/auth_url/api_url are incomplete (check ORACLE_* env vars)")
	}

	return &cfg, nil
}
