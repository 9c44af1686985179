package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"bestiary-server/internal/logger"
)

// secretsDir - стандартный путь Docker Secrets.
var secretsDir = "/run/secrets"

// Config - конфигурация HTTP сервиса генерации монстров.
type Config struct {
	AppEnv     string `env:"APP_ENV" env-default:"development"`
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	Logger     logger.Config

	Database   DatabaseConfig
	AI         AIConfig
	Storage    StorageConfig
	RabbitMQ   RabbitMQConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Pipeline   PipelineConfig
	BriefRules BriefPolicyConfig

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
}

// DatabaseConfig - подключение к PostgreSQL.
type DatabaseConfig struct {
	Host        string        `env:"DB_HOST" env-default:"localhost"`
	Port        string        `env:"DB_PORT" env-default:"5432"`
	User        string        `env:"DB_USER" env-default:"postgres"`
	Password    string        `env:"DB_PASSWORD"` // может быть переопределен секретом db_password
	Name        string        `env:"DB_NAME" env-default:"bestiary"`
	SSLMode     string        `env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns    int           `env:"DB_MAX_CONNECTIONS" env-default:"10"`
	IdleTimeout time.Duration `env:"DB_MAX_IDLE" env-default:"5m"`
	// Применять ли миграции при старте
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// AIConfig - текстовая и графическая модели.
type AIConfig struct {
	ClientType string        `env:"AI_CLIENT_TYPE" env-default:"openai"` // openai или ollama
	BaseURL    string        `env:"AI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model      string        `env:"AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey     string        `env:"AI_API_KEY"` // может быть переопределен секретом ai_api_key
	Timeout    time.Duration `env:"AI_TIMEOUT" env-default:"120s"`

	Temperature         float64 `env:"AI_TEMPERATURE" env-default:"0.78"`
	TopP                float64 `env:"AI_TOP_P" env-default:"1"`
	MaxCompletionTokens int     `env:"AI_MAX_COMPLETION_TOKENS" env-default:"2048"`

	// Генерация изображений всегда идет через OpenAI-совместимый API.
	ImageBaseURL string `env:"AI_IMAGE_BASE_URL" env-default:"https://api.openai.com/v1"`
	ImageModel   string `env:"AI_IMAGE_MODEL" env-default:"dall-e-3"`
	ImageSize    string `env:"AI_IMAGE_SIZE" env-default:"1024x1024"`
}

// StorageConfig - S3-совместимое хранилище иллюстраций.
type StorageConfig struct {
	Endpoint      string `env:"STORAGE_ENDPOINT" env-required:"true"`
	AccessKey     string `env:"STORAGE_ACCESS_KEY" env-required:"true"`
	SecretKey     string `env:"STORAGE_SECRET_KEY"` // может быть переопределен секретом storage_secret_key
	Bucket        string `env:"STORAGE_BUCKET" env-default:"bestiary"`
	UseSSL        bool   `env:"STORAGE_USE_SSL" env-default:"false"`
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" env-required:"true"`
	Folder        string `env:"STORAGE_FOLDER" env-default:"Monsters"`
}

// RabbitMQConfig - очередь осиротевших иллюстраций. Пустой URL отключает очередь,
// тогда файлы удаляются сразу.
type RabbitMQConfig struct {
	URL         string `env:"RABBITMQ_URL" env-default:""`
	OrphanQueue string `env:"RABBITMQ_ORPHAN_QUEUE" env-default:"monster_orphaned_assets"`
}

// RedisConfig - лимит генераций. Нулевой лимит отключает проверку.
type RedisConfig struct {
	Addr                 string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password             string        `env:"REDIS_PASSWORD"`
	DB                   int           `env:"REDIS_DB" env-default:"0"`
	GenerationRateLimit  int           `env:"GENERATION_RATE_LIMIT" env-default:"0"`
	GenerationRateWindow time.Duration `env:"GENERATION_RATE_WINDOW" env-default:"1h"`
}

// AuthConfig - проверка JWT, выпущенных сервисом аутентификации.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"` // может быть переопределен секретом jwt_secret
}

// PipelineConfig - ограничения времени для стадий конвейера.
type PipelineConfig struct {
	SynthesizeTimeout time.Duration `env:"STAGE_TIMEOUT_SYNTHESIZE" env-default:"90s"`
	IllustrateTimeout time.Duration `env:"STAGE_TIMEOUT_ILLUSTRATE" env-default:"150s"`
	IngestTimeout     time.Duration `env:"STAGE_TIMEOUT_INGEST" env-default:"30s"`
	PersistTimeout    time.Duration `env:"STAGE_TIMEOUT_PERSIST" env-default:"10s"`
	FetchMaxBytes     int64         `env:"ILLUSTRATION_MAX_BYTES" env-default:"20971520"`
	OrphanTimeout     time.Duration `env:"ORPHAN_REPORT_TIMEOUT" env-default:"10s"`
}

// BriefPolicyConfig - проверки брифа. По умолчанию выключены.
type BriefPolicyConfig struct {
	MaxFieldLength int  `env:"BRIEF_MAX_FIELD_LENGTH" env-default:"0"`
	RequireName    bool `env:"BRIEF_REQUIRE_NAME" env-default:"false"`
}

// DSN возвращает строку подключения к PostgreSQL.
func (c DatabaseConfig) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// GetAllowedOrigins разбивает CORSAllowedOrigins по запятой.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// Load загружает конфигурацию из .env, переменных окружения и Docker secrets.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	cfg.Database.Password = SecretOr("db_password", cfg.Database.Password)
	cfg.AI.APIKey = SecretOr("ai_api_key", cfg.AI.APIKey)
	cfg.Storage.SecretKey = SecretOr("storage_secret_key", cfg.Storage.SecretKey)
	cfg.Auth.JWTSecret = SecretOr("jwt_secret", cfg.Auth.JWTSecret)
	cfg.Redis.Password = SecretOr("redis_password", cfg.Redis.Password)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: env=%s port=%s ai=%s/%s image=%s storage=%s/%s rabbitmq=%t rate_limit=%d",
		cfg.AppEnv, cfg.ServerPort, cfg.AI.ClientType, cfg.AI.Model, cfg.AI.ImageModel,
		cfg.Storage.Endpoint, cfg.Storage.Bucket, cfg.RabbitMQ.URL != "", cfg.Redis.GenerationRateLimit)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is not configured (JWT_SECRET or /run/secrets/jwt_secret)")
	}
	// Ключ нужен для генерации изображений даже при локальной текстовой модели
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI API key is not configured (AI_API_KEY or /run/secrets/ai_api_key)")
	}
	if c.Storage.SecretKey == "" {
		return fmt.Errorf("storage secret key is not configured (STORAGE_SECRET_KEY or /run/secrets/storage_secret_key)")
	}
	if c.Storage.Folder == "" {
		return fmt.Errorf("STORAGE_FOLDER must not be empty")
	}
	if c.Redis.GenerationRateLimit > 0 && c.Redis.GenerationRateWindow < time.Millisecond {
		return fmt.Errorf("GENERATION_RATE_WINDOW must be at least 1ms, got %s", c.Redis.GenerationRateWindow)
	}
	return nil
}

// SecretOr читает секрет из файла Docker Secrets, а при его отсутствии возвращает fallback.
func SecretOr(name, fallback string) string {
	data, err := os.ReadFile(secretsDir + "/" + name)
	if err != nil {
		return fallback
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return fallback
	}
	return secret
}
