// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	RabbitURL               string `yaml:"rabbit_url" env:"RABBIT_URL"`
	OpenAIAPIKey            string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	InternalAPIKey          string `yaml:"internal_api_key" env:"INTERNAL_API_KEY"`
	DevTokenEnabled         bool   `yaml:"dev_token_enabled" env:"DEV_TOKEN_ENABLED" env-default:"false"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Retention               `yaml:"retention"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"ADDRESS_HTTP" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"ADDRESS_REDIS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном. Секрет читается только
// из переменной окружения JWT_SIGNING_KEY и не хранится в файле.
type JWTToken struct {
	JWTSecretKey     string        `env:"JWT_SIGNING_KEY"`
	TokenTTL         time.Duration `yaml:"token_ttl" env-default:"1h"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold" env-default:"30m"`
	StrictSubject    bool          `yaml:"strict_subject" env-default:"true"`
}

// Retention структура для настройки хранения и удаления истории
type Retention struct {
	GracePeriod time.Duration `yaml:"grace_period" env-default:"720h"`
	SweepLimit  int           `yaml:"sweep_limit" env-default:"100"`
	CronSpec    string        `yaml:"cron_spec" env-default:"@daily"`
}

// RateLimit структура для настройки ограничения частоты запросов
type RateLimit struct {
	RequestsPerWindow int           `yaml:"requests_per_window" env-default:"60"`
	Window            time.Duration `yaml:"window" env-default:"1m"`
}

// MustLoad функция для загрузки конфига, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
