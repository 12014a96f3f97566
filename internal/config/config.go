// config реализует конфигурацию mylist-service: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы кэша.
const (
	CacheDriverNone   = "none"
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	DB       DBConfig      `yaml:"db"`
	Cache    CacheConfig   `yaml:"cache"`
	Limits   LimitsConfig  `yaml:"limits"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — сервисные таймауты (общий дедлайн обработки запроса).
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"5s"`
}

// HTTPConfig — REST API + health/metrics на одном листенере.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"4000"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig — настройки подключения к MongoDB.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// CacheConfig — кэш страниц списка.
// Driver=none отключает кэш полностью: версия всегда 0, каждая выдача идёт из БД.
type CacheConfig struct {
	Driver string `yaml:"driver" env:"CACHE_DRIVER" env-default:"none"`
	// URL Redis, например redis://:pass@host:6379/0. Обязателен для driver=redis.
	URL string `yaml:"url" env:"REDIS_URL"`
	// Время жизни закэшированной страницы.
	PageTTL time.Duration `yaml:"page_ttl" env:"CACHE_PAGE_TTL" env-default:"10m"`
	// Время жизни advisory-лока на пересборку страницы.
	LockTTL time.Duration `yaml:"lock_ttl" env:"CACHE_LOCK_TTL" env-default:"3s"`
	// Пауза перед повторной проверкой кэша, если лок занят.
	LockBackoff time.Duration `yaml:"lock_backoff" env:"CACHE_LOCK_BACKOFF" env-default:"150ms"`
}

// Enabled сообщает, сконфигурирован ли реальный кэш.
func (c CacheConfig) Enabled() bool {
	return c.Driver != "" && c.Driver != CacheDriverNone
}

// LimitsConfig — лимиты на размер страницы.
type LimitsConfig struct {
	// Пагинация: limit<=0 -> берём Default; верхняя граница — Max.
	Default int32 `yaml:"default" env:"DEFAULT_LIMIT" env-default:"25"`
	Max     int32 `yaml:"max"     env:"MAX_LIMIT"     env-default:"100"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)

	switch {
	case path != "":
		c, err = readFile(path)
	case os.Getenv("CONFIG_PATH") != "":
		c, err = readFile(os.Getenv("CONFIG_PATH"))
	default:
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			c, err = readFile("local.yaml")
			break
		}

		// Только ENV.
		if envErr := cleanenv.ReadEnv(&cfg); envErr != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", envErr)
		}
		c = &cfg
	}

	if err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	switch c.Cache.Driver {
	case CacheDriverNone, CacheDriverMemory:
	case CacheDriverRedis:
		if c.Cache.URL == "" {
			return fmt.Errorf("cache.url is required for redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be one of none, memory, redis")
	}

	if c.Cache.PageTTL <= 0 {
		return fmt.Errorf("cache.page_ttl must be > 0")
	}

	if c.Cache.LockTTL <= 0 {
		return fmt.Errorf("cache.lock_ttl must be > 0")
	}

	if c.Cache.LockBackoff < 0 || c.Cache.LockBackoff >= c.Cache.LockTTL {
		return fmt.Errorf("cache.lock_backoff must be in [0, cache.lock_ttl)")
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}

	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}

	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.Limits.Max > 100 {
		return fmt.Errorf("limits.max is too large (<= 100)")
	}

	return nil
}
