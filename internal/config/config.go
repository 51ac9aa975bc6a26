package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации layoutd.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	GRPCPort    int `yaml:"grpc_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DecoderConfig struct {
	MaxDimension int `yaml:"max_dimension"`
}

// StorageConfig выбирает бэкенд хранилища записей: memory, badger, maria или mongo.
type StorageConfig struct {
	Backend   string      `yaml:"backend"`
	BadgerDir string      `yaml:"badger_dir"`
	Maria     MariaConfig `yaml:"maria"`
	Mongo     MongoConfig `yaml:"mongo"`
}

type MariaConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DSN возвращает строку подключения для go-sql-driver/mysql
func (m MariaConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// CacheConfig - кэш декодированных раскладок. Пустой RedisAddr включает кэш в памяти.
type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	NatsURL    string `yaml:"nats_url"`
}

// TTL возвращает время жизни записи кэша
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// EventBusConfig: пустой URL включает шину в памяти.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// AuthConfig - редакторы раскладок. UserStore "maria"/"mongo" использует
// параметры подключения из storage.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"` // base64, не меньше 32 байт; пусто — случайный
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	UserStore     string `yaml:"user_store"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
}

// TokenTTL возвращает срок жизни JWT
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.TokenTTLHours) * time.Hour
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "LAYOUTD_REST_PORT", 8088)
}

// GetGRPCPort возвращает порт gRPC health-сервиса
func (s *ServerConfig) GetGRPCPort() int {
	return getPortWithEnvFallback(s.GRPCPort, "LAYOUTD_GRPC_PORT", 9090)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "LAYOUTD_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает конфигурацию для локального запуска без внешних сервисов
func Default() *Config {
	return &Config{
		Decoder: DecoderConfig{MaxDimension: 256},
		Storage: StorageConfig{
			Backend:   "memory",
			BadgerDir: "data/layouts",
			Maria: MariaConfig{
				Host:     "localhost",
				Port:     3306,
				Database: "layoutd",
				Username: "layoutd",
			},
			Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "layoutd"},
		},
		Cache:     CacheConfig{TTLSeconds: 600},
		EventBus:  EventBusConfig{Stream: "LAYOUTS", Retention: 24},
		Telemetry: TelemetryConfig{ServiceName: "layoutd"},
		Auth:      AuthConfig{TokenTTLHours: 24, UserStore: "memory", AdminUser: "admin"},
		Logging:   LoggingConfig{Dir: "logs", ConsoleLevel: "info", FileLevel: "debug"},
	}
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берётся ENV LAYOUTD_CONFIG; если и он пуст — возвращаются дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("LAYOUTD_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Секреты удобнее не держать в файле
	if secret := os.Getenv("LAYOUTD_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if pw := os.Getenv("LAYOUTD_ADMIN_PASSWORD"); pw != "" {
		cfg.Auth.AdminPassword = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить дефолтами
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "badger", "maria", "mongo":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Auth.UserStore {
	case "memory", "maria", "mongo":
	default:
		return fmt.Errorf("auth.user_store: unknown store %q", c.Auth.UserStore)
	}
	if c.Decoder.MaxDimension < 0 {
		return fmt.Errorf("decoder.max_dimension must not be negative")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative")
	}
	return nil
}
