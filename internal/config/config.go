package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingMongoURI is returned when no connection string is configured.
var ErrMissingMongoURI = errors.New("MONGO_URI environment variable is required")

type MongoConfig struct {
	URI            string        `yaml:"uri" validate:"required"`
	Database       string        `yaml:"database" validate:"required"`
	Collection     string        `yaml:"collection" validate:"required"`
	ConnectTimeout time.Duration `yaml:"connect-timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	FileName   string `yaml:"file-name"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig configures the list cache and the rate limiter.
type RedisConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Addr               string        `yaml:"address" validate:"required_if=Enabled true"`
	Password           string        `yaml:"password"`
	Db                 int           `yaml:"db"`
	CacheTTL           time.Duration `yaml:"cache-ttl"`
	RateLimitPerMinute int           `yaml:"rate-limit-per-minute" validate:"gte=0"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `yaml:"service-name"`
}

type KafkaConfig struct {
	Broker  string `yaml:"broker"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group-id"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed-origins"`
}

type Config struct {
	AppName  string `yaml:"app_name"`
	Listen   string `yaml:"listen" validate:"required"`
	Instance string `yaml:"instance"`

	Mongo   MongoConfig   `yaml:"mongo"`
	Log     LogConfig     `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	Tracing TracingConfig `yaml:"tracing"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	CORS    CORSConfig    `yaml:"cors"`
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:8080",
	"http://localhost:3000",
	"https://your-frontend.vercel.app",
}

func defaults() Config {
	return Config{
		AppName:  "skyprice-alerts",
		Listen:   ":3000",
		Instance: "gateway-1",
		Mongo: MongoConfig{
			Database:       "skyPrice",
			Collection:     "flight_alerts",
			ConnectTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Console:    true,
		},
		Redis: RedisConfig{
			Addr:               "localhost:6379",
			CacheTTL:           30 * time.Second,
			RateLimitPerMinute: 120,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "skyprice-alerts",
		},
		Kafka: KafkaConfig{
			Broker:  "localhost:9094",
			Topic:   "alerts.price-sent",
			GroupID: "alerts-price-recorder",
		},
		CORS: CORSConfig{AllowedOrigins: append([]string(nil), defaultOrigins...)},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an optional
// .env file and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	// .env is optional; the real environment always wins over it.
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("unmarshal config yaml error: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file error: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadKafka returns only the Kafka settings, for tools that never touch the store.
func LoadKafka() KafkaConfig {
	_ = godotenv.Load()

	cfg := defaults().Kafka
	setString(&cfg.Broker, "KAFKA_BROKER")
	setString(&cfg.Topic, "KAFKA_TOPIC")
	setString(&cfg.GroupID, "KAFKA_GROUP_ID")
	return cfg
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "DB_NAME")
	setString(&cfg.Mongo.Collection, "COLLECTION")
	if port, ok := lookup("PORT"); ok {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Listen = port
	}
	setString(&cfg.Instance, "INSTANCE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.FileName, "LOG_FILE")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if err := setBool(&cfg.Redis.Enabled, "REDIS_ENABLED"); err != nil {
		return err
	}

	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if err := setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED"); err != nil {
		return err
	}

	setString(&cfg.Kafka.Broker, "KAFKA_BROKER")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")

	if origins, ok := lookup("CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = cfg.CORS.AllowedOrigins[:0]
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Mongo.URI) == "" {
		return ErrMissingMongoURI
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
