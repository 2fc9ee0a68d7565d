package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	Port          string        `envconfig:"PORT" default:"8080"`
	AppEnv        string        `envconfig:"APP_ENV" default:"development"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"json"`
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"mongo"`
	MongoURI      string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	DBName        string        `envconfig:"DB_NAME" default:"perfume-store"`
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	AccessTTL     time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"20m"`
	RefreshTTL    time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	RequestTTL    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`
	UploadDir     string        `envconfig:"UPLOAD_DIR" default:"./public/uploads"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL"`

	Redis    RedisConfig
	RabbitMQ RabbitMQConfig

	// EnvFileErr records why .env was not loaded; it is informational only.
	EnvFileErr error `ignored:"true"`
}

type RedisConfig struct {
	URL            string        `envconfig:"REDIS_URL"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

type RabbitMQConfig struct {
	URL           string `envconfig:"RABBITMQ_URL"`
	OrderExchange string `envconfig:"ORDER_EXCHANGE" default:"orders_exchange"`
}

// Load reads an optional .env file and decodes the process environment.
func Load() (*Config, error) {
	dotenvErr := godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.EnvFileErr = dotenvErr
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
