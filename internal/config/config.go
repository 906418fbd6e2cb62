package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	UserStoreMongo    = "mongo"
	UserStorePostgres = "postgres"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Env  string `env:"ENV"  env-default:"local" env-description:"local, dev or prod"`
	Port string `env:"PORT" env-default:"8080"`

	MongoURL     string `env:"MONGODB_URL"   env-default:"mongodb://localhost:27017"`
	DatabaseName string `env:"DATABASE_NAME" env-default:"zakat_db"`

	UserStore   string `env:"USER_STORE"   env-default:"mongo" env-description:"mongo or postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	SummaryCacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" env-default:"5m"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET"  env-default:"zakat-exports"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`

	JWTSecret          string   `env:"JWT_SECRET"`
	TokenExpireMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	BcryptCost         int      `env:"BCRYPT_COST"                 env-default:"10"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"        env-default:"*" env-separator:","`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpireMinutes) * time.Minute
}

// RedisEnabled reports whether the statistics cache should be used.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// MinioEnabled reports whether exports are archived to object storage.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Env {
	case "local", "dev", "prod":
	default:
		problems = append(problems, fmt.Sprintf("invalid env '%s': must be one of local, dev, prod", c.Env))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.MongoURL); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
		problems = append(problems, fmt.Sprintf("invalid MONGODB_URL '%s': scheme must be mongodb or mongodb+srv", c.MongoURL))
	}
	if c.DatabaseName == "" {
		problems = append(problems, "DATABASE_NAME cannot be empty")
	}

	switch c.UserStore {
	case UserStoreMongo:
	case UserStorePostgres:
		if c.PostgresDSN == "" {
			problems = append(problems, "POSTGRES_DSN is required when USER_STORE is postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid user store '%s': must be mongo or postgres", c.UserStore))
	}

	if c.MinioEnabled() && (c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "") {
		problems = append(problems, "MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required when MINIO_ENDPOINT is set")
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.TokenExpireMinutes < 1 {
		problems = append(problems, fmt.Sprintf("invalid token lifetime %d minutes: must be at least 1", c.TokenExpireMinutes))
	}
	if c.RedisEnabled() && c.SummaryCacheTTL <= 0 {
		problems = append(problems, "SUMMARY_CACHE_TTL must be positive when REDIS_ADDR is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
