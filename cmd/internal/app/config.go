package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	authapi "coursehub/cmd/internal/auth/api"
	"coursehub/cmd/internal/auth/session"
	"coursehub/cmd/internal/ratelimit"
	"coursehub/cmd/security/password"
	"coursehub/cmd/security/token"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "COURSEHUB_"

// ErrConfig wraps every configuration failure reported at startup.
var ErrConfig = errors.New("app: invalid configuration")

// Store and limiter backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// CORSAllowedOrigins enables CORS when non-empty. Entries may use one "*" wildcard.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSMaxAgeSeconds  int      `env:"CORS_MAX_AGE_SECONDS" envDefault:"600"`

	SessionStore  string `env:"SESSION_STORE" envDefault:"memory"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"0"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"coursehub"`

	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RedisURL         string `env:"REDIS_URL"`

	Session   session.Config
	Token     token.Config
	RateLimit ratelimit.Config
	Auth      authapi.Config
	Password  password.Config
}

// LoadConfig reads the optional dotenv files (".env" when none are given), then
// COURSEHUB_* variables. Variables already set in the process win over dotenv values.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: dotenv %s: %v", ErrConfig, f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins

	if c.Password.Params.Parallelism == 0 {
		c.Password.Params.Parallelism = password.DefaultConfig().Params.Parallelism
	}
	if c.Auth.MaxBodyBytes <= 0 {
		c.Auth.MaxBodyBytes = authapi.DefaultConfig().MaxBodyBytes
	}
}

// Validate fails fast on combinations the server cannot run with.
func (c Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := c.Password.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if n := len(strings.TrimSpace(c.Token.Secret)); n < token.MinSecretBytes {
		return fmt.Errorf("%w: COURSEHUB_TOKEN_SECRET must be at least %d bytes, got %d", ErrConfig, token.MinSecretBytes, n)
	}
	if c.Token.Leeway < token.MinLeeway {
		return fmt.Errorf("%w: COURSEHUB_TOKEN_LEEWAY must be at least %s, got %s", ErrConfig, token.MinLeeway, c.Token.Leeway)
	}

	switch c.SessionStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: session store postgres needs COURSEHUB_DATABASE_URL", ErrConfig)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: session store mongo needs COURSEHUB_MONGO_URI", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session store %q", ErrConfig, c.SessionStore)
	}

	switch c.RateLimitBackend {
	case LimiterMemory:
	case LimiterRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: rate limit backend redis needs COURSEHUB_REDIS_URL", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown rate limit backend %q", ErrConfig, c.RateLimitBackend)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("%w: log format must be json or console, got %q", ErrConfig, c.LogFormat)
	}
	if c.AutoMigrate && c.DatabaseURL == "" {
		return fmt.Errorf("%w: auto migrate needs COURSEHUB_DATABASE_URL", ErrConfig)
	}
	return nil
}
