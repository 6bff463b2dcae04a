package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coursehub/cmd/identity"
	"coursehub/cmd/internal/auth/session"
	"coursehub/cmd/internal/clock"
	"coursehub/cmd/internal/db/migrate"
	"coursehub/cmd/internal/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 2 * time.Second
)

// readinessCheck is one backend probed by /readyz.
type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

// backends owns every external connection the server opened.
type backends struct {
	pool  *pgxpool.Pool
	mongo *mongo.Client
	redis *redis.Client

	users    identity.Store
	sessions session.Store

	limiter    ratelimit.Limiter
	memLimiter *ratelimit.MemoryLimiter

	checks []readinessCheck
}

// openBackends connects the stores selected by cfg. On error, anything already opened is closed.
func openBackends(ctx context.Context, cfg Config, log *slog.Logger, clk clock.Clock) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.close(context.Background(), log)
		}
	}()

	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
				return nil, err
			}
			log.Info("db.migrate.ok")
		}
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.pool = pool
		b.users = identity.NewPostgresStore(pool)
		b.checks = append(b.checks, readinessCheck{name: "postgres", ping: func(ctx context.Context) error {
			return PingDB(ctx, pool, pingTimeout)
		}})
		log.Info("db.enabled.postgres")
	} else {
		b.users = identity.NewMemoryStore()
		log.Warn("db.disabled.memory_users")
	}

	switch cfg.SessionStore {
	case StorePostgres:
		b.sessions = session.NewPostgresStore(b.pool)
	case StoreMongo:
		client, err := NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		b.mongo = client
		st := session.NewMongoStore(client.Database(cfg.MongoDatabase))
		if err := st.EnsureIndexes(ctx, cfg.Session.RetentionWindow); err != nil {
			return nil, err
		}
		b.sessions = st
		b.checks = append(b.checks, readinessCheck{name: "mongo", ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}})
	default:
		b.sessions = session.NewMemoryStore()
	}
	log.Info("session.store", "backend", cfg.SessionStore)

	if !cfg.RateLimit.Enabled() {
		log.Warn("ratelimit.disabled")
		return b, nil
	}
	switch cfg.RateLimitBackend {
	case LimiterRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.redis = client
		b.limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit, "coursehub:ratelimit:")
		b.checks = append(b.checks, readinessCheck{name: "redis", ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	default:
		b.memLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit, clk)
		b.limiter = b.memLimiter
	}
	log.Info("ratelimit.backend", "backend", cfg.RateLimitBackend,
		"attempts", cfg.RateLimit.Limit, "window", cfg.RateLimit.Window.String())
	return b, nil
}

func (b *backends) close(ctx context.Context, log *slog.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Error("redis.close.fail", "err", err)
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Disconnect(ctx); err != nil {
			log.Error("mongo.close.fail", "err", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// NewDBPool builds a pgxpool and validates connectivity.
// Migrations are applied separately (cmd/migrate or COURSEHUB_AUTO_MIGRATE).
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, connectTimeout); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// NewMongoClient connects and pings the primary.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
