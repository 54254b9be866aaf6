// Package app wires the platform components from configuration. Both the
// HTTP server and platformctl build on it.
package app

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/config"
	"github.com/iliyamo/venture-platform/internal/database"
	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/fanout"
	"github.com/iliyamo/venture-platform/internal/identity"
	"github.com/iliyamo/venture-platform/internal/intake"
	"github.com/iliyamo/venture-platform/internal/platform"
	"github.com/iliyamo/venture-platform/internal/push"
	"github.com/iliyamo/venture-platform/internal/retention"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
)

// App holds the constructed components.
type App struct {
	Cfg       config.Config
	Log       *zap.Logger
	Docs      store.DocumentStore
	Redis     *redis.Client
	Claims    identity.ClaimStore
	Registry  *roles.Registry
	Audit     *audit.Writer
	Authority *roles.Authority
	Pipeline  *fanout.Pipeline
	Platform  *platform.Service
	Sweeper   *retention.Sweeper
	Publisher events.Publisher
	Intake    *intake.Service
	// Consumer is nil when no broker is configured.
	Consumer *events.Consumer

	closers []io.Closer
}

// New builds the application. Redis is optional: without it claims are
// kept in memory and pushes are only logged.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	switch cfg.StoreDriver {
	case "memory":
		a.Docs = store.NewMemory()
		log.Warn("using in-memory document store; data is lost on exit")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := database.Migrate(mctx, db); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Docs = store.NewMySQL(db)
	}

	a.Redis = config.NewRedisClient(config.LoadRedisConfig())
	var transport push.Transport
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis)
		a.Claims = identity.NewRedisClaims(a.Redis, "claims")
		transport = push.NewRedisTransport(a.Redis, "push:")
	} else {
		log.Warn("redis unavailable; claims kept in memory, rate limiting and caching disabled")
		a.Claims = identity.NewMemoryClaims()
		transport = push.LogTransport{Log: log}
	}

	a.Registry = roles.Default()
	if cfg.RolesPath != "" {
		reg, err := roles.Load(cfg.RolesPath)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Registry = reg
	}

	a.Audit = audit.NewWriter(a.Docs, log)
	a.Authority = roles.NewAuthority(a.Registry, a.Docs, a.Claims, a.Audit, log)
	a.Pipeline = fanout.NewPipeline(a.Docs, transport, a.Audit, log, fanout.Options{
		BatchSize:   cfg.Fanout.BatchSize,
		AudienceTTL: cfg.Fanout.AudienceTTL,
	})
	a.Platform = platform.NewService(a.Docs, a.Audit, log)
	a.Sweeper = retention.NewSweeper(a.Docs, a.Audit, log, retention.Config{
		Retention:  time.Duration(cfg.Retention.Days) * 24 * time.Hour,
		BatchSize:  cfg.Retention.BatchSize,
		MaxBatches: cfg.Retention.MaxBatches,
	})

	inline := events.Inline{Handler: a.Pipeline}
	if cfg.AMQPURL != "" {
		a.Publisher = events.Fallback{
			Primary:   events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventQueue, log),
			Secondary: inline,
			Log:       log,
		}
		a.Consumer = events.NewConsumer(cfg.AMQPURL, cfg.EventQueue, cfg.ConsumerPrefetch, a.Pipeline, log)
	} else {
		log.Info("no AMQP_URL; events are delivered inline")
		a.Publisher = inline
	}
	a.Intake = intake.NewService(a.Docs, a.Publisher, log)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
