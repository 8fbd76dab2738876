package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"prelaunch/internal/events"
	jwttoken "prelaunch/internal/jwt_token"
	"prelaunch/internal/platform/config"
	"prelaunch/internal/platform/database"
	platformmetrics "prelaunch/internal/platform/metrics"
	"prelaunch/internal/platform/middleware"
	redisclient "prelaunch/internal/platform/redis"
	rlmetrics "prelaunch/internal/ratelimit/metrics"
	rlmiddleware "prelaunch/internal/ratelimit/middleware"
	"prelaunch/internal/ratelimit/store/bucket"
	reghandler "prelaunch/internal/registration/handler"
	regmetrics "prelaunch/internal/registration/metrics"
	"prelaunch/internal/registration/service"
	"prelaunch/internal/registration/store"
	signuphandler "prelaunch/internal/signup/handler"
	"prelaunch/internal/signup/flow"
	httptransport "prelaunch/internal/transport/http"
)

// app holds the wired process and the resources to release on exit.
type app struct {
	router          http.Handler
	sessions        *flow.Sessions
	fallbackLimiter *bucket.InMemoryBucketStore
	storeName       string
	db              *sql.DB
	redis           *redisclient.Client
	publisher       *events.KafkaPublisher
	logger          *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	metrics := platformmetrics.NewWithRuntime()
	health := map[string]httptransport.HealthCheck{}

	regStore, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if a.db != nil {
		health["database"] = a.db.PingContext
	}

	a.redis, err = redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.fallbackLimiter = bucket.New()
	var limiterStore rlmiddleware.BucketStore = a.fallbackLimiter
	if a.redis != nil {
		limiterStore = bucket.NewRedis(a.redis.Client)
		health["redis"] = a.redis.Health
	}

	var publisher service.EventPublisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			events.WithKafkaLogger(logger),
			events.WithMaxBufferedRecords(cfg.Kafka.MaxBufferedRecords),
			events.WithDeliveryTimeout(cfg.Kafka.DeliveryTimeout),
		)
		if err != nil {
			return nil, err
		}
		if cfg.Kafka.EnsureTopic {
			if err := a.publisher.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				return nil, err
			}
		}
		publisher = a.publisher
	}

	svc := service.New(regStore,
		service.WithLogger(logger),
		service.WithPublisher(publisher),
		service.WithMetrics(regmetrics.New(metrics.Registerer())),
	)

	a.sessions = flow.NewSessions(func() *flow.Form {
		return flow.NewForm(svc, flow.WithLogger(logger))
	}, cfg.Session.TTL)

	limiter := rlmiddleware.New(limiterStore, logger,
		rlmiddleware.WithLimit(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		rlmiddleware.WithFallback(a.fallbackLimiter),
		rlmiddleware.WithDisabled(cfg.RateLimit.Disabled),
		rlmiddleware.WithMetrics(rlmetrics.New(metrics.Registerer())),
	)

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	jwtService := jwttoken.NewJWTService(cfg.Admin.JWTSigningKey, cfg.Admin.Issuer, cfg.Admin.Audience)

	a.router = httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: trustedProxies,
		Health:         health,
		Handlers: []httptransport.RouteRegistrar{
			signuphandler.New(a.sessions, logger,
				signuphandler.WithSubmitLimiter(limiter.RateLimit("signup")),
				signuphandler.WithSecureCookies(cfg.Server.SecureCookies),
				signuphandler.WithCookieTTL(cfg.Session.TTL),
			),
			reghandler.New(svc, logger, jwttoken.NewJWTServiceAdapter(jwtService)),
		},
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.Database) (service.Store, error) {
	if cfg.Driver == "" {
		a.storeName = "memory"
		a.logger.Warn("no database configured; registrations are kept in memory")
		return store.NewInMemory(), nil
	}

	db, dialect, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			return nil, err
		}
	}

	switch dialect {
	case database.DialectPostgres:
		a.storeName = "postgres/" + cfg.Driver
		return store.NewPostgres(db), nil
	case database.DialectSQLite:
		a.storeName = "sqlite"
		return store.NewSQLite(db), nil
	}
	return nil, fmt.Errorf("no store for dialect %q", dialect)
}

func (a *app) close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(ctx); err != nil {
			a.logger.Error("failed to flush kafka publisher", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}
