package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"vcregistry/internal/authority"
	jwttoken "vcregistry/internal/jwt_token"
	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/database"
	"vcregistry/internal/platform/health"
	"vcregistry/internal/platform/kafka"
	kafkaconsumer "vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/kafka/producer"
	"vcregistry/internal/platform/metrics"
	redisclient "vcregistry/internal/platform/redis"
	"vcregistry/internal/platform/tracer"
	"vcregistry/internal/registry/consumer"
	"vcregistry/internal/registry/dispatch"
	"vcregistry/internal/registry/gate"
	"vcregistry/internal/registry/handler"
	registrymetrics "vcregistry/internal/registry/metrics"
	"vcregistry/internal/registry/pending"
	"vcregistry/internal/registry/service"
	"vcregistry/internal/registry/store"
	httptransport "vcregistry/internal/transport/http"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/platform/audit"
	"vcregistry/pkg/platform/audit/publisher"
	"vcregistry/pkg/platform/circuit"
	auditmemory "vcregistry/pkg/platform/audit/store/memory"
	auditpostgres "vcregistry/pkg/platform/audit/store/postgres"
	"vcregistry/pkg/platform/middleware/request"
	"vcregistry/pkg/platform/outbox"
	outboxmetrics "vcregistry/pkg/platform/outbox/metrics"
	outboxmemory "vcregistry/pkg/platform/outbox/store/memory"
	outboxpostgres "vcregistry/pkg/platform/outbox/store/postgres"
	"vcregistry/pkg/platform/outbox/worker"
)

const (
	kafkaPartitions   = 3
	kafkaReplication  = 1
	redisStatInterval = 15 * time.Second
	auditBufferSize   = 1024
)

// application holds every long-lived component so main can start and stop
// them as a unit.
type application struct {
	log      *slog.Logger
	registry *service.Service
	router   http.Handler

	pool      *database.Pool
	redis     *redisclient.Client
	publisher *publisher.Publisher
	producer  *producer.Producer
	worker    *worker.Worker
	consumer  *kafkaconsumer.Consumer
	local     *dispatch.Local
	guarded   *dispatch.Guarded
}

// build connects infrastructure and assembles the registry. Empty
// DATABASE_URL and REDIS_URL fall back to in-memory stores.
func build(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *application, err error) {
	app := &application{log: log}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	reg := metrics.NewRegistry()

	if app.pool, err = database.New(ctx, database.DefaultConfig(cfg.DatabaseURL)); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if app.pool != nil {
		if err = app.pool.RegisterMetrics(reg); err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
	}
	if app.redis, err = redisclient.New(ctx, redisclient.Config{URL: cfg.RedisURL}, redisclient.NewPoolMetrics(reg)); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	credentials, state := app.registryStores()
	pendingStore := app.pendingStore()
	app.publisher = publisher.NewPublisher(app.auditStore(), publisher.WithAsyncBuffer(auditBufferSize), publisher.WithPublisherLogger(log))
	auditor := audit.NewLogger(log, app.publisher)

	trace := tracer.NewOTel()
	registryMetrics := registrymetrics.New(reg)

	var dispatcher gate.Dispatcher
	if cfg.KafkaEnabled() {
		if dispatcher, err = app.kafkaDispatcher(ctx, cfg, reg); err != nil {
			return nil, err
		}
	} else {
		if dispatcher, err = app.localDispatcher(cfg); err != nil {
			return nil, err
		}
	}

	app.guarded = dispatch.NewGuarded(dispatcher, circuit.New("authority_dispatch"), log)
	g := gate.New(pendingStore, app.guarded,
		gate.WithLogger(log),
		gate.WithTracer(trace),
		gate.WithMetrics(registryMetrics),
	)
	app.registry = service.New(credentials, state, g,
		service.WithLogger(log),
		service.WithAuditor(auditor),
		service.WithTracer(trace),
		service.WithMetrics(registryMetrics),
	)

	if app.local != nil {
		app.local.Bind(app.registry)
	}
	if cfg.KafkaEnabled() {
		app.consumer, err = kafkaconsumer.New(kafkaconsumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  []string{cfg.AuthorityVerdictTopic},
		}, consumer.NewVerdictHandler(app.registry, log), log)
		if err != nil {
			return nil, fmt.Errorf("create verdict consumer: %w", err)
		}
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	jwtService.SetEnv(cfg.Environment)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)
	if !cfg.IsLocal() {
		validator.RequireEnv(cfg.Environment)
	}

	app.router = httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Validator:      validator,
		CallbackToken:  cfg.CallbackToken,
		RequestTimeout: cfg.RequestTimeout,
		Health:         app.healthChecks(cfg),
		Metrics:        request.NewMetrics(reg),
		MetricsHandler: metrics.Handler(reg),
	}, handler.New(app.registry, log))

	return app, nil
}

func (a *application) registryStores() (store.CredentialStore, store.StateStore) {
	if a.pool != nil {
		return store.NewPostgres(a.pool.DB()), store.NewPostgresState(a.pool.DB())
	}
	a.log.Warn("DATABASE_URL not set, credentials are kept in memory")
	return store.NewInMemory(), store.NewInMemoryState()
}

func (a *application) pendingStore() gate.PendingStore {
	if a.redis != nil {
		return pending.NewRedis(a.redis.Client)
	}
	a.log.Warn("REDIS_URL not set, pending requests are kept in memory")
	return pending.NewInMemory()
}

func (a *application) auditStore() audit.Store {
	if a.pool != nil {
		return auditpostgres.New(a.pool.DB())
	}
	return auditmemory.NewInMemoryStore()
}

func (a *application) outboxStore(lease time.Duration) outbox.Store {
	if a.pool != nil {
		return outboxpostgres.New(a.pool.DB(), outboxpostgres.WithClaimLease(lease))
	}
	a.log.Warn("DATABASE_URL not set, outbox entries are kept in memory")
	return outboxmemory.New()
}

// kafkaDispatcher sends requests to the Authority through the outbox. The
// worker relays entries to the request topic; verdicts come back on the
// verdict topic.
func (a *application) kafkaDispatcher(ctx context.Context, cfg config.Server, reg prometheus.Registerer) (gate.Dispatcher, error) {
	admin, err := kafka.NewAdmin(cfg.KafkaBrokers)
	if err != nil {
		return nil, fmt.Errorf("create kafka admin: %w", err)
	}
	err = admin.EnsureTopics(ctx, kafkaPartitions, kafkaReplication, cfg.AuthorityRequestTopic, cfg.AuthorityVerdictTopic)
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("ensure kafka topics: %w", err)
	}
	if a.producer, err = producer.New(producer.DefaultConfig(cfg.KafkaBrokers), a.log); err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	entries := a.outboxStore(cfg.OutboxClaimLease)
	a.worker = worker.New(entries, a.producer,
		worker.WithDefaultTopic(cfg.AuthorityRequestTopic),
		worker.WithBatchSize(cfg.OutboxBatchSize),
		worker.WithPollInterval(cfg.OutboxPollInterval),
		worker.WithRetention(cfg.OutboxRetention),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(a.log),
	)
	return dispatch.NewOutbox(entries, cfg.AuthorityRequestTopic), nil
}

// localDispatcher answers requests in process with the configured policy.
func (a *application) localDispatcher(cfg config.Server) (gate.Dispatcher, error) {
	address, err := id.ParseAddress(cfg.LocalAuthorityAddress)
	if err != nil {
		return nil, fmt.Errorf("LOCAL_AUTHORITY_ADDRESS: %w", err)
	}
	policy, err := authority.ParsePolicy(cfg.LocalAuthorityPolicy)
	if err != nil {
		return nil, fmt.Errorf("LOCAL_AUTHORITY_POLICY: %w", err)
	}
	a.log.Info("using in-process authority", "authority", address, "dids", len(policy.DIDs()))
	a.local = dispatch.NewLocal(authority.New(address, policy, a.log), a.log)
	return a.local, nil
}

func (a *application) healthChecks(cfg config.Server) *health.Handler {
	h := health.New(cfg.Environment, cfg.Variant)
	h.RegisterCheck("authority_dispatch", a.guarded.Check)
	if a.pool != nil {
		h.RegisterCheck("postgres", a.pool.Health)
	}
	if a.redis != nil {
		h.RegisterCheck("redis", a.redis.Health)
	}
	if a.producer != nil {
		h.RegisterCheck("kafka", a.producer.Check)
	}
	if a.consumer != nil {
		h.RegisterCheck("verdict_consumer", a.consumer.Check)
	}
	return h
}

// start launches the background components on g.
func (a *application) start(ctx context.Context, g *errgroup.Group) {
	if a.worker != nil {
		a.worker.Start()
	}
	if a.consumer != nil {
		a.consumer.Start()
	}
	if a.redis != nil {
		g.Go(func() error {
			a.redis.RunPoolStats(ctx, redisStatInterval)
			return nil
		})
	}
}

// stop drains background components in dependency order: no new verdicts,
// then the relay, then in-flight local resumptions.
func (a *application) stop(ctx context.Context) {
	if a.consumer != nil {
		logStopErr(a.log, "verdict consumer", a.consumer.Stop(ctx))
	}
	if a.worker != nil {
		logStopErr(a.log, "outbox worker", a.worker.Stop(ctx))
	}
	if a.local != nil {
		a.local.Wait()
	}
}

func (a *application) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.producer != nil {
		logStopErr(a.log, "kafka producer", a.producer.Close())
	}
	if a.redis != nil {
		logStopErr(a.log, "redis", a.redis.Close())
	}
	if a.pool != nil {
		logStopErr(a.log, "postgres", a.pool.Close())
	}
}
