// Package app assembles services, transports and consumers into a runnable
// process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	jwttoken "cityfix/internal/jwt_token"
	"cityfix/internal/platform/broker"
	"cityfix/internal/platform/broker/kafka"
	"cityfix/internal/platform/broker/memory"
	"cityfix/internal/platform/broker/rabbitmq"
	"cityfix/internal/platform/config"
	"cityfix/internal/platform/metrics"
	"cityfix/internal/platform/postgres"
	redisclient "cityfix/internal/platform/redis"
	"cityfix/migrations"
	"cityfix/pkg/platform/circuit"
	"cityfix/pkg/platform/events"
	"cityfix/pkg/platform/events/audittrail"
	"cityfix/pkg/platform/events/publishers/besteffort"
	"cityfix/pkg/platform/events/publishers/critical"
)

// Infra is the shared infrastructure of one process. DB and Redis are nil
// when not configured; stores then fall back to memory.
type Infra struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Broker   broker.Broker
	DB       *sql.DB
	Redis    *redisclient.Client
	JWT      *jwttoken.JWTService
	Clock    *events.Clock
	Breaker  *circuit.Breaker
}

// Open connects everything service needs. Migrations for the service's
// tables run before Open returns.
func Open(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*Infra, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	infra := &Infra{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.New(reg),
		Registry: reg,
		Clock:    events.NewClock(nil),
	}
	infra.Breaker = circuit.New("best-effort-publish",
		circuit.WithFailureThreshold(cfg.Broker.BreakerThreshold),
		circuit.WithCooldown(cfg.Broker.BreakerCooldown),
	)
	if cfg.Auth.JWTSigningKey != "" {
		infra.JWT = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		infra.DB = db
		for _, set := range migrationSets(service) {
			if err := migrations.Up(ctx, db, set, logger); err != nil {
				_ = infra.Close()
				return nil, err
			}
		}
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	infra.Redis = client

	var tracker broker.AttemptTracker = broker.NewMemoryAttemptTracker()
	if client != nil {
		tracker = broker.NewRedisAttemptTracker(client.Client, cfg.Broker.AttemptTTL)
	}
	b, err := openBroker(cfg.Broker,
		broker.WithLogger(logger),
		broker.WithMetrics(infra.Metrics),
		broker.WithAttemptTracker(tracker),
		broker.WithMaxRedeliveries(cfg.Broker.MaxRedeliveries),
		broker.WithRedeliveryDelay(cfg.Broker.RedeliveryDelay),
	)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	infra.Broker = b
	return infra, nil
}

func openBroker(cfg config.BrokerConfig, opts ...broker.Option) (broker.Broker, error) {
	switch cfg.Kind {
	case config.BrokerRabbitMQ:
		return rabbitmq.Dial(cfg.AMQPURL, opts...)
	case config.BrokerKafka:
		return kafka.New(kafka.Config{Brokers: cfg.KafkaBrokers, Partitions: int32(cfg.KafkaPartitions)}, opts...)
	case config.BrokerMemory:
		return memory.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Kind)
	}
}

func migrationSets(service string) []string {
	switch service {
	case config.ServiceReport:
		return []string{migrations.Report}
	case config.ServiceUser:
		return []string{migrations.User}
	case config.ServiceLog:
		return []string{migrations.AuditLog}
	default:
		return migrations.All
	}
}

// Critical returns a publisher for events the caller must fail without.
func (i *Infra) Critical() *critical.Publisher {
	return critical.New(i.Broker,
		critical.WithLogger(i.Logger),
		critical.WithMetrics(i.Metrics),
		critical.WithClock(i.Clock),
	)
}

// AuditTrail returns a recorder that publishes audit envelopes best-effort.
func (i *Infra) AuditTrail() *audittrail.Recorder {
	p := besteffort.New(i.Broker,
		besteffort.WithLogger(i.Logger),
		besteffort.WithMetrics(i.Metrics),
		besteffort.WithClock(i.Clock),
		besteffort.WithTimeout(i.Config.Broker.PublishTimeout),
		besteffort.WithBreaker(i.Breaker),
	)
	return audittrail.New(p, i.Config.Broker.Names.AuditExchange, i.Logger)
}

// Close releases every connection Open made.
func (i *Infra) Close() error {
	var errs []error
	if i.Broker != nil {
		errs = append(errs, i.Broker.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}
