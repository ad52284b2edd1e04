package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/config"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	publisher "github.com/LavaJover/shvark-smm-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/repository"
)

type Dependencies struct {
	Config          *config.SMMConfig
	Logger          *slog.Logger
	DB              *gorm.DB
	Redis           *redis.Client
	Publisher       *publisher.DefaultKafkaPublisher
	Subscriber      *publisher.DefaultKafkaSubscriber
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.SMMMetrics
	Repositories    *Repositories
}

type Repositories struct {
	OrderRepo    domain.OrderRepository
	RequestRepo  domain.RequestRepository
	LedgerRepo   domain.LedgerRepository
	DepositRepo  domain.DepositRepository
	ProviderRepo domain.ProviderRepository
	ServiceRepo  domain.ServiceRepository
	CurrencyRepo domain.CurrencyRepository
}

// InitializeDependencies connects to storage and brokers. Kafka and Redis
// are optional: without them the instance runs standalone.
func InitializeDependencies(cfg *config.SMMConfig, logger *slog.Logger) (*Dependencies, error) {
	db := postgres.MustInitDB(cfg)

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Repositories: &Repositories{
			OrderRepo:    repository.NewDefaultOrderRepository(db),
			RequestRepo:  repository.NewDefaultRequestRepository(db),
			LedgerRepo:   repository.NewDefaultLedgerRepository(db),
			DepositRepo:  repository.NewDefaultDepositRepository(db),
			ProviderRepo: repository.NewDefaultProviderRepository(db),
			ServiceRepo:  repository.NewDefaultServiceRepository(db),
			CurrencyRepo: repository.NewDefaultCurrencyRepository(db),
		},
	}

	deps.MetricsRegistry = prometheus.NewRegistry()
	deps.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.NewSMMMetrics(deps.MetricsRegistry)

	if cfg.Redis.Addr != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := deps.Redis.Ping(context.Background()).Err(); err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Warn("redis not configured, sync leases are local to this instance")
	}

	if cfg.Kafka.Enabled() {
		deps.Publisher = publisher.NewDefaultKafkaPublisher(cfg.Kafka.Brokers)
		deps.Subscriber = publisher.NewDefaultKafkaSubscriber(cfg.Kafka.Brokers)
	} else {
		logger.Warn("kafka not configured, notifications are logged only")
	}
	return deps, nil
}

// Probes are the dependency checks behind the gRPC health service.
func (d *Dependencies) Probes() map[string]grpcapi.Probe {
	probes := map[string]grpcapi.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if d.Redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}
	}
	return probes
}

func (d *Dependencies) Close() error {
	var errs []error
	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
