package setup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/cache"
	publisher "github.com/LavaJover/shvark-smm-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/notifier"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/provider"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/ratefeed"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/order"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/registry"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/syncer"
)

type UseCases struct {
	Currencies *currency.Book
	Registry   *registry.DefaultProviderRegistry
	Ledger     *ledger.DefaultLedgerUsecase
	Orders     *order.DefaultOrderUsecase
	Sync       *syncer.DefaultSyncUsecase
	Notifier   *notifier.Async

	// InstanceID tags provider config events so an instance ignores its own.
	InstanceID string
}

func InitializeUseCases(ctx context.Context, deps *Dependencies) (*UseCases, error) {
	cfg := deps.Config
	repos := deps.Repositories
	m := deps.Metrics
	logger := deps.Logger
	instanceID := uuid.NewString()

	book, err := currency.NewBook(repos.CurrencyRepo, cfg.Ledger.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("currency book: %w", err)
	}
	if err := book.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load currencies: %w", err)
	}
	if cfg.Ledger.RateFeedURL != "" {
		book.SetFeed(ratefeed.NewHTTPFeed(cfg.Ledger.RateFeedURL, cfg.Ledger.RateFeedTimeout))
	}

	factory := provider.NewFactory(provider.Options{
		Client:         &http.Client{Timeout: cfg.Providers.Timeout},
		Timeout:        cfg.Providers.Timeout,
		MaxRetries:     cfg.Providers.MaxRetries,
		InitialBackoff: cfg.Providers.InitialBackoff,
		MaxBackoff:     cfg.Providers.MaxBackoff,
		Observer:       m.RecordProviderCall,
		Logger:         logger,
	})
	regOpts := registry.Options{
		Metrics:     m,
		DefaultRate: cfg.Providers.DefaultRate,
		Logger:      logger,
	}
	var sink domain.Notifier = notifier.NewLogNotifier(logger)
	if deps.Publisher != nil {
		regOpts.Events = publisher.NewProviderEventPublisher(deps.Publisher, cfg.Kafka.ProviderTopic, instanceID)
		sink = notifier.Multi{sink, publisher.NewNotificationPublisher(deps.Publisher, cfg.Kafka.NotificationsTopic)}
	}
	notify := notifier.NewAsync(sink, 10*time.Second, logger)

	reg := registry.NewProviderRegistry(repos.ProviderRepo, repos.ServiceRepo, repos.OrderRepo, factory, regOpts)
	if err := reg.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	ledgerUC, err := ledger.NewDefaultLedgerUsecase(repos.LedgerRepo, repos.DepositRepo, repos.RequestRepo, repos.OrderRepo, book, notify, m, logger)
	if err != nil {
		return nil, err
	}
	orderUC, err := order.NewDefaultOrderUsecase(
		repos.OrderRepo,
		repos.RequestRepo,
		repos.LedgerRepo,
		repos.ServiceRepo,
		reg,
		ledgerUC,
		book,
		notify,
		m,
		order.Config{
			RefundPartialRemains: cfg.Ledger.RefundPartialRemains,
			DecisionLeaseTTL:     cfg.Sync.LeaseTTL,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	var lease cache.Lease = cache.NewLocalLease()
	if deps.Redis != nil {
		redisLease, err := cache.NewRedisLease(deps.Redis, "smm:lease:")
		if err != nil {
			return nil, err
		}
		lease = redisLease
	}
	orderUC.Leases = lease
	syncUC := syncer.NewDefaultSyncUsecase(repos.OrderRepo, orderUC, reg, lease, m, syncer.Config{
		BatchLimit:     cfg.Sync.BatchLimit,
		DefaultWorkers: cfg.Sync.DefaultWorkers,
		LeaseTTL:       cfg.Sync.LeaseTTL,
		PassTimeout:    cfg.Sync.PassTimeout,
		UnconfirmedAge: cfg.Sync.UnconfirmedAge,
	}, logger)

	return &UseCases{
		Currencies: book,
		Registry:   reg,
		Ledger:     ledgerUC,
		Orders:     orderUC,
		Sync:       syncUC,
		Notifier:   notify,
		InstanceID: instanceID,
	}, nil
}

// ListenProviderEvents keeps the provider snapshot in step with edits made
// on other instances. It is a no-op without Kafka.
func (u *UseCases) ListenProviderEvents(ctx context.Context, deps *Dependencies) error {
	if deps.Subscriber == nil {
		return nil
	}
	return publisher.ListenProviderEvents(ctx, deps.Subscriber, deps.Config.Kafka.ProviderTopic, deps.Config.Kafka.GroupID+"-"+u.InstanceID, u.InstanceID, u.Registry.Reload)
}
