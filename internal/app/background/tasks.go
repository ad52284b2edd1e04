package background

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LavaJover/shvark-smm-service/internal/config"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/syncer"
)

// SyncJobs is the periodic work of the sync engine.
type SyncJobs interface {
	SyncAllDue(ctx context.Context) (syncer.PassResult, error)
	ReconcileUnconfirmed(ctx context.Context) (int, error)
	RefreshBalances(ctx context.Context) error
}

// CurrencyRefresher pulls feed rates, when configured, and picks up rate
// changes made by other instances.
type CurrencyRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

type BackgroundTasks struct {
	Sync       SyncJobs
	Currencies CurrencyRefresher

	cron   *cron.Cron
	specs  config.Sync
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBackgroundTasks schedules every job. A run still in progress when its
// next tick fires is skipped rather than overlapped.
func NewBackgroundTasks(sync SyncJobs, currencies CurrencyRefresher, specs config.Sync, logger *slog.Logger) (*BackgroundTasks, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	ctx, cancel := context.WithCancel(context.Background())
	bt := &BackgroundTasks{
		Sync:       sync,
		Currencies: currencies,
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		specs:      specs,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"status_sync", specs.StatusSpec, bt.syncStatuses},
		{"reconcile_unconfirmed", specs.ReconcileSpec, bt.reconcileUnconfirmed},
		{"provider_balances", specs.BalanceSpec, bt.refreshBalances},
		{"currency_refresh", specs.CurrencySpec, bt.refreshCurrencies},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := bt.cron.AddFunc(j.spec, j.run); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		logger.Info("scheduled job", "job", j.name, "schedule", j.spec)
	}
	return bt, nil
}

func (bt *BackgroundTasks) Start() {
	bt.cron.Start()
}

// Stop cancels running jobs and returns a context done once they return.
func (bt *BackgroundTasks) Stop() context.Context {
	done := bt.cron.Stop()
	bt.cancel()
	return done
}

func (bt *BackgroundTasks) syncStatuses() {
	start := time.Now()
	res, err := bt.Sync.SyncAllDue(bt.ctx)
	if err != nil {
		bt.logger.Error("status sync failed", "error", err)
		return
	}
	bt.logger.Info("status sync finished",
		"checked", res.Checked,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"anomalies", res.Anomalies,
		"errors", res.Errors,
		"conflicts", res.Conflicts,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
}

func (bt *BackgroundTasks) reconcileUnconfirmed() {
	n, err := bt.Sync.ReconcileUnconfirmed(bt.ctx)
	if err != nil {
		bt.logger.Error("unconfirmed reconciliation failed", "error", err)
		return
	}
	if n > 0 {
		bt.logger.Info("unconfirmed orders reconciled", "count", n)
	}
}

func (bt *BackgroundTasks) refreshBalances() {
	if err := bt.Sync.RefreshBalances(bt.ctx); err != nil {
		bt.logger.Error("provider balance refresh failed", "error", err)
	}
}

func (bt *BackgroundTasks) refreshCurrencies() {
	if bt.Currencies == nil {
		return
	}
	n, err := bt.Currencies.Refresh(bt.ctx)
	if err != nil {
		bt.logger.Error("currency refresh failed", "error", err)
		return
	}
	if n > 0 {
		bt.logger.Info("currency rates updated", "count", n)
	}
}
