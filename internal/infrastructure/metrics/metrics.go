package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// SMMMetrics holds every collector of the fulfillment engine.
type SMMMetrics struct {
	// Orders
	OrdersCreatedTotal      prometheus.CounterVec
	OrdersChargedTotal      prometheus.CounterVec
	OrderTransitionsTotal   prometheus.CounterVec
	OrderSubmissionFailures prometheus.CounterVec
	OrderDeliveryDuration   prometheus.HistogramVec

	// Sync
	SyncPassesTotal      prometheus.CounterVec
	SyncOrdersTotal      prometheus.CounterVec
	SyncAnomaliesTotal   prometheus.CounterVec
	SyncPassDuration     prometheus.HistogramVec
	ProviderCallDuration prometheus.HistogramVec
	ProviderCallErrors   prometheus.CounterVec
	ProviderBalance      prometheus.GaugeVec

	// Ledger
	LedgerMovementsTotal prometheus.CounterVec
	LedgerAmountTotal    prometheus.CounterVec
	RequestsResolved     prometheus.CounterVec

	// Errors
	ErrorsTotal prometheus.CounterVec
}

func NewSMMMetrics(reg prometheus.Registerer) *SMMMetrics {
	f := promauto.With(reg)
	return &SMMMetrics{
		OrdersCreatedTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_orders_created_total",
				Help: "Orders accepted and charged",
			},
			[]string{"provider_id", "currency"},
		),
		OrdersChargedTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_orders_charged_base_total",
				Help: "Charged amount in base currency",
			},
			[]string{"provider_id"},
		),
		OrderTransitionsTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_order_transitions_total",
				Help: "Order status transitions",
			},
			[]string{"from", "to", "path"},
		),
		OrderSubmissionFailures: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_order_submission_failures_total",
				Help: "Provider submissions that failed, by kind (provider, network)",
			},
			[]string{"provider_id", "kind"},
		),
		OrderDeliveryDuration: *f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smm_order_delivery_duration_seconds",
				Help:    "Time from creation to a terminal status",
				Buckets: prometheus.ExponentialBuckets(60, 2, 12),
			},
			[]string{"provider_id", "status"},
		),

		SyncPassesTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_sync_passes_total",
				Help: "Scheduler passes by job and outcome",
			},
			[]string{"job", "outcome"},
		),
		SyncOrdersTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_sync_orders_total",
				Help: "Orders checked by the status sync, by result",
			},
			[]string{"provider_id", "result"},
		),
		SyncAnomaliesTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_sync_anomalies_total",
				Help: "Vendor statuses that were rejected (regressions, unknown statuses)",
			},
			[]string{"provider_id", "kind"},
		),
		SyncPassDuration: *f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smm_sync_pass_duration_seconds",
				Help:    "Duration of one scheduler pass",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"job"},
		),
		ProviderCallDuration: *f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smm_provider_call_duration_seconds",
				Help:    "Latency of provider API calls",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider_id", "action"},
		),
		ProviderCallErrors: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_provider_call_errors_total",
				Help: "Failed provider API calls",
			},
			[]string{"provider_id", "action"},
		),
		ProviderBalance: *f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smm_provider_balance",
				Help: "Last known balance at the provider",
			},
			[]string{"provider_id", "currency"},
		),

		LedgerMovementsTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_ledger_movements_total",
				Help: "Balance movements by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		LedgerAmountTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_ledger_amount_total",
				Help: "Moved amount by kind and currency",
			},
			[]string{"kind", "currency"},
		),
		RequestsResolved: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_requests_resolved_total",
				Help: "Refill and cancel requests leaving pending",
			},
			[]string{"kind", "status"},
		),

		ErrorsTotal: *f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smm_errors_total",
				Help: "Operation errors by operation and type",
			},
			[]string{"operation", "error_type"},
		),
	}
}

func amount(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (m *SMMMetrics) RecordOrderCreated(providerID, currency string, chargeBase decimal.Decimal) {
	m.OrdersCreatedTotal.WithLabelValues(providerID, currency).Inc()
	m.OrdersChargedTotal.WithLabelValues(providerID).Add(amount(chargeBase))
}

func (m *SMMMetrics) RecordTransition(from, to, path string) {
	m.OrderTransitionsTotal.WithLabelValues(from, to, path).Inc()
}

func (m *SMMMetrics) RecordSubmissionFailure(providerID, kind string) {
	m.OrderSubmissionFailures.WithLabelValues(providerID, kind).Inc()
}

func (m *SMMMetrics) RecordDelivery(providerID, status string, createdAt time.Time) {
	m.OrderDeliveryDuration.WithLabelValues(providerID, status).Observe(time.Since(createdAt).Seconds())
}

func (m *SMMMetrics) RecordSyncPass(job, outcome string, d time.Duration) {
	m.SyncPassesTotal.WithLabelValues(job, outcome).Inc()
	m.SyncPassDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SMMMetrics) RecordSyncResult(providerID, result string) {
	m.SyncOrdersTotal.WithLabelValues(providerID, result).Inc()
}

func (m *SMMMetrics) RecordSyncAnomaly(providerID, kind string) {
	m.SyncAnomaliesTotal.WithLabelValues(providerID, kind).Inc()
}

// RecordProviderCall matches provider.Observer.
func (m *SMMMetrics) RecordProviderCall(providerID, action string, d time.Duration, err error) {
	m.ProviderCallDuration.WithLabelValues(providerID, action).Observe(d.Seconds())
	if err != nil {
		m.ProviderCallErrors.WithLabelValues(providerID, action).Inc()
	}
}

func (m *SMMMetrics) RecordProviderBalance(providerID, currency string, balance decimal.Decimal) {
	m.ProviderBalance.WithLabelValues(providerID, currency).Set(amount(balance))
}

func (m *SMMMetrics) RecordLedger(kind, reason, currency string, value decimal.Decimal) {
	m.LedgerMovementsTotal.WithLabelValues(kind, reason).Inc()
	m.LedgerAmountTotal.WithLabelValues(kind, currency).Add(amount(value))
}

func (m *SMMMetrics) RecordRequestResolved(kind, status string) {
	m.RequestsResolved.WithLabelValues(kind, status).Inc()
}

func (m *SMMMetrics) RecordError(operation, errorType string) {
	m.ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
