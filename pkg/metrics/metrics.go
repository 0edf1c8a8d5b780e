// Package metrics exposes ledger activity as Prometheus series. The
// collectors are fed by domain events, so instrumenting an operation costs
// the services nothing beyond the publish they already do.
package metrics

import (
	"context"
	"sync"

	"github.com/buildrail/escrow/pkg/domain/events"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics holds the ledger's Prometheus collectors.
type LedgerMetrics struct {
	transactions    *prometheus.CounterVec
	amountMoved     *prometheus.CounterVec
	disputesOpened  prometheus.Counter
	disputesClosed  *prometheus.CounterVec
	payoutsSettled  *prometheus.CounterVec
	corruptionFound prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics, registering the
// collectors on first use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_transactions_total",
				Help: "Count of appended ledger transactions by type.",
			}, []string{"type"}),
			amountMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_amount_moved_total",
				Help: "Sum of amounts moved in smallest currency units, by type and currency.",
			}, []string{"type", "currency"}),
			disputesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_disputes_opened_total",
				Help: "Count of disputes opened.",
			}),
			disputesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_disputes_closed_total",
				Help: "Count of disputes closed by outcome.",
			}, []string{"outcome"}),
			payoutsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_payouts_settled_total",
				Help: "Count of payout dispatches reaching a terminal outcome.",
			}, []string{"outcome"}),
			corruptionFound: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_ledger_corruption_total",
				Help: "Count of invariant sweeps that froze an account.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.amountMoved,
			ledgerRegistry.disputesOpened,
			ledgerRegistry.disputesClosed,
			ledgerRegistry.payoutsSettled,
			ledgerRegistry.corruptionFound,
		)
	})
	return ledgerRegistry
}

// Attach subscribes the collectors to the event bus.
func (m *LedgerMetrics) Attach(bus eventbus.EventBus) {
	bus.Subscribe(events.DepositReceived{}.EventType(), func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DepositReceived); ok {
			m.observeTransaction("deposit", ev.Currency, ev.Amount)
		}
	})
	bus.Subscribe(events.FundsReleased{}.EventType(), func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.FundsReleased); ok {
			m.observeTransaction("release", ev.Currency, ev.Amount)
		}
	})
	bus.Subscribe(events.FundsRefunded{}.EventType(), func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.FundsRefunded); ok {
			m.observeTransaction("refund", ev.Currency, ev.Amount)
		}
	})
	bus.Subscribe(events.DisputeOpened{}.EventType(), func(_ context.Context, e events.Event) {
		m.disputesOpened.Inc()
	})
	bus.Subscribe(events.DisputeClosed{}.EventType(), func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DisputeClosed); ok {
			m.disputesClosed.WithLabelValues(ev.Outcome).Inc()
		}
	})
	bus.Subscribe(events.PayoutCompleted{}.EventType(), func(_ context.Context, e events.Event) {
		m.payoutsSettled.WithLabelValues("completed").Inc()
	})
	bus.Subscribe(events.PayoutFailed{}.EventType(), func(_ context.Context, e events.Event) {
		m.payoutsSettled.WithLabelValues("failed").Inc()
	})
	bus.Subscribe(events.LedgerCorruptionDetected{}.EventType(), func(_ context.Context, e events.Event) {
		m.corruptionFound.Inc()
	})
}

func (m *LedgerMetrics) observeTransaction(txType, currency string, amount int64) {
	if currency == "" {
		currency = "unknown"
	}
	m.transactions.WithLabelValues(txType).Inc()
	m.amountMoved.WithLabelValues(txType, currency).Add(float64(amount))
}
