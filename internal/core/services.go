package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/umpyre/beancounter/internal/processor"
	"github.com/umpyre/beancounter/internal/store"
)

// Metrics holds the process-wide Prometheus collectors exposed on the
// metrics bind address (SPEC_FULL.md §12), registered once at process
// startup and threaded through Services rather than accessed as
// package-level globals.
type Metrics struct {
	PaymentAddedAmount      prometheus.Histogram
	PaymentAddedFeeAmount   prometheus.Histogram
	PaymentSettledAmount    prometheus.Histogram
	PaymentSettledFeeAmount prometheus.Histogram
	RPCRequestsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers the Metrics collectors against
// registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PaymentAddedAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beancounter_payment_added_amount_cents",
			Help:    "Distribution of escrowed payment_cents amounts on AddPayment.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 10),
		}),
		PaymentAddedFeeAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beancounter_payment_added_fee_amount_cents",
			Help:    "Distribution of send-fee amounts on AddPayment.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		PaymentSettledAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beancounter_payment_settled_amount_cents",
			Help:    "Distribution of net payment_cents amounts released on SettlePayment.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 10),
		}),
		PaymentSettledFeeAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beancounter_payment_settled_fee_amount_cents",
			Help:    "Distribution of settle-fee amounts on SettlePayment.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		RPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beancounter_rpc_requests_total",
			Help: "Count of RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
	}
	registry.MustRegister(
		m.PaymentAddedAmount,
		m.PaymentAddedFeeAmount,
		m.PaymentSettledAmount,
		m.PaymentSettledFeeAmount,
		m.RPCRequestsTotal,
	)
	return m
}

// Services is the explicit set of dependencies every core operation and
// RPC handler is constructed with, replacing an implicit
// singleton/container pattern (spec.md §9 Design Notes: "an explicit
// Services value ... rather than global/singleton access").
type Services struct {
	Store     store.Database
	Reader    store.Database
	Processor processor.Processor
	Metrics   *Metrics
	Log       zerolog.Logger
}

// NewServices assembles a Services value from its already-constructed
// dependencies. readerDB backs the read-only RPCs (GetBalance,
// GetTransactions) that never need to run inside a write transaction;
// it may be the same pool as db (readerDB == nil falls back to db), or
// a separate reader-replica pool built from
// config.Databases.Reader — mirroring
// original_source/src/config.rs's reader/writer split, which the
// single-pool version of this server previously left unwired.
func NewServices(db, readerDB store.Database, proc processor.Processor, metrics *Metrics, log zerolog.Logger) *Services {
	if readerDB == nil {
		readerDB = db
	}
	return &Services{Store: db, Reader: readerDB, Processor: proc, Metrics: metrics, Log: log}
}
