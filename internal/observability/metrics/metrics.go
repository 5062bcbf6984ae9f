package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/condoledger/pkg/errs"
)

const (
	OutcomeOK = "ok"

	LockResourceBillingPeriod   = "billing_period"
	LockResourceReservationSlot = "reservation_slot"
	LockResourceReservation     = "reservation"
)

// Config carries the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// LedgerMetrics captures ledger and booking health signals.
type LedgerMetrics struct {
	mutations              *prometheus.CounterVec
	mutationDuration       *prometheus.HistogramVec
	lockWait               *prometheus.HistogramVec
	reservationTransitions *prometheus.CounterVec
	rentOutcomes           *prometheus.CounterVec
	fineConversions        *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics registered on the default registerer.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = NewLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &LedgerMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "condoledger_ledger_mutations_total",
			Help:        "Billing period mutations by operation and outcome kind.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		mutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "condoledger_ledger_mutation_duration_seconds",
			Help:        "Billing period mutation latency including lock wait.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"op"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "condoledger_lock_wait_seconds",
			Help:        "Time spent waiting for a keyed lock.",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"resource"}),
		reservationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "condoledger_reservation_transitions_total",
			Help:        "Reservation state machine transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		rentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "condoledger_rent_generation_total",
			Help:        "Rent generation attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		fineConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "condoledger_fine_conversions_total",
			Help:        "Fine to charge line conversions by outcome kind.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	registerer.MustRegister(
		m.mutations,
		m.mutationDuration,
		m.lockWait,
		m.reservationTransitions,
		m.rentOutcomes,
		m.fineConversions,
	)
	return m
}

// ObserveMutation records one ledger mutation and its latency.
func (m *LedgerMetrics) ObserveMutation(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, Outcome(err)).Inc()
	m.mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *LedgerMetrics) ObserveLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncReservationTransition(from, to string) {
	if m == nil {
		return
	}
	m.reservationTransitions.WithLabelValues(from, to).Inc()
}

// IncRentOutcome counts a rent attempt; outcome is "generated", "failed" or a skip reason.
func (m *LedgerMetrics) IncRentOutcome(outcome string) {
	if m == nil {
		return
	}
	m.rentOutcomes.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) IncFineConversion(err error) {
	if m == nil {
		return
	}
	m.fineConversions.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(errs.KindOf(err))
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "condoledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
