package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, "conflict", Outcome(errs.New(errs.KindConflict, "x")))
	assert.Equal(t, "internal_error", Outcome(errors.New("boom")))
}

func TestObserveMutation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{Environment: "test"})

	m.ObserveMutation("add_charge_line", nil, 10*time.Millisecond)
	m.ObserveMutation("add_charge_line", nil, 10*time.Millisecond)
	m.ObserveMutation("add_charge_line", errs.New(errs.KindValidation, "invalid_amount"), time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.mutations.WithLabelValues("add_charge_line", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues("add_charge_line", "validation_error")))
}

func TestDomainCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{})

	m.IncReservationTransition("pending", "confirmed")
	m.IncRentOutcome("generated")
	m.IncFineConversion(errs.New(errs.KindNotFound, "missing_residency"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.reservationTransitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rentOutcomes.WithLabelValues("generated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fineConversions.WithLabelValues("not_found")))
}
