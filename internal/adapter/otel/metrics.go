package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "voteguard"

// Metrics holds all VoteGuard metric instruments.
type Metrics struct {
	ValidationsStarted  metric.Int64Counter
	ValidationsApproved metric.Int64Counter
	ValidationsRejected metric.Int64Counter
	Reloops             metric.Int64Counter
	JudgeFailures       metric.Int64Counter
	ValidationAttempts  metric.Int64Histogram
	ValidationDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ValidationsStarted, err = meter.Int64Counter("voteguard.validations.started",
		metric.WithDescription("Number of promise validations started"))
	if err != nil {
		return nil, err
	}

	m.ValidationsApproved, err = meter.Int64Counter("voteguard.validations.approved",
		metric.WithDescription("Number of validations that ended in an accepted analysis"))
	if err != nil {
		return nil, err
	}

	m.ValidationsRejected, err = meter.Int64Counter("voteguard.validations.rejected",
		metric.WithDescription("Number of validations terminated by a reject decision"))
	if err != nil {
		return nil, err
	}

	m.Reloops, err = meter.Int64Counter("voteguard.reloops",
		metric.WithDescription("Number of regeneration rounds triggered by reloop decisions"))
	if err != nil {
		return nil, err
	}

	m.JudgeFailures, err = meter.Int64Counter("voteguard.judge.failures",
		metric.WithDescription("Number of judge calls that failed or returned unparseable output"))
	if err != nil {
		return nil, err
	}

	m.ValidationAttempts, err = meter.Int64Histogram("voteguard.validation.attempts",
		metric.WithDescription("Attempts consumed per validation run"))
	if err != nil {
		return nil, err
	}

	m.ValidationDuration, err = meter.Float64Histogram("voteguard.validation.duration_seconds",
		metric.WithDescription("Validation run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
