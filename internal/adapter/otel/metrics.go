package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tenderd"

// Metrics holds all tenderd metric instruments.
type Metrics struct {
	AwardsFinalized   metric.Int64Counter
	VendorAccepts     metric.Int64Counter
	VendorDeclines    metric.Int64Counter
	StandbyPromotions metric.Int64Counter
	DeadlineExpiries  metric.Int64Counter
	FailedToAward     metric.Int64Counter
	FinalizeDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.AwardsFinalized, err = meter.Int64Counter("tenderd.awards.finalized",
		metric.WithDescription("Number of award finalizations"))
	if err != nil {
		return nil, err
	}

	m.VendorAccepts, err = meter.Int64Counter("tenderd.awards.accepted",
		metric.WithDescription("Number of vendor award acceptances"))
	if err != nil {
		return nil, err
	}

	m.VendorDeclines, err = meter.Int64Counter("tenderd.awards.declined",
		metric.WithDescription("Number of vendor award declines"))
	if err != nil {
		return nil, err
	}

	m.StandbyPromotions, err = meter.Int64Counter("tenderd.awards.promotions",
		metric.WithDescription("Number of standby promotions"))
	if err != nil {
		return nil, err
	}

	m.DeadlineExpiries, err = meter.Int64Counter("tenderd.awards.expiries",
		metric.WithDescription("Number of deadline auto-declines"))
	if err != nil {
		return nil, err
	}

	m.FailedToAward, err = meter.Int64Counter("tenderd.awards.failed",
		metric.WithDescription("Number of scopes exhausting all standbys"))
	if err != nil {
		return nil, err
	}

	m.FinalizeDuration, err = meter.Float64Histogram("tenderd.finalize.duration_seconds",
		metric.WithDescription("Award finalization duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
