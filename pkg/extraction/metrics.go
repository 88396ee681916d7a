package extraction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/contextos/pkg/extraction"

// Metrics holds extraction instrumentation.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	entities  metric.Int64Histogram
	cacheHits metric.Int64Counter
}

// NewMetrics creates extraction metrics instruments.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"contextos.extraction.duration_seconds",
		metric.WithDescription("Duration of one entity extraction run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.entities, err = m.meter.Int64Histogram(
		"contextos.extraction.entities_per_decision",
		metric.WithDescription("Entities materialized per decision, the agent entity included"),
		metric.WithUnit("{entity}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21),
	)
	if err != nil {
		m.logger.Warn("failed to create entities histogram", zap.Error(err))
	}

	m.cacheHits, err = m.meter.Int64Counter(
		"contextos.extraction.cache_hits_total",
		metric.WithDescription("Extraction calls answered from the per-decision memo cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache hits counter", zap.Error(err))
	}
}

// RecordExtraction records one completed extraction run.
func (m *Metrics) RecordExtraction(ctx context.Context, duration time.Duration, entityCount int) {
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds())
	}
	if m.entities != nil {
		m.entities.Record(ctx, int64(entityCount))
	}
}

// RecordCacheHit records a memo cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m.cacheHits != nil {
		m.cacheHits.Add(ctx, 1)
	}
}
